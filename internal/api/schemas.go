package api

import (
	"time"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
)

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DayListResponse struct {
	OutputDir string                `json:"output_dir"`
	Days      []domain.DayTableInfo `json:"days"`
	Count     int                   `json:"count"`
}

type DayTableResponse struct {
	Code  domain.FileCode      `json:"code"`
	Rows  []domain.TradeRecord `json:"rows"`
	Count int                  `json:"count"`
}

type MergedResponse struct {
	Pattern     string               `json:"pattern"`
	Tickers     []string             `json:"tickers"`
	Files       int                  `json:"files"`
	FailedFiles int                  `json:"failed_files"`
	Rows        []domain.TradeRecord `json:"rows"`
	Count       int                  `json:"count"`
}

type TickerHistoryResponse struct {
	Ticker  string               `json:"ticker"`
	History []domain.PriceReport `json:"history"`
	Count   int                  `json:"count"`
}

type MergeRequest struct {
	Tickers []string `json:"tickers"`
}

type MergeResponse struct {
	Status   string   `json:"status"`
	Output   string   `json:"output"`
	Tickers  []string `json:"tickers"`
	Files    int      `json:"files"`
	Rows     int      `json:"rows"`
	Duration string   `json:"duration"`
}

type LoadDataRequest struct {
	FilePath string `json:"file_path" validate:"required"`
	Async    bool   `json:"async"`
}

type LoadDataResponse struct {
	JobID        string `json:"job_id,omitempty"`
	RecordsCount int64  `json:"records_count,omitempty"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

type SystemStatsResponse struct {
	Database *DatabaseStats `json:"database,omitempty"`
	Pipeline PipelineStats  `json:"pipeline"`
	API      APIStats       `json:"api"`
}

type DatabaseStats struct {
	ActiveConnections int32  `json:"active_connections"`
	IdleConnections   int32  `json:"idle_connections"`
	TotalConnections  int32  `json:"total_connections"`
	WaitCount         int64  `json:"wait_count"`
	WaitDuration      string `json:"wait_duration"`
}

type PipelineStats struct {
	DayTables  int    `json:"day_tables"`
	FirstCode  string `json:"first_code,omitempty"`
	LastCode   string `json:"last_code,omitempty"`
	TotalBytes int64  `json:"total_bytes"`
}

type APIStats struct {
	ActiveGoroutines int    `json:"active_goroutines"`
	MemoryUsed       string `json:"memory_used"`
}
