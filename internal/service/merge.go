package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

var ErrNothingToMerge = errors.New("nenhuma linha para consolidar")

type TableSource interface {
	DayTables() ([]domain.DayTableInfo, error)
	ReadTable(name string) (domain.DayTable, error)
}

type TableWriter func(path string, table domain.DayTable) error

type MergeStats struct {
	Files       int
	FailedFiles int
	RowsRead    int
	RowsKept    int
}

type MergeService struct {
	source TableSource
	write  TableWriter
}

func NewMergeService(source TableSource, write TableWriter) *MergeService {
	return &MergeService{source: source, write: write}
}

// Collect lê todos os CSVs diários, mantém as linhas cujo ticker casa com o
// padrão e cuja quantidade é positiva, e ordena por TradeDate (estável).
func (s *MergeService) Collect(ctx context.Context, pattern *domain.TickerPattern) (domain.DayTable, MergeStats, error) {
	var stats MergeStats

	tables, err := s.source.DayTables()
	if err != nil {
		return nil, stats, fmt.Errorf("erro ao listar tabelas diárias: %w", err)
	}

	merged := domain.DayTable{}
	for _, info := range tables {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		stats.Files++
		table, err := s.source.ReadTable(info.Name)
		if err != nil {
			stats.FailedFiles++
			logger.Warn("erro ao ler tabela diária", zap.String("path", info.Name), zap.Error(err))
			continue
		}

		stats.RowsRead += len(table)
		merged = append(merged, FilterTable(table, pattern)...)
	}

	SortByTradeDate(merged)
	stats.RowsKept = len(merged)

	return merged, stats, nil
}

func (s *MergeService) Merge(ctx context.Context, pattern *domain.TickerPattern, outputPath string) (MergeStats, error) {
	merged, stats, err := s.Collect(ctx, pattern)
	if err != nil {
		return stats, err
	}
	return stats, s.Write(outputPath, merged, stats)
}

// Write grava linhas já coletadas; sem linhas nada é gravado e o retorno é
// ErrNothingToMerge.
func (s *MergeService) Write(outputPath string, merged domain.DayTable, stats MergeStats) error {
	if len(merged) == 0 {
		logger.Warn("nenhum CSV contribuiu com linhas",
			zap.Int("files", stats.Files),
			zap.Int("failed_files", stats.FailedFiles))
		return ErrNothingToMerge
	}

	if err := s.write(outputPath, merged); err != nil {
		return fmt.Errorf("erro ao gravar consolidado: %w", err)
	}

	metrics.MergedRows.Set(float64(len(merged)))
	logger.Info("consolidado gravado",
		zap.String("path", outputPath),
		zap.Int("files", stats.Files),
		zap.Int("rows", len(merged)))

	return nil
}

func FilterTable(table domain.DayTable, pattern *domain.TickerPattern) domain.DayTable {
	var kept domain.DayTable
	for _, rec := range table {
		if pattern.Match(rec.Ticker) && rec.HasPositiveQty() {
			kept = append(kept, rec)
		}
	}
	return kept
}

// SortByTradeDate ordena de forma estável; datas vazias vão para o fim.
func SortByTradeDate(table domain.DayTable) {
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i].TradeDate, table[j].TradeDate
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})
}
