package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/options"
	"github.com/jeovahfialho/b3-pregao/internal/service"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

const Version = "1.0.0"

type DayStore interface {
	Root() string
	DayTables() ([]domain.DayTableInfo, error)
	ReadTable(name string) (domain.DayTable, error)
}

type Merger interface {
	Collect(ctx context.Context, pattern *domain.TickerPattern) (domain.DayTable, service.MergeStats, error)
	Merge(ctx context.Context, pattern *domain.TickerPattern, outputPath string) (service.MergeStats, error)
}

type StatsProvider interface {
	TickerStats(ctx context.Context, ticker string) (*domain.TickerStats, error)
}

type HistoryProvider interface {
	TickerHistory(ctx context.Context, filter domain.ReportFilter, limit int) ([]domain.PriceReport, error)
}

type FileLoader interface {
	ProcessFile(ctx context.Context, filePath string) (*service.ProcessFileResult, error)
}

type CacheAdmin interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

type PoolStats interface {
	Stats() *pgxpool.Stat
}

type HealthChecker func(ctx context.Context) error

// Deps reúne os serviços expostos pela API. Store, Merger e Stats são
// obrigatórios; os demais dependem de Postgres/Redis e podem ser nil.
type Deps struct {
	Store        DayStore
	Merger       Merger
	Stats        StatsProvider
	Prices       options.PriceSource
	History      HistoryProvider
	Loader       FileLoader
	Cache        CacheAdmin
	DB           PoolStats
	Checks       map[string]HealthChecker
	Tickers      *domain.TickerPattern
	MergedOutput string
}

type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth)

	outputStart := time.Now()
	if info, err := os.Stat(h.Store.Root()); err != nil || !info.IsDir() {
		msg := "diretório de saída ausente"
		if err != nil {
			msg = err.Error()
		}
		services["output_dir"] = ServiceHealth{Status: "unhealthy", Error: msg}
	} else {
		services["output_dir"] = ServiceHealth{Status: "healthy", Latency: time.Since(outputStart).String()}
	}

	for name, check := range h.Checks {
		start := time.Now()
		if err := check(ctx); err != nil {
			services[name] = ServiceHealth{Status: "unhealthy", Error: err.Error()}
			continue
		}
		services[name] = ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
	}

	status := "ready"
	for _, svc := range services {
		if svc.Status != "healthy" {
			status = "not_ready"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   Version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

func (h *Handler) ListDays(c *fiber.Ctx) error {
	days, err := h.Store.DayTables()
	if err != nil {
		h.log(c).Error("erro ao listar pregões", zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao listar pregões")
	}

	return c.JSON(DayListResponse{
		OutputDir: h.Store.Root(),
		Days:      days,
		Count:     len(days),
	})
}

func (h *Handler) GetDay(c *fiber.Ctx) error {
	code, err := domain.ParseFileCode(strings.ToUpper(c.Params("code")))
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, "código inválido (use PRaammdd)")
	}

	table, err := h.Store.ReadTable(code.DayTableName())
	if errors.Is(err, os.ErrNotExist) {
		return h.fail(c, fiber.StatusNotFound, fmt.Sprintf("pregão %s não processado", code))
	}
	if err != nil {
		h.log(c).Error("erro ao ler pregão", zap.String("file_code", code.String()), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao ler pregão")
	}

	return c.JSON(DayTableResponse{Code: code, Rows: table, Count: len(table)})
}

func (h *Handler) GetMerged(c *fiber.Ctx) error {
	pattern, err := h.patternFromQuery(c.Query("tickers"))
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	rows, stats, err := h.Merger.Collect(c.Context(), pattern)
	if err != nil {
		h.log(c).Error("erro ao consolidar", zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao consolidar pregões")
	}

	return c.JSON(MergedResponse{
		Pattern:     pattern.String(),
		Tickers:     pattern.Parts(),
		Files:       stats.Files,
		FailedFiles: stats.FailedFiles,
		Rows:        rows,
		Count:       len(rows),
	})
}

func (h *Handler) GetTickerStats(c *fiber.Ctx) error {
	ticker := strings.ToUpper(c.Params("ticker"))

	stats, err := h.Stats.TickerStats(c.Context(), ticker)
	if errors.Is(err, service.ErrTickerNotFound) {
		return h.fail(c, fiber.StatusNotFound, fmt.Sprintf("nenhum dado encontrado para o ticker %s", ticker))
	}
	if err != nil {
		h.log(c).Error("erro ao buscar estatísticas", zap.String("ticker", ticker), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao buscar estatísticas")
	}

	return c.JSON(stats)
}

func (h *Handler) GetTickerHistory(c *fiber.Ctx) error {
	if h.History == nil {
		return h.fail(c, fiber.StatusServiceUnavailable, "banco de dados não configurado")
	}

	filter := domain.ReportFilter{Ticker: strings.ToUpper(c.Params("ticker"))}

	if dateStr := c.Query("start_date"); dateStr != "" {
		parsed, err := time.Parse(domain.DateLayout, dateStr)
		if err != nil {
			return h.fail(c, fiber.StatusBadRequest, "formato de data inicial inválido (use YYYY-MM-DD)")
		}
		filter.StartDate = &parsed
	}

	if dateStr := c.Query("end_date"); dateStr != "" {
		parsed, err := time.Parse(domain.DateLayout, dateStr)
		if err != nil {
			return h.fail(c, fiber.StatusBadRequest, "formato de data final inválido (use YYYY-MM-DD)")
		}
		filter.EndDate = &parsed
	}

	history, err := h.History.TickerHistory(c.Context(), filter, c.QueryInt("limit", 0))
	if err != nil {
		h.log(c).Error("erro ao buscar histórico", zap.String("ticker", filter.Ticker), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao buscar histórico")
	}

	return c.JSON(TickerHistoryResponse{Ticker: filter.Ticker, History: history, Count: len(history)})
}

func (h *Handler) GetOptionPrices(c *fiber.Ctx) error {
	if h.Prices == nil {
		return h.fail(c, fiber.StatusServiceUnavailable, "fonte de preços de opções não configurada")
	}

	ticker := c.Params("ticker")
	series, err := h.Prices.History(c.Context(), ticker)
	if errors.Is(err, ingestion.ErrUnexpectedStatus) {
		return h.fail(c, fiber.StatusBadGateway, err.Error())
	}
	if err != nil {
		h.log(c).Error("erro ao buscar preços da opção", zap.String("ticker", ticker), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao buscar preços da opção")
	}

	return c.JSON(series)
}

func (h *Handler) RunMerge(c *fiber.Ctx) error {
	var req MergeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.fail(c, fiber.StatusBadRequest, "corpo da requisição inválido")
		}
	}

	pattern := h.Tickers
	if len(req.Tickers) > 0 {
		var err error
		if pattern, err = domain.CompileTickerPattern(req.Tickers); err != nil {
			return h.fail(c, fiber.StatusBadRequest, err.Error())
		}
	}

	start := time.Now()
	stats, err := h.Merger.Merge(c.Context(), pattern, h.MergedOutput)
	if errors.Is(err, service.ErrNothingToMerge) {
		return h.fail(c, fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		h.log(c).Error("erro ao consolidar", zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao consolidar pregões")
	}

	return c.JSON(MergeResponse{
		Status:   "success",
		Output:   h.MergedOutput,
		Tickers:  pattern.Parts(),
		Files:    stats.Files,
		Rows:     stats.RowsKept,
		Duration: time.Since(start).String(),
	})
}

func (h *Handler) LoadDataFromFile(c *fiber.Ctx) error {
	if h.Loader == nil {
		return h.fail(c, fiber.StatusServiceUnavailable, "banco de dados não configurado")
	}

	var req LoadDataRequest
	if err := c.BodyParser(&req); err != nil || req.FilePath == "" {
		return h.fail(c, fiber.StatusBadRequest, "corpo da requisição inválido")
	}

	if req.Async {
		jobID := generateJobID()
		log := h.log(c).With(zap.String("job_id", jobID))

		go func() {
			result, err := h.Loader.ProcessFile(context.Background(), req.FilePath)
			if err != nil {
				log.Error("erro ao processar arquivo",
					zap.String("file", req.FilePath),
					zap.Error(err))
				return
			}
			log.Info("arquivo processado com sucesso",
				zap.String("file", req.FilePath),
				zap.Int64("records", result.RecordsCount))
		}()

		return c.Status(fiber.StatusAccepted).JSON(LoadDataResponse{
			JobID:   jobID,
			Status:  "processing",
			Message: "processamento iniciado",
		})
	}

	result, err := h.Loader.ProcessFile(c.Context(), req.FilePath)
	if err != nil {
		h.log(c).Error("erro ao processar arquivo", zap.String("file", req.FilePath), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao processar arquivo")
	}

	return c.JSON(LoadDataResponse{
		RecordsCount: result.RecordsCount,
		Status:       "completed",
		Message:      "arquivo processado com sucesso",
	})
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	if h.Cache == nil {
		return h.fail(c, fiber.StatusServiceUnavailable, "cache não configurado")
	}

	pattern := c.Params("pattern", "options:chart:*")

	removed, err := h.Cache.DeletePattern(c.Context(), pattern)
	if err != nil {
		h.log(c).Error("erro ao invalidar cache", zap.String("pattern", pattern), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, "erro ao invalidar cache")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"removed": removed,
		"message": fmt.Sprintf("cache invalidado para padrão: %s", pattern),
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		API: APIStats{
			ActiveGoroutines: runtime.NumGoroutine(),
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
		},
	}

	if days, err := h.Store.DayTables(); err == nil {
		response.Pipeline.DayTables = len(days)
		for _, d := range days {
			response.Pipeline.TotalBytes += d.Size
		}
		if len(days) > 0 {
			response.Pipeline.FirstCode = days[0].Code.String()
			response.Pipeline.LastCode = days[len(days)-1].Code.String()
		}
	}

	if h.DB != nil {
		dbStats := h.DB.Stats()
		response.Database = &DatabaseStats{
			ActiveConnections: dbStats.AcquiredConns(),
			IdleConnections:   dbStats.IdleConns(),
			TotalConnections:  dbStats.TotalConns(),
			WaitCount:         dbStats.EmptyAcquireCount(),
			WaitDuration:      dbStats.AcquireDuration().String(),
		}
	}

	return c.JSON(response)
}

func (h *Handler) patternFromQuery(tickers string) (*domain.TickerPattern, error) {
	if strings.TrimSpace(tickers) == "" {
		return h.Tickers, nil
	}
	return domain.CompileTickerPattern(strings.Split(tickers, ","))
}

func (h *Handler) fail(c *fiber.Ctx, code int, message string) error {
	return writeError(c, code, message)
}

// log devolve o logger com o request_id da requisição.
func (h *Handler) log(c *fiber.Ctx) *zap.Logger {
	return logger.WithContext(c.UserContext())
}

func generateJobID() string {
	return "job_" + utils.UUIDv4()
}
