package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/api"
	"github.com/jeovahfialho/b3-pregao/internal/config"
	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/options"
	"github.com/jeovahfialho/b3-pregao/internal/service"
	"github.com/jeovahfialho/b3-pregao/internal/storage/cache"
	"github.com/jeovahfialho/b3-pregao/internal/storage/filestore"
	"github.com/jeovahfialho/b3-pregao/internal/storage/postgres"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

// @title B3 Pregão API
// @version 1.0
// @description API de consulta aos boletins diários de negociação da B3
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := logger.InitWithOptions(logger.Options{
		Level:       cfg.LogLevel,
		Development: cfg.Environment == "development",
		Format:      cfg.LogFormat,
		File:        cfg.LogFile,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "Erro ao inicializar logger:", err)
		os.Exit(1)
	}
	defer logger.Close()

	tickers, err := domain.CompileTickerPattern(cfg.Tickers)
	if err != nil {
		logger.Fatal("TICKERS inválido", zap.Error(err))
	}

	store := filestore.New(cfg.OutputDir)
	merger := service.NewMergeService(store, filestore.WriteCSV)

	deps := api.Deps{
		Store:        store,
		Merger:       merger,
		Stats:        service.NewAnalysisService(merger),
		Checks:       map[string]api.HealthChecker{},
		Tickers:      tickers,
		MergedOutput: cfg.MergedOutput,
	}

	prices := options.NewPriceClient(cfg.OptionsPriceURL, &http.Client{Timeout: cfg.HTTPTimeout}, nil)
	deps.Prices = prices

	if db := connectPostgres(cfg); db != nil {
		defer db.Close()
		deps.DB = db
		deps.History = service.NewReportService(db.Pool(), cfg.DatabaseTable)
		deps.Loader = service.NewIngestionService(filestore.ReadCSV,
			ingestion.NewBulkLoader(db.Pool(), cfg.DatabaseTable, cfg.BatchSize))
		deps.Checks["database"] = db.HealthCheck
	}

	if redisCache := connectRedis(cfg); redisCache != nil {
		defer redisCache.Close()
		deps.Prices = options.NewCachedPriceClient(prices, redisCache)
		deps.Cache = redisCache
		deps.Checks["redis"] = redisCache.HealthCheck
	}

	app := fiber.New(fiber.Config{
		ServerHeader:          "B3-Pregao",
		DisableStartupMessage: true,
		AppName:               "B3 Pregão v" + api.Version,
		ReadTimeout:           cfg.APIReadTimeout,
		WriteTimeout:          cfg.APIWriteTimeout,
		IdleTimeout:           120 * time.Second,
		ProxyHeader:           "X-Forwarded-For",
		BodyLimit:             1 * 1024 * 1024,
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	api.SetupRoutes(app, api.NewHandler(deps), api.RouteConfig{
		AdminUser:     cfg.AdminUser,
		AdminPassword: cfg.AdminPassword,
		RateLimit:     cfg.APIRateLimit,
		Metrics:       cfg.MetricsEnabled,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("encerrando servidor")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("erro ao encerrar servidor", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("iniciando servidor", zap.String("addr", addr), zap.String("output_dir", store.Root()))

	if err := app.Listen(addr); err != nil {
		logger.Fatal("erro no servidor", zap.Error(err))
	}
}

// connectPostgres devolve nil quando o banco não está disponível; as rotas
// que dependem dele respondem 503.
func connectPostgres(cfg *config.Config) *postgres.DB {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Warn("PostgreSQL não disponível (continuando sem banco)", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.EnsureSchema(ctx, cfg.DatabaseTable); err != nil {
		logger.Warn("erro ao preparar tabela", zap.Error(err))
	}

	logger.Info("conectado ao PostgreSQL")
	return db
}

func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Warn("Redis não disponível (continuando sem cache)", zap.Error(err))
		return nil
	}

	logger.Info("conectado ao Redis")
	return redisCache
}
