package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeovahfialho/b3-pregao/internal/config"
	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/service"
	"github.com/jeovahfialho/b3-pregao/internal/storage/cache"
	"github.com/jeovahfialho/b3-pregao/internal/storage/filestore"
	"github.com/jeovahfialho/b3-pregao/internal/storage/postgres"
)

func newLoadCmd(cfg *config.Config) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "load [files...]",
		Short: "Carrega CSVs (consolidado por padrão) no PostgreSQL",
		Long: `Carrega arquivos CSV no formato dos pregões na tabela DATABASE_TABLE.
Sem argumentos carrega o consolidado (MERGED_OUTPUT). Linhas já
existentes (mesma data e ticker) são atualizadas.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				files = []string{cfg.MergedOutput}
			}
			return loadFiles(cmd.Context(), cfg, files, workers)
		},
	}

	cmd.Flags().StringVar(&cfg.DatabaseTable, "table", cfg.DatabaseTable, "Tabela de destino")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Linhas por COPY")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Arquivos carregados em paralelo")
	return cmd
}

func newQueryCmd(cfg *config.Config) *cobra.Command {
	var start, end string
	var limit int

	cmd := &cobra.Command{
		Use:   "query [ticker]",
		Short: "Consulta o histórico carregado de um ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.ReportFilter{Ticker: args[0]}

			if start != "" {
				parsed, err := time.Parse(domain.DateLayout, start)
				if err != nil {
					return fmt.Errorf("data inválida: %w", err)
				}
				filter.StartDate = &parsed
			}
			if end != "" {
				parsed, err := time.Parse(domain.DateLayout, end)
				if err != nil {
					return fmt.Errorf("data inválida: %w", err)
				}
				filter.EndDate = &parsed
			}

			return queryTicker(cmd.Context(), cfg, filter, limit)
		},
	}

	cmd.Flags().StringVarP(&start, "start-date", "s", "", "Data inicial (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&end, "end-date", "e", "", "Data final (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 30, "Máximo de pregões")
	return cmd
}

func newHealthCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Verifica saúde do sistema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth(cmd.Context(), cfg)
		},
	}
}

func loadFiles(ctx context.Context, cfg *config.Config, files []string, workers int) error {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx, cfg.DatabaseTable); err != nil {
		return err
	}

	ingestionService := service.NewIngestionService(filestore.ReadCSV,
		ingestion.NewBulkLoader(db.Pool(), cfg.DatabaseTable, cfg.BatchSize))

	fmt.Printf("📥 Carregando %d arquivo(s) em %s...\n\n", len(files), cfg.DatabaseTable)

	process := func(ctx context.Context, file string) (int64, error) {
		result, err := ingestionService.ProcessFile(ctx, file)
		if err != nil {
			return 0, err
		}
		return result.RecordsCount, nil
	}

	var totalRecords int64
	for _, r := range ingestion.ProcessAll(ctx, workers, files, process) {
		if r.Error != nil {
			fmt.Printf("❌ Erro em %s: %v\n", r.FilePath, r.Error)
			continue
		}
		fmt.Printf("✅ Carregados %d registros de %s\n", r.RecordsCount, r.FilePath)
		totalRecords += r.RecordsCount
	}

	fmt.Printf("\n📊 Total: %d registros carregados\n", totalRecords)
	return nil
}

func queryTicker(ctx context.Context, cfg *config.Config, filter domain.ReportFilter, limit int) error {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer db.Close()

	fmt.Printf("🔍 Buscando dados para %s...\n", filter.Ticker)

	history, err := service.NewReportService(db.Pool(), cfg.DatabaseTable).TickerHistory(ctx, filter, limit)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		fmt.Println("❌ Nenhum pregão encontrado")
		return nil
	}

	fmt.Printf("\n%-12s %10s %10s %10s %14s\n", "Data", "Mínima", "Máxima", "Último", "Quantidade")
	for _, r := range history {
		fmt.Printf("%-12s %10s %10s %10s %14s\n",
			r.TradeDate.Format(domain.DateLayout),
			r.MinPrice.Decimal.StringFixed(2),
			r.MaxPrice.Decimal.StringFixed(2),
			r.LastPrice.Decimal.StringFixed(2),
			formatNumber(r.TradeQty))
	}

	return nil
}

func checkHealth(ctx context.Context, cfg *config.Config) error {
	fmt.Println("🏥 Verificando saúde do sistema...")
	fmt.Println()

	store := filestore.New(cfg.OutputDir)
	fmt.Print("Diretório de saída: ")
	if days, err := store.DayTables(); err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		fmt.Printf("✅ %s (%d pregões)\n", store.Root(), len(days))
	}

	fmt.Print("PostgreSQL: ")
	db, err := postgres.NewDB(cfg)
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		defer db.Close()

		var result int
		if err := db.Pool().QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
			fmt.Printf("❌ Erro na query: %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Print("Redis: ")
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		fmt.Printf("❌ Não disponível: %v\n", err)
	} else {
		defer redisCache.Close()

		if err := redisCache.HealthCheck(ctx); err != nil {
			fmt.Printf("❌ Erro: %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Println("\n✅ Verificação concluída!")
	return nil
}
