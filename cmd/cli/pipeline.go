package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/config"
	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/exporter"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/service"
	"github.com/jeovahfialho/b3-pregao/internal/storage/filestore"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

func newCodesCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Lista os códigos de arquivo (PRaammdd) do intervalo",
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := codesForRange(start, end)
			if err != nil {
				return err
			}
			for _, code := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&start, "start", "s", "", "Data inicial (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&end, "end", "e", "", "Data final (YYYY-MM-DD)")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var (
		start, end string
		tickers    []string
		xlsxPath   string
		skipMerge  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Baixa os boletins do intervalo, gera os CSVs diários e consolida",
		Long: `Para cada dia do intervalo baixa o arquivo do pregão, extrai os zips
aninhados, interpreta o XML de boletins (BVMF 217) e grava
"Negociações AAAAMMDD.csv" no diretório de saída. Dias já gravados são
pulados, então uma nova execução só tenta os dias que falharam.
Ao final gera o consolidado com os tickers de interesse.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := codesForRange(start, end)
			if err != nil {
				return err
			}

			pattern, err := domain.CompileTickerPattern(tickers)
			if err != nil {
				return err
			}

			store := filestore.New(cfg.OutputDir)
			history := service.NewHistoryService(
				ingestion.NewDownloader(cfg.HistoryURL,
					ingestion.WithReferer(cfg.HistoryReferer),
					ingestion.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
					ingestion.WithPacer(ingestion.NewPacer(cfg.RequestMinDelay, cfg.RequestMaxDelay))),
				ingestion.NewUnpacker(cfg.KeepArchives),
				ingestion.MustNewParser(),
				store,
				cfg.ArchiveDir,
			)

			pending := history.Pending(codes)
			fmt.Printf("🚀 %d pregões no intervalo, %d pendentes\n", len(codes), len(pending))
			fmt.Printf("📂 Saída: %s\n\n", store.Root())

			summary := history.Run(cmd.Context(), codes)
			printRunSummary(summary)

			if !skipMerge {
				if err := runMerge(cmd, store, pattern, cfg.MergedOutput, xlsxPath); err != nil {
					return err
				}
			}

			writeMetrics(cfg)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVarP(&start, "start", "s", "", "Data inicial (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&end, "end", "e", "", "Data final (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Diretório dos CSVs diários")
	cmd.Flags().StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Diretório dos zips baixados")
	cmd.Flags().BoolVar(&cfg.KeepArchives, "keep-archives", cfg.KeepArchives, "Mantém o zip do pregão após extrair")
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", cfg.Tickers, "Expressões de ticker do consolidado")
	cmd.Flags().StringVarP(&cfg.MergedOutput, "merged", "m", cfg.MergedOutput, "Arquivo CSV consolidado")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Grava também o consolidado em XLSX")
	cmd.Flags().BoolVar(&skipMerge, "no-merge", false, "Não gera o consolidado")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func newMergeCmd(cfg *config.Config) *cobra.Command {
	var (
		tickers  []string
		xlsxPath string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Consolida os CSVs diários já gravados",
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := domain.CompileTickerPattern(tickers)
			if err != nil {
				return err
			}
			return runMerge(cmd, filestore.New(cfg.OutputDir), pattern, cfg.MergedOutput, xlsxPath)
		},
	}

	cmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Diretório dos CSVs diários")
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", cfg.Tickers, "Expressões de ticker")
	cmd.Flags().StringVarP(&cfg.MergedOutput, "merged", "m", cfg.MergedOutput, "Arquivo CSV consolidado")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Grava também o consolidado em XLSX")

	return cmd
}

func newListCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lista os CSVs diários gravados",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := filestore.New(cfg.OutputDir)
			days, err := store.DayTables()
			if err != nil {
				return err
			}

			fmt.Printf("📂 Listando pregões em %s\n\n", store.Root())
			if len(days) == 0 {
				fmt.Println("❌ Nenhum pregão processado")
				fmt.Println("💡 Use 'history' para baixar os boletins da B3")
				return nil
			}

			var total int64
			for _, d := range days {
				total += d.Size
				fmt.Printf("  - %-10s %-32s %10s\n", d.Code, d.Name, formatBytes(d.Size))
			}
			fmt.Printf("\n📊 %d pregões, %s\n", len(days), formatBytes(total))
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Diretório dos CSVs diários")
	return cmd
}

func newStatsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [ticker]",
		Short: "Resumo de um ticker a partir dos CSVs diários",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			merger := service.NewMergeService(filestore.New(cfg.OutputDir), filestore.WriteCSV)
			stats, err := service.NewAnalysisService(merger).TickerStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n📊 %s de %s a %s (%d pregões)\n", stats.Ticker, stats.FirstDate, stats.LastDate, stats.DaysTraded)
			fmt.Printf("├─ Mínima: R$ %s\n", stats.MinPrice.StringFixed(2))
			fmt.Printf("├─ Máxima: R$ %s\n", stats.MaxPrice.StringFixed(2))
			fmt.Printf("├─ Último: R$ %s\n", stats.LastPrice.StringFixed(2))
			fmt.Printf("├─ Média ponderada: R$ %s\n", stats.AvgPrice.StringFixed(2))
			fmt.Printf("└─ Quantidade: %s\n", formatNumber(stats.TotalQty.IntPart()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Diretório dos CSVs diários")
	return cmd
}

func codesForRange(start, end string) ([]domain.FileCode, error) {
	from, to, err := domain.ParseDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return domain.GenerateFileCodes(from, to)
}

func runMerge(cmd *cobra.Command, source service.TableSource, pattern *domain.TickerPattern, output, xlsxPath string) error {
	merger := service.NewMergeService(source, filestore.WriteCSV)
	fmt.Printf("🔎 Tickers: %s\n", strings.Join(pattern.Parts(), ", "))

	rows, stats, err := merger.Collect(cmd.Context(), pattern)
	if err != nil {
		return err
	}

	err = merger.Write(output, rows, stats)
	if errors.Is(err, service.ErrNothingToMerge) {
		fmt.Printf("⚠️  Nenhuma linha para consolidar (%d arquivos lidos)\n", stats.Files)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("✅ Consolidado: %s (%d linhas de %d arquivos)\n", output, stats.RowsKept, stats.Files)
	if stats.FailedFiles > 0 {
		fmt.Printf("⚠️  %d arquivos ilegíveis ignorados\n", stats.FailedFiles)
	}

	if xlsxPath != "" {
		if err := exporter.WriteXLSX(xlsxPath, rows); err != nil {
			return err
		}
		fmt.Printf("✅ Planilha: %s\n", xlsxPath)
	}

	return nil
}

func printRunSummary(summary service.RunSummary) {
	for _, r := range summary.Results {
		switch {
		case r.Skipped:
			continue
		case r.Err != nil:
			fmt.Printf("❌ %s (%s): %v\n", r.Code, r.Stage, r.Err)
		default:
			fmt.Printf("✅ %s: %d registros\n", r.Code, r.Rows)
		}
	}

	fmt.Printf("\n📊 Gravados: %d | Já existentes: %d | Falhas: %d\n", summary.Written, summary.Skipped, summary.Failed)
	if failed := summary.FailedCodes(); len(failed) > 0 {
		fmt.Println("💡 Execute novamente para tentar os pregões que falharam")
	}
}

func writeMetrics(cfg *config.Config) {
	if !cfg.MetricsEnabled || cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("erro ao gravar métricas", zap.String("path", cfg.MetricsFile), zap.Error(err))
		return
	}
	logger.Debug("métricas gravadas", zap.String("path", filepath.Clean(cfg.MetricsFile)))
}
