package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/config"
	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/options"
	"github.com/jeovahfialho/b3-pregao/internal/storage/cache"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

func newOptionsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Boletins e históricos de opções",
	}

	cmd.AddCommand(newOptionsBookCmd(cfg), newOptionsPricesCmd(cfg))
	return cmd
}

func newOptionsBookCmd(cfg *config.Config) *cobra.Command {
	var start, end string
	var categories []string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Exporta os negócios de opções do BDI por dia e categoria",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := domain.ParseDateRange(start, end)
			if err != nil {
				return err
			}

			downloader := options.NewBookDownloader(cfg.OptionsBookURL,
				&http.Client{Timeout: cfg.HTTPTimeout},
				ingestion.NewPacer(cfg.RequestMinDelay, cfg.RequestMaxDelay))

			summary, err := downloader.DownloadRange(cmd.Context(), from, to, categories, cfg.OptionsDir)
			fmt.Printf("📊 Arquivos: %d | Falhas: %d\n", len(summary.Written), summary.Failed)
			return err
		},
	}

	cmd.Flags().StringVarP(&start, "start", "s", "", "Data inicial (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&end, "end", "e", "", "Data final (YYYY-MM-DD)")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", options.Categories, "Categorias do BDI")
	cmd.Flags().StringVarP(&cfg.OptionsDir, "dir", "d", cfg.OptionsDir, "Diretório de saída")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func newOptionsPricesCmd(cfg *config.Config) *cobra.Command {
	var output string
	var useCache, refresh bool

	cmd := &cobra.Command{
		Use:   "prices [ticker]",
		Short: "Histórico de prêmio, ativo-objeto e volatilidade implícita de uma opção",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := options.NewPriceClient(cfg.OptionsPriceURL,
				&http.Client{Timeout: cfg.HTTPTimeout},
				ingestion.NewPacer(cfg.RequestMinDelay, cfg.RequestMaxDelay))

			var source options.PriceSource = client
			if useCache {
				if redisCache, err := cache.NewRedisCache(cfg); err != nil {
					logger.Warn("Redis não disponível (continuando sem cache)", zap.Error(err))
				} else {
					defer redisCache.Close()
					if refresh {
						dropCachedSeries(ctx, redisCache, args[0])
					}
					source = options.NewCachedPriceClient(client, redisCache)
				}
			}

			series, err := source.History(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("erro ao criar arquivo: %w", err)
				}
				defer file.Close()
				out = file
			}

			if err := series.WriteCSV(out); err != nil {
				return err
			}
			if output != "" {
				fmt.Printf("✅ %d pontos gravados em %s\n", len(series.Points), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Arquivo CSV (padrão: saída padrão)")
	cmd.Flags().BoolVar(&useCache, "cache", false, "Usa o Redis como cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignora o valor em cache")
	return cmd
}

type cacheDeleter interface {
	Delete(ctx context.Context, key string) error
}

// dropCachedSeries apaga a série do cache; falha vira aviso e a consulta
// segue pelo site.
func dropCachedSeries(ctx context.Context, c cacheDeleter, ticker string) {
	if err := c.Delete(ctx, options.CacheKey(ticker)); err != nil {
		logger.Warn("erro ao limpar cache", zap.String("ticker", ticker), zap.Error(err))
	}
}
