package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeovahfialho/b3-pregao/internal/config"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Println("❌ Configuração inválida:", err)
		os.Exit(1)
	}

	// Ctrl+C interrompe entre pregões; o dia em andamento termina ou falha
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(cfg)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		logger.Close()
		stop()
		os.Exit(1)
	}
	logger.Close()
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "b3-pregao",
		Short: "Histórico de negociações da B3 por pregão",
		Long: `CLI para baixar os boletins diários da B3 (pesquisa por pregão),
gerar um CSV por dia e consolidar os tickers de interesse.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.InitWithOptions(logger.Options{
				Level:       logLevel,
				Development: cfg.Environment == "development",
				Format:      cfg.LogFormat,
		File:        cfg.LogFile,
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Nível de log (debug, info, warn, error)")

	rootCmd.AddCommand(
		newCodesCmd(),
		newHistoryCmd(cfg),
		newMergeCmd(cfg),
		newListCmd(cfg),
		newStatsCmd(cfg),
		newLoadCmd(cfg),
		newQueryCmd(cfg),
		newOptionsCmd(cfg),
		newHealthCmd(cfg),
	)

	return rootCmd
}
