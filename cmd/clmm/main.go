package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/config"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// logFile is closed when the process exits.
var logFile io.Closer

// main is the entry point for the CLMM simulation CLI.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "clmm",
		Short:         "Backtest, optimize and serve concentrated liquidity strategies",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil {
				log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
			}
			if err := config.LoadConfig(); err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				config.LogLevel = logLevel
			}

			var extra []io.Writer
			if config.LogFile != "" {
				fw, err := logger.FileWriter(config.LogFile)
				if err != nil {
					return err
				}
				logFile = fw
				extra = append(extra, fw)
			}
			logger.Initialize(config.LogLevel, extra...)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(
		newBacktestCommand(),
		newOptimizeCommand(),
		newMonteCarloCommand(),
		newRecommendCommand(),
		newFetchCommand(),
		newServeCommand(),
		newScheduleCommand(),
	)
	return root
}
