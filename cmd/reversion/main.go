package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "reversion"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Mean-reversion equity trading engine",
		Version: version,
		Long: `reversion trades Bollinger-band mean reversion on US equities.

The serve command runs the live engine: it ingests minute bars from the
broker stream, evaluates the strategy and routes orders through the risk
gates. The backtest command replays historical bars from a CSV file
through the same pipeline with simulated fills.`,
	}
	addGlobalFlags(rootCmd.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live trading engine",
		RunE:  runServe,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical bars through the strategy pipeline",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("bars", "", "CSV file of bars to replay (required)")
	backtestCmd.Flags().Bool("hold", false, "Keep positions open at the end instead of liquidating")

	rootCmd.AddCommand(serveCmd, backtestCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to YAML config (defaults apply when empty)")
	fs.String("log-level", "", "Override log level (trace|debug|info|warn|error)")
}

// setLogLevel applies the config level, then any CLI override.
func setLogLevel(configured, override string) {
	level := configured
	if override != "" {
		level = override
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, keeping info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
