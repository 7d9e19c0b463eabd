package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/statarb/reversion/internal/broker"
	"github.com/statarb/reversion/internal/config"
	"github.com/statarb/reversion/internal/exec"
	"github.com/statarb/reversion/internal/journal"
	"github.com/statarb/reversion/internal/risk"
	"github.com/statarb/reversion/internal/service"
	"github.com/statarb/reversion/internal/state"
	"github.com/statarb/reversion/internal/strategy"
	"github.com/statarb/reversion/internal/telemetry"
	"github.com/statarb/reversion/internal/transport"
)

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	logOverride, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel, logOverride)
	logger := log.With().Str("app", appName).Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := transport.NewRedisBus(cfg.Transport.RedisAddr, logger)
	if err := bus.Ping(ctx); err != nil {
		return err
	}

	alpaca := broker.NewAlpaca(cfg.Broker, logger)
	ledger := state.NewManager(logger)
	metrics := telemetry.NewMetrics()
	riskMgr := risk.NewManager(cfg.Risk, alpaca, ledger, logger)

	var fills journal.Repo
	if cfg.Journal.Enabled {
		fills, err = journal.Connect(cfg.Journal.DSN, 5*time.Second)
		if err != nil {
			return err
		}
	}

	executor := exec.NewExecutor(ledger, riskMgr, alpaca, alpaca, fills, metrics, logger)
	evaluator := strategy.NewEvaluator(cfg.Strategy, cfg.Universe,
		service.NewMarketBarSource(alpaca), logger)
	svc := service.New(cfg.Service, bus, alpaca, evaluator, executor, metrics, logger)
	stream := broker.NewStream(cfg.Stream, bus, cfg.Universe, logger)
	telemetrySrv := telemetry.NewServer(cfg.Telemetry, metrics, ledger, logger)

	logger.Info().Strs("universe", cfg.Universe).Int("window", cfg.Strategy.Window).
		Msg("starting engine")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := telemetrySrv.Start(); err != nil {
			logger.Error().Err(err).Msg("telemetry server failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("bar stream failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("consume loop failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetrySrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown failed")
	}
	wg.Wait()
	logger.Info().Float64("daily_pnl", ledger.DailyPnL()).Msg("engine stopped")
	return nil
}
