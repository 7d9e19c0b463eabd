package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/statarb/reversion/internal/backtest"
	"github.com/statarb/reversion/internal/config"
	"github.com/statarb/reversion/internal/model"
)

func runBacktest(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	logOverride, _ := cmd.Flags().GetString("log-level")
	barsPath, _ := cmd.Flags().GetString("bars")
	hold, _ := cmd.Flags().GetBool("hold")

	if barsPath == "" {
		return fmt.Errorf("--bars is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel, logOverride)
	logger := log.With().Str("app", appName).Logger()

	bars, err := readBarsCSV(barsPath)
	if err != nil {
		return err
	}
	logger.Info().Int("bars", len(bars)).Str("file", barsPath).Msg("loaded bars")

	btCfg := backtest.Config{
		Strategy:       cfg.Strategy,
		Limits:         cfg.Risk,
		Slippage:       cfg.Slippage,
		LiquidateAtEnd: !hold,
	}
	bt := backtest.NewBacktester(btCfg, cfg.Universe, logger)
	summary, err := bt.Run(cmd.Context(), bars)
	if err != nil {
		return err
	}

	fmt.Printf("bars replayed:    %d\n", summary.Bars)
	fmt.Printf("signals:          %d\n", summary.Signals)
	fmt.Printf("filled orders:    %d\n", summary.FilledOrders)
	fmt.Printf("rejected orders:  %d\n", summary.RejectedOrders)
	fmt.Printf("realized pnl:     %.2f\n", summary.RealizedPnL)
	for _, pos := range summary.EndingPositions {
		fmt.Printf("open position:    %s qty=%d entry=%.2f\n", pos.Symbol, pos.Qty, pos.EntryPrice)
	}
	return nil
}

// readBarsCSV parses bars from a header-led CSV file with columns
// symbol,timestamp,open,high,low,close,volume. Timestamps are RFC 3339.
func readBarsCSV(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 7

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if header[0] != "symbol" {
		return nil, fmt.Errorf("unexpected csv header %q, want symbol,timestamp,open,high,low,close,volume", header[0])
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(record []string) (model.Bar, error) {
	ts, err := time.Parse(time.RFC3339, record[1])
	if err != nil {
		return model.Bar{}, fmt.Errorf("timestamp: %w", err)
	}
	fields := make([]float64, 5)
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(record[i+2], 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("%s: %w", name, err)
		}
		fields[i] = v
	}
	return model.Bar{
		Symbol:    record[0],
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}
