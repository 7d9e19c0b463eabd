// Package strategy turns price bars into trade signals. The Bollinger
// reversion evaluator shorts closes at or above the upper band and buys
// closes at or below the lower band.
package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/stats"
)

// BarSource supplies the trailing close history an evaluation needs. Live
// deployments back it with the broker's historical-bars API; backtests with
// the replayed bars themselves.
type BarSource interface {
	RecentCloses(ctx context.Context, symbol string, n int) ([]float64, error)
}

// evalState tracks which phase of the bar cycle the evaluator is in. The
// evaluator is Idle between bars and Evaluating while bands are computed;
// bars outside the universe never leave Idle.
type evalState int

const (
	stateIdle evalState = iota
	stateEvaluating
)

// Config holds evaluator tuning.
type Config struct {
	Window       int     `yaml:"window"`
	NumStd       float64 `yaml:"num_std"`
	LookbackBars int     `yaml:"lookback_bars"`
}

// DefaultConfig matches the production reversion setup.
func DefaultConfig() Config {
	return Config{Window: 20, NumStd: 2, LookbackBars: 120}
}

// Evaluator is the Bollinger-band mean-reversion strategy.
type Evaluator struct {
	cfg      Config
	universe map[string]struct{}
	bars     BarSource
	state    evalState
	log      zerolog.Logger
}

// NewEvaluator creates an evaluator for the given symbol universe.
func NewEvaluator(cfg Config, universe []string, bars BarSource, log zerolog.Logger) *Evaluator {
	symbols := make(map[string]struct{}, len(universe))
	for _, s := range universe {
		symbols[s] = struct{}{}
	}
	return &Evaluator{
		cfg:      cfg,
		universe: symbols,
		bars:     bars,
		state:    stateIdle,
		log:      log.With().Str("component", "strategy").Logger(),
	}
}

// InUniverse reports whether the evaluator trades the symbol.
func (e *Evaluator) InUniverse(symbol string) bool {
	_, ok := e.universe[symbol]
	return ok
}

// OnBar evaluates one bar and emits exactly one signal (possibly no-action).
// Statistical errors propagate to the caller. Quantity is fixed at unit
// size; position sizing is an extension point, not implemented here.
func (e *Evaluator) OnBar(ctx context.Context, bar model.Bar) (model.Signal, error) {
	if !e.InUniverse(bar.Symbol) {
		return model.NoAction(), nil
	}

	e.state = stateEvaluating
	defer func() { e.state = stateIdle }()

	closes, err := e.bars.RecentCloses(ctx, bar.Symbol, e.cfg.LookbackBars)
	if err != nil {
		return model.NoAction(), fmt.Errorf("fetch closes for %s: %w", bar.Symbol, err)
	}
	bands, err := stats.BollingerBands(closes, e.cfg.Window, e.cfg.NumStd)
	if err != nil {
		return model.NoAction(), fmt.Errorf("bollinger bands for %s: %w", bar.Symbol, err)
	}

	last := len(closes) - 1
	upper, lower := bands.Upper[last], bands.Lower[last]
	if math.IsNaN(upper) || math.IsNaN(lower) {
		return model.NoAction(), nil
	}

	switch {
	case bar.Close >= upper:
		e.log.Info().Str("symbol", bar.Symbol).Float64("close", bar.Close).
			Float64("upper_band", upper).Msg("close at upper band, short signal")
		return model.Signal{Do: true, Side: model.SideSell, Qty: 1, Symbol: bar.Symbol}, nil
	case bar.Close <= lower:
		e.log.Info().Str("symbol", bar.Symbol).Float64("close", bar.Close).
			Float64("lower_band", lower).Msg("close at lower band, long signal")
		return model.Signal{Do: true, Side: model.SideBuy, Qty: 1, Symbol: bar.Symbol}, nil
	default:
		return model.NoAction(), nil
	}
}
