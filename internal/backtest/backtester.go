package backtest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/exec"
	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/risk"
	"github.com/statarb/reversion/internal/state"
	"github.com/statarb/reversion/internal/stats"
	"github.com/statarb/reversion/internal/strategy"
	"github.com/statarb/reversion/internal/telemetry"
)

var (
	// ErrNoBar means a fill or price was requested for a symbol that has
	// not appeared in the replay yet.
	ErrNoBar = errors.New("backtest: no bar observed for symbol")
	// ErrNoBars means Run was called with an empty bar slice.
	ErrNoBars = errors.New("backtest: no bars to replay")
)

// Config tunes a backtest run.
type Config struct {
	Strategy strategy.Config `yaml:"strategy"`
	Limits   risk.Limits     `yaml:"limits"`
	Slippage SlippageConfig  `yaml:"slippage"`
	// LiquidateAtEnd force-closes open positions at the final bar so the
	// summary reports fully realized PnL.
	LiquidateAtEnd bool `yaml:"liquidate_at_end"`
}

// DefaultConfig mirrors the live engine's parameters.
func DefaultConfig() Config {
	return Config{
		Strategy:       strategy.DefaultConfig(),
		Limits:         risk.DefaultLimits(),
		Slippage:       DefaultSlippageConfig(),
		LiquidateAtEnd: true,
	}
}

// Summary reports the outcome of a replay.
type Summary struct {
	Bars            int              `json:"bars"`
	Signals         int              `json:"signals"`
	FilledOrders    int              `json:"filled_orders"`
	RejectedOrders  int              `json:"rejected_orders"`
	RealizedPnL     float64          `json:"realized_pnl"`
	EndingPositions []state.Position `json:"ending_positions"`
}

// replayFeed mirrors the live market-data surface for replayed bars: it is
// the close history behind the evaluator, the price source behind the risk
// check and the fill path behind the executor.
type replayFeed struct {
	slippage *SlippageModel

	mu     sync.Mutex
	closes map[string][]float64
	latest map[string]model.Bar
}

func newReplayFeed(slippage *SlippageModel) *replayFeed {
	return &replayFeed{
		slippage: slippage,
		closes:   make(map[string][]float64),
		latest:   make(map[string]model.Bar),
	}
}

func (f *replayFeed) observe(bar model.Bar) {
	f.mu.Lock()
	f.closes[bar.Symbol] = append(f.closes[bar.Symbol], bar.Close)
	f.latest[bar.Symbol] = bar
	f.mu.Unlock()
}

func (f *replayFeed) RecentCloses(_ context.Context, symbol string, n int) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	closes := f.closes[symbol]
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	out := make([]float64, len(closes))
	copy(out, closes)
	return out, nil
}

func (f *replayFeed) LatestPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bar, ok := f.latest[symbol]
	if !ok {
		return 0, ErrNoBar
	}
	return bar.Close, nil
}

func (f *replayFeed) SubmitMarketOrder(_ context.Context, symbol string, qty int, side model.Side) (float64, error) {
	f.mu.Lock()
	bar, ok := f.latest[symbol]
	f.mu.Unlock()
	if !ok {
		return 0, ErrNoBar
	}
	return f.slippage.FillPrice(bar, side, qty), nil
}

// replayClock keeps the market permanently open so historical sessions are
// not filtered by the wall clock.
type replayClock struct{}

func (replayClock) IsOpen(context.Context) (bool, error)        { return true, nil }
func (replayClock) MinutesToClose(context.Context) (int, error) { return 390, nil }
func (replayClock) MinutesToOpen(context.Context) (int, error)  { return 0, nil }

// Backtester replays bars through the same evaluator, risk and state
// pipeline the live engine runs, with fills simulated by the slippage
// model.
type Backtester struct {
	cfg       Config
	feed      *replayFeed
	ledger    *state.Manager
	evaluator *strategy.Evaluator
	executor  *exec.Executor
	log       zerolog.Logger
}

// NewBacktester assembles a replay pipeline over the given universe.
func NewBacktester(cfg Config, universe []string, log zerolog.Logger) *Backtester {
	log = log.With().Str("component", "backtest").Logger()
	feed := newReplayFeed(NewSlippageModel(cfg.Slippage))
	ledger := state.NewManager(log)
	riskMgr := risk.NewManager(cfg.Limits, replayClock{}, ledger, log)
	return &Backtester{
		cfg:       cfg,
		feed:      feed,
		ledger:    ledger,
		evaluator: strategy.NewEvaluator(cfg.Strategy, universe, feed, log),
		executor:  exec.NewExecutor(ledger, riskMgr, feed, feed, nil, telemetry.NewMetrics(), log),
		log:       log,
	}
}

// Run replays bars in timestamp order and returns the run summary.
func (b *Backtester) Run(ctx context.Context, bars []model.Bar) (Summary, error) {
	if len(bars) == 0 {
		return Summary{}, ErrNoBars
	}
	ordered := make([]model.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var summary Summary
	for _, bar := range ordered {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		b.feed.observe(bar)
		summary.Bars++

		sig, err := b.evaluator.OnBar(ctx, bar)
		if errors.Is(err, stats.ErrWindowTooLarge) {
			// Warm-up: not enough closes for a full band window yet.
			continue
		}
		if err != nil {
			return summary, err
		}
		if !sig.Do {
			continue
		}
		summary.Signals++
		if b.executor.ExecuteMarketOrder(ctx, sig.Symbol, sig.SignedQty()) {
			summary.FilledOrders++
		} else {
			summary.RejectedOrders++
		}
	}

	if b.cfg.LiquidateAtEnd {
		b.executor.LiquidateAll(ctx)
	}
	snap := b.ledger.Snapshot()
	summary.RealizedPnL = snap.DailyPnL
	for _, pos := range snap.Positions {
		summary.EndingPositions = append(summary.EndingPositions, pos)
	}
	sort.Slice(summary.EndingPositions, func(i, j int) bool {
		return summary.EndingPositions[i].Symbol < summary.EndingPositions[j].Symbol
	})
	b.log.Info().Int("bars", summary.Bars).Int("signals", summary.Signals).
		Int("filled", summary.FilledOrders).Int("rejected", summary.RejectedOrders).
		Float64("realized_pnl", summary.RealizedPnL).Msg("backtest complete")
	return summary, nil
}
