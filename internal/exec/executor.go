// Package exec drives the order lifecycle: price lookup, risk validation,
// fill, ledger update. Collaborator failures are absorbed here and turned
// into boolean outcomes so the service loop keeps running.
package exec

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/journal"
	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/risk"
	"github.com/statarb/reversion/internal/state"
	"github.com/statarb/reversion/internal/telemetry"
)

// PriceSource resolves the current market price used for risk checks.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Filler executes an order and returns the achieved fill price. Live
// deployments use the broker; backtests use the slippage model.
type Filler interface {
	SubmitMarketOrder(ctx context.Context, symbol string, qty int, side model.Side) (float64, error)
}

// Executor runs the order lifecycle end to end.
type Executor struct {
	ledger  *state.Manager
	risk    *risk.Manager
	prices  PriceSource
	filler  Filler
	journal journal.Repo // optional
	metrics *telemetry.Metrics
	log     zerolog.Logger

	// orderMu serializes the check-then-act span of each order so a
	// concurrent fill cannot invalidate a just-passed risk check.
	orderMu sync.Mutex
}

// NewExecutor wires the lifecycle components. journalRepo may be nil.
func NewExecutor(ledger *state.Manager, riskMgr *risk.Manager, prices PriceSource,
	filler Filler, journalRepo journal.Repo, metrics *telemetry.Metrics, log zerolog.Logger) *Executor {
	return &Executor{
		ledger:  ledger,
		risk:    riskMgr,
		prices:  prices,
		filler:  filler,
		journal: journalRepo,
		metrics: metrics,
		log:     log.With().Str("component", "executor").Logger(),
	}
}

// ExecuteMarketOrder runs the full lifecycle for a signed quantity and
// reports whether the order filled. The caller never observes partial
// state: any failure leaves the ledger untouched.
func (e *Executor) ExecuteMarketOrder(ctx context.Context, symbol string, qty int) bool {
	if qty == 0 {
		return false
	}
	e.orderMu.Lock()
	defer e.orderMu.Unlock()

	price, err := e.prices.LatestPrice(ctx, symbol)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", symbol).Int("qty", qty).
			Msg("price lookup failed, aborting order")
		e.metrics.OrdersTotal.WithLabelValues("price_error").Inc()
		return false
	}

	decision := e.risk.ValidateOrder(ctx, symbol, qty, price)
	if !decision.Allowed {
		e.metrics.RiskRejections.WithLabelValues(decision.FailedGate).Inc()
		e.metrics.OrdersTotal.WithLabelValues("rejected").Inc()
		return false
	}

	side := model.SideBuy
	if qty < 0 {
		side = model.SideSell
	}
	fillPrice, err := e.filler.SubmitMarketOrder(ctx, symbol, abs(qty), side)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", symbol).Int("qty", qty).
			Msg("order submission failed")
		e.metrics.OrdersTotal.WithLabelValues("fill_error").Inc()
		return false
	}

	if err := e.ledger.ApplyFill(symbol, qty, fillPrice); err != nil {
		// A fill that cannot be booked is a state-invariant violation.
		e.log.Error().Err(err).Str("symbol", symbol).Int("qty", qty).
			Float64("fill_price", fillPrice).Msg("ledger update failed after fill")
		e.metrics.OrdersTotal.WithLabelValues("state_error").Inc()
		return false
	}
	e.recordFill(ctx, symbol, qty, side, fillPrice)
	e.publishLedgerMetrics()
	e.metrics.OrdersTotal.WithLabelValues("filled").Inc()
	e.log.Info().Str("symbol", symbol).Int("qty", qty).Float64("fill_price", fillPrice).
		Msg("order executed")
	return true
}

// LiquidateAll force-closes every position through the fill path.
func (e *Executor) LiquidateAll(ctx context.Context) {
	e.orderMu.Lock()
	defer e.orderMu.Unlock()
	e.ledger.LiquidateAll(ctx, e.filler)
	e.publishLedgerMetrics()
}

func (e *Executor) recordFill(ctx context.Context, symbol string, qty int, side model.Side, price float64) {
	if e.journal == nil {
		return
	}
	fill := journal.Fill{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Symbol:    symbol,
		Side:      string(side),
		Qty:       abs(qty),
		Price:     price,
	}
	if err := e.journal.InsertFill(ctx, fill); err != nil {
		// Journal loss is tolerable; the ledger stays authoritative.
		e.log.Error().Err(err).Str("symbol", symbol).Msg("failed to journal fill")
	}
}

func (e *Executor) publishLedgerMetrics() {
	snap := e.ledger.Snapshot()
	e.metrics.RealizedPnL.Set(snap.DailyPnL)
	e.metrics.OpenPositions.Set(float64(len(snap.Positions)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
