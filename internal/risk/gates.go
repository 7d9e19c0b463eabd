// Package risk validates proposed orders against hard limits before they
// reach the broker. Gates run in a fixed order with the cheapest first, and
// the first failing gate short-circuits the rest. A rejection is a normal
// negative outcome, not an error.
package risk

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/broker"
	"github.com/statarb/reversion/internal/state"
)

// Gate names reported in decisions and metrics.
const (
	GateMarketHours  = "market_hours"
	GateDirection    = "directional_conflict"
	GatePositionSize = "position_size"
	GateDailyLoss    = "daily_loss"
)

// Limits holds the hard risk thresholds. DailyLossLimit is negative.
type Limits struct {
	MaxPositionNotional float64 `yaml:"max_position_notional"`
	DailyLossLimit      float64 `yaml:"daily_loss_limit"`
	// AdverseMovePct is the conservative adverse-move assumption used to
	// project the PnL effect of an order that has not yet closed.
	AdverseMovePct float64 `yaml:"adverse_move_pct"`
}

// DefaultLimits mirrors the production defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionNotional: 10000,
		DailyLossLimit:      -5000,
		AdverseMovePct:      0.02,
	}
}

// Decision is the outcome of one validation pass.
type Decision struct {
	Allowed    bool
	FailedGate string
	Reason     string
}

func allow() Decision { return Decision{Allowed: true} }

func reject(gate, reason string) Decision {
	return Decision{Allowed: false, FailedGate: gate, Reason: reason}
}

// Manager evaluates the gate chain against a consistent ledger snapshot.
type Manager struct {
	limits Limits
	clock  broker.Clock
	ledger *state.Manager
	log    zerolog.Logger
}

// NewManager creates a risk manager bound to a clock and the ledger.
func NewManager(limits Limits, clock broker.Clock, ledger *state.Manager, log zerolog.Logger) *Manager {
	if limits.AdverseMovePct <= 0 {
		limits.AdverseMovePct = DefaultLimits().AdverseMovePct
	}
	return &Manager{
		limits: limits,
		clock:  clock,
		ledger: ledger,
		log:    log.With().Str("component", "risk").Logger(),
	}
}

// ValidateOrder runs the gate chain for a proposed (symbol, qty, price)
// order. qty is signed. Every rejection is logged with enough context to
// reconstruct the decision.
func (m *Manager) ValidateOrder(ctx context.Context, symbol string, qty int, price float64) Decision {
	decision := m.evaluate(ctx, symbol, qty, price)
	if !decision.Allowed {
		m.log.Warn().Str("symbol", symbol).Int("qty", qty).Float64("price", price).
			Str("gate", decision.FailedGate).Str("reason", decision.Reason).
			Msg("order rejected")
	}
	return decision
}

func (m *Manager) evaluate(ctx context.Context, symbol string, qty int, price float64) Decision {
	// Cheapest first: a closed market short-circuits before touching
	// position state.
	open, err := m.clock.IsOpen(ctx)
	if err != nil {
		return reject(GateMarketHours, "market clock unavailable: "+err.Error())
	}
	if !open {
		return reject(GateMarketHours, "market closed")
	}

	snap := m.ledger.Snapshot()
	currentQty := snap.Positions[symbol].Qty

	if currentQty*qty > 0 {
		return reject(GateDirection, "existing position conflicts with same-direction order")
	}

	notional := math.Abs(float64(currentQty+qty) * price)
	if notional > m.limits.MaxPositionNotional {
		return reject(GatePositionSize, "position notional over limit")
	}

	projected := -math.Abs(float64(qty)) * price * m.limits.AdverseMovePct
	if snap.DailyPnL+projected < m.limits.DailyLossLimit {
		return reject(GateDailyLoss, "projected pnl under daily loss limit")
	}

	return allow()
}
