// Package state owns the position ledger and the realized daily PnL. All
// mutations go through a single mutex; callers never see a partial update.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/model"
)

var (
	// ErrZeroQuantity rejects fills that would not move a position.
	ErrZeroQuantity = errors.New("state: fill quantity must be nonzero")
	// ErrNoPosition is returned when closing a symbol that is flat.
	ErrNoPosition = errors.New("state: no open position")
)

// Position is one open holding. Quantity is signed (+ long, - short) and is
// never zero while the entry exists; entry price is the notional-weighted
// average of all additive fills since the position was opened.
type Position struct {
	Symbol     string    `json:"symbol"`
	Qty        int       `json:"qty"`
	EntryPrice float64   `json:"entry_price"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot is a consistent view of the ledger taken under the lock.
type Snapshot struct {
	Positions map[string]Position `json:"positions"`
	DailyPnL  float64             `json:"daily_pnl"`
}

// Filler is the fill path liquidation sweeps orders through. The order
// executor satisfies it live; the slippage model satisfies it in backtests.
type Filler interface {
	SubmitMarketOrder(ctx context.Context, symbol string, qty int, side model.Side) (float64, error)
}

// Manager is the authoritative position/PnL ledger.
type Manager struct {
	mu        sync.Mutex
	positions map[string]Position
	dailyPnL  float64
	now       func() time.Time
	log       zerolog.Logger
}

// NewManager creates an empty ledger.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		positions: make(map[string]Position),
		now:       time.Now,
		log:       log.With().Str("component", "state").Logger(),
	}
}

// ApplyFill applies one fill to the ledger. A fill that brings the quantity
// to zero realizes PnL and removes the entry; a partial close realizes PnL
// on the closed portion and leaves the entry price untouched; an additive
// fill recomputes the notional-weighted entry price; a fill crossing zero
// closes the old position and opens the remainder at the fill price.
func (m *Manager) ApplyFill(symbol string, qtyDelta int, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyFillLocked(symbol, qtyDelta, price)
}

func (m *Manager) applyFillLocked(symbol string, qtyDelta int, price float64) error {
	if qtyDelta == 0 {
		return ErrZeroQuantity
	}
	cur, exists := m.positions[symbol]
	if !exists {
		m.positions[symbol] = Position{Symbol: symbol, Qty: qtyDelta, EntryPrice: price, UpdatedAt: m.now()}
		return nil
	}

	newQty := cur.Qty + qtyDelta
	switch {
	case newQty == 0:
		m.realize(cur, cur.Qty, price)
		delete(m.positions, symbol)

	case sameSign(newQty, cur.Qty) && abs(newQty) > abs(cur.Qty):
		total := float64(cur.Qty)*cur.EntryPrice + float64(qtyDelta)*price
		cur.Qty = newQty
		cur.EntryPrice = total / float64(newQty)
		cur.UpdatedAt = m.now()
		m.positions[symbol] = cur

	case sameSign(newQty, cur.Qty):
		// Partial close: the closed portion is -qtyDelta.
		m.realize(cur, -qtyDelta, price)
		cur.Qty = newQty
		cur.UpdatedAt = m.now()
		m.positions[symbol] = cur

	default:
		// Sign flip: close everything, reopen the remainder at the fill.
		m.realize(cur, cur.Qty, price)
		m.positions[symbol] = Position{Symbol: symbol, Qty: newQty, EntryPrice: price, UpdatedAt: m.now()}
	}
	return nil
}

// realize books PnL for a signed closed quantity at the given exit price.
func (m *Manager) realize(pos Position, closedQty int, exitPrice float64) {
	pnl := (exitPrice - pos.EntryPrice) * float64(closedQty)
	m.dailyPnL += pnl
	m.log.Info().Str("symbol", pos.Symbol).Int("closed_qty", closedQty).
		Float64("entry", pos.EntryPrice).Float64("exit", exitPrice).
		Float64("pnl", pnl).Float64("daily_pnl", m.dailyPnL).Msg("realized pnl")
}

// ClosePosition fully closes an open position at the given price. Closing a
// flat symbol is a state-invariant violation and fails loudly.
func (m *Manager) ClosePosition(symbol string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.positions[symbol]
	if !exists {
		return fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
	}
	return m.applyFillLocked(symbol, -cur.Qty, price)
}

// LiquidateAll closes every open position through the fill path. The sweep
// is best-effort: a failure on one symbol is logged and the rest continue.
// It holds the ledger lock for the whole sweep so no concurrent fill can
// interleave with a forced close.
func (m *Manager) LiquidateAll(ctx context.Context, filler Filler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for symbol, pos := range m.positions {
		side := model.SideSell
		if pos.Qty < 0 {
			side = model.SideBuy
		}
		fillPrice, err := filler.SubmitMarketOrder(ctx, symbol, abs(pos.Qty), side)
		if err != nil {
			m.log.Error().Err(err).Str("symbol", symbol).Int("qty", pos.Qty).
				Msg("failed to liquidate position")
			continue
		}
		if err := m.applyFillLocked(symbol, -pos.Qty, fillPrice); err != nil {
			m.log.Error().Err(err).Str("symbol", symbol).Msg("failed to close liquidated position")
		}
	}
}

// Snapshot returns a consistent copy of the ledger.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	positions := make(map[string]Position, len(m.positions))
	for symbol, pos := range m.positions {
		positions[symbol] = pos
	}
	return Snapshot{Positions: positions, DailyPnL: m.dailyPnL}
}

// Position returns the open position for symbol, if any.
func (m *Manager) Position(symbol string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[symbol]
	return pos, ok
}

// DailyPnL returns the realized PnL accumulated since the last reset.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

// ResetDaily zeroes the realized PnL accumulator. The reset schedule is the
// caller's responsibility (new trading day lifecycle).
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = 0
}

func sameSign(a, b int) bool { return (a > 0) == (b > 0) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
