package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statarb/reversion/internal/model"
)

func newTestManager() *Manager {
	return NewManager(zerolog.Nop())
}

func TestApplyFill_RoundTripRealizesPnL(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.ApplyFill("X", 10, 100))
	require.NoError(t, m.ApplyFill("X", -10, 110))

	_, open := m.Position("X")
	assert.False(t, open, "closed position must leave the ledger")
	assert.InDelta(t, 100.0, m.DailyPnL(), 1e-9, "10 shares x $10")
}

func TestApplyFill_ShortRoundTrip(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.ApplyFill("X", -10, 100))
	require.NoError(t, m.ApplyFill("X", 10, 90))

	assert.InDelta(t, 100.0, m.DailyPnL(), 1e-9, "short profits when price falls")
}

func TestApplyFill_WeightedEntryPrice(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.ApplyFill("X", 10, 100))
	require.NoError(t, m.ApplyFill("X", 10, 110))

	pos, ok := m.Position("X")
	require.True(t, ok)
	assert.Equal(t, 20, pos.Qty)
	assert.InDelta(t, 105.0, pos.EntryPrice, 1e-9)
}

func TestApplyFill_PartialCloseRealizesClosedPortion(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.ApplyFill("X", 10, 100))
	require.NoError(t, m.ApplyFill("X", -4, 110))

	pos, ok := m.Position("X")
	require.True(t, ok)
	assert.Equal(t, 6, pos.Qty)
	assert.InDelta(t, 100.0, pos.EntryPrice, 1e-9, "entry unchanged on partial close")
	assert.InDelta(t, 40.0, m.DailyPnL(), 1e-9)
}

func TestApplyFill_SignFlipClosesAndReopens(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.ApplyFill("X", 10, 100))
	require.NoError(t, m.ApplyFill("X", -15, 110))

	pos, ok := m.Position("X")
	require.True(t, ok)
	assert.Equal(t, -5, pos.Qty)
	assert.InDelta(t, 110.0, pos.EntryPrice, 1e-9, "remainder opens at fill price")
	assert.InDelta(t, 100.0, m.DailyPnL(), 1e-9, "only the closed leg realizes")
}

func TestApplyFill_ZeroQuantity(t *testing.T) {
	m := newTestManager()
	assert.ErrorIs(t, m.ApplyFill("X", 0, 100), ErrZeroQuantity)
}

func TestClosePosition_FlatSymbolFailsLoudly(t *testing.T) {
	m := newTestManager()
	err := m.ClosePosition("GHOST", 100)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestResetDaily(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.ApplyFill("X", 1, 100))
	require.NoError(t, m.ApplyFill("X", -1, 150))
	require.InDelta(t, 50.0, m.DailyPnL(), 1e-9)

	m.ResetDaily()
	assert.Zero(t, m.DailyPnL())
}

type recordingFiller struct {
	mu    sync.Mutex
	fills []string
	price float64
	fail  map[string]bool
}

func (f *recordingFiller) SubmitMarketOrder(_ context.Context, symbol string, qty int, side model.Side) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[symbol] {
		return 0, errors.New("broker down")
	}
	f.fills = append(f.fills, symbol)
	return f.price, nil
}

func TestLiquidateAll_ClosesEverything(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.ApplyFill("AAA", 10, 100))
	require.NoError(t, m.ApplyFill("BBB", -5, 50))

	filler := &recordingFiller{price: 100}
	m.LiquidateAll(context.Background(), filler)

	snap := m.Snapshot()
	assert.Empty(t, snap.Positions)
	assert.Len(t, filler.fills, 2)
}

func TestLiquidateAll_BestEffortOnFailure(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.ApplyFill("AAA", 10, 100))
	require.NoError(t, m.ApplyFill("BBB", -5, 50))

	filler := &recordingFiller{price: 100, fail: map[string]bool{"AAA": true}}
	m.LiquidateAll(context.Background(), filler)

	snap := m.Snapshot()
	_, aaaOpen := snap.Positions["AAA"]
	_, bbbOpen := snap.Positions["BBB"]
	assert.True(t, aaaOpen, "failed symbol keeps its position")
	assert.False(t, bbbOpen, "sweep continues past the failure")
}

func TestApplyFill_ConcurrentUpdatesStayConsistent(t *testing.T) {
	m := newTestManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.ApplyFill("X", 1, 100)
		}()
	}
	wg.Wait()

	pos, ok := m.Position("X")
	require.True(t, ok)
	assert.Equal(t, 50, pos.Qty)
	assert.InDelta(t, 100.0, pos.EntryPrice, 1e-9)
}
