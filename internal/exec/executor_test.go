package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statarb/reversion/internal/journal"
	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/risk"
	"github.com/statarb/reversion/internal/state"
	"github.com/statarb/reversion/internal/telemetry"
)

type stubPrices struct {
	price float64
	err   error
	calls int
}

func (s *stubPrices) LatestPrice(_ context.Context, _ string) (float64, error) {
	s.calls++
	return s.price, s.err
}

type stubFiller struct {
	fillPrice float64
	err       error
	calls     int
	lastSide  model.Side
	lastQty   int
}

func (s *stubFiller) SubmitMarketOrder(_ context.Context, _ string, qty int, side model.Side) (float64, error) {
	s.calls++
	s.lastSide = side
	s.lastQty = qty
	if s.err != nil {
		return 0, s.err
	}
	return s.fillPrice, nil
}

type memJournal struct {
	fills []journal.Fill
	err   error
}

func (m *memJournal) InsertFill(_ context.Context, fill journal.Fill) error {
	if m.err != nil {
		return m.err
	}
	m.fills = append(m.fills, fill)
	return nil
}

func (m *memJournal) RecentFills(_ context.Context, _ string, _ int) ([]journal.Fill, error) {
	return m.fills, nil
}

type openClock struct{}

func (openClock) IsOpen(context.Context) (bool, error)        { return true, nil }
func (openClock) MinutesToClose(context.Context) (int, error) { return 390, nil }
func (openClock) MinutesToOpen(context.Context) (int, error)  { return 0, nil }

func newTestExecutor(t *testing.T, prices *stubPrices, filler *stubFiller, j journal.Repo) (*Executor, *state.Manager) {
	t.Helper()
	log := zerolog.Nop()
	ledger := state.NewManager(log)
	riskMgr := risk.NewManager(risk.DefaultLimits(), openClock{}, ledger, log)
	return NewExecutor(ledger, riskMgr, prices, filler, j, telemetry.NewMetrics(), log), ledger
}

func TestExecuteMarketOrder_FillUpdatesLedgerAndJournal(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{fillPrice: 100.05}
	j := &memJournal{}
	ex, ledger := newTestExecutor(t, prices, filler, j)

	ok := ex.ExecuteMarketOrder(context.Background(), "META", 10)

	require.True(t, ok)
	pos, found := ledger.Position("META")
	require.True(t, found)
	assert.Equal(t, 10, pos.Qty)
	assert.InDelta(t, 100.05, pos.EntryPrice, 1e-9)
	assert.Equal(t, model.SideBuy, filler.lastSide)
	assert.Equal(t, 10, filler.lastQty)
	require.Len(t, j.fills, 1)
	assert.Equal(t, "BUY", j.fills[0].Side)
	assert.NotEmpty(t, j.fills[0].ID)
}

func TestExecuteMarketOrder_SellSideForNegativeQty(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{fillPrice: 99.95}
	ex, ledger := newTestExecutor(t, prices, filler, nil)

	require.True(t, ex.ExecuteMarketOrder(context.Background(), "META", -5))

	assert.Equal(t, model.SideSell, filler.lastSide)
	assert.Equal(t, 5, filler.lastQty)
	pos, _ := ledger.Position("META")
	assert.Equal(t, -5, pos.Qty)
}

func TestExecuteMarketOrder_RiskRejectionNeverReachesFiller(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{fillPrice: 100}
	ex, ledger := newTestExecutor(t, prices, filler, nil)

	// DefaultLimits caps position notional at 10000: 101 * 100 busts it.
	ok := ex.ExecuteMarketOrder(context.Background(), "META", 101)

	assert.False(t, ok)
	assert.Zero(t, filler.calls)
	_, found := ledger.Position("META")
	assert.False(t, found)
}

func TestExecuteMarketOrder_PriceLookupFailureAborts(t *testing.T) {
	prices := &stubPrices{err: errors.New("feed down")}
	filler := &stubFiller{}
	ex, ledger := newTestExecutor(t, prices, filler, nil)

	assert.False(t, ex.ExecuteMarketOrder(context.Background(), "META", 1))
	assert.Zero(t, filler.calls)
	assert.Empty(t, ledger.Snapshot().Positions)
}

func TestExecuteMarketOrder_FillFailureLeavesLedgerUntouched(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{err: errors.New("broker rejected")}
	ex, ledger := newTestExecutor(t, prices, filler, nil)

	assert.False(t, ex.ExecuteMarketOrder(context.Background(), "META", 1))
	assert.Empty(t, ledger.Snapshot().Positions)
}

func TestExecuteMarketOrder_JournalFailureStillFills(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{fillPrice: 100}
	j := &memJournal{err: errors.New("db down")}
	ex, ledger := newTestExecutor(t, prices, filler, j)

	require.True(t, ex.ExecuteMarketOrder(context.Background(), "META", 1))
	pos, found := ledger.Position("META")
	require.True(t, found)
	assert.Equal(t, 1, pos.Qty)
}

func TestExecuteMarketOrder_ZeroQtyIsNoop(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{}
	ex, _ := newTestExecutor(t, prices, filler, nil)

	assert.False(t, ex.ExecuteMarketOrder(context.Background(), "META", 0))
	assert.Zero(t, prices.calls)
}

func TestLiquidateAll_SweepsThroughFiller(t *testing.T) {
	prices := &stubPrices{price: 100}
	filler := &stubFiller{fillPrice: 100}
	ex, ledger := newTestExecutor(t, prices, filler, nil)

	require.True(t, ex.ExecuteMarketOrder(context.Background(), "META", 10))
	filler.fillPrice = 110
	ex.LiquidateAll(context.Background())

	assert.Empty(t, ledger.Snapshot().Positions)
	assert.InDelta(t, 100, ledger.DailyPnL(), 1e-9)
}
