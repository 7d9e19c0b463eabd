package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statarb/reversion/internal/model"
	"github.com/statarb/reversion/internal/stats"
)

type mockBarSource struct {
	closes []float64
	err    error
	calls  int
}

func (s *mockBarSource) RecentCloses(context.Context, string, int) ([]float64, error) {
	s.calls++
	return s.closes, s.err
}

// flatCloses returns n identical closes except the final one.
func flatCloses(n int, level, last float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = level
	}
	closes[n-1] = last
	return closes
}

func newTestEvaluator(src BarSource) *Evaluator {
	cfg := Config{Window: 20, NumStd: 2, LookbackBars: 40}
	return NewEvaluator(cfg, []string{"META"}, src, zerolog.Nop())
}

func TestOnBar_OutsideUniverseIsNoOp(t *testing.T) {
	src := &mockBarSource{closes: flatCloses(40, 100, 100)}
	e := newTestEvaluator(src)

	sig, err := e.OnBar(context.Background(), model.Bar{Symbol: "TSLA", Close: 1000})
	require.NoError(t, err)
	assert.False(t, sig.Do)
	assert.Zero(t, src.calls, "symbols outside the universe never reach data fetch")
}

func TestOnBar_SellAtUpperBand(t *testing.T) {
	// Mostly flat history with a final spike widens the band a little;
	// a close far above it must trigger a short.
	src := &mockBarSource{closes: flatCloses(40, 100, 110)}
	e := newTestEvaluator(src)

	sig, err := e.OnBar(context.Background(), model.Bar{Symbol: "META", Close: 120})
	require.NoError(t, err)
	require.True(t, sig.Do)
	assert.Equal(t, model.SideSell, sig.Side)
	assert.Equal(t, 1, sig.Qty)
	assert.Equal(t, "META", sig.Symbol)
	assert.Equal(t, -1, sig.SignedQty())
}

func TestOnBar_BuyAtLowerBand(t *testing.T) {
	src := &mockBarSource{closes: flatCloses(40, 100, 90)}
	e := newTestEvaluator(src)

	sig, err := e.OnBar(context.Background(), model.Bar{Symbol: "META", Close: 80})
	require.NoError(t, err)
	require.True(t, sig.Do)
	assert.Equal(t, model.SideBuy, sig.Side)
	assert.Equal(t, 1, sig.SignedQty())
}

func TestOnBar_InsideBandsNoAction(t *testing.T) {
	src := &mockBarSource{closes: flatCloses(40, 100, 103)}
	e := newTestEvaluator(src)

	sig, err := e.OnBar(context.Background(), model.Bar{Symbol: "META", Close: 100})
	require.NoError(t, err)
	assert.False(t, sig.Do)
}

func TestOnBar_DataErrorPropagates(t *testing.T) {
	src := &mockBarSource{err: errors.New("historical data down")}
	e := newTestEvaluator(src)

	_, err := e.OnBar(context.Background(), model.Bar{Symbol: "META", Close: 100})
	assert.Error(t, err)
}

func TestOnBar_ShortHistoryPropagatesInputError(t *testing.T) {
	src := &mockBarSource{closes: flatCloses(5, 100, 100)}
	e := newTestEvaluator(src)

	_, err := e.OnBar(context.Background(), model.Bar{Symbol: "META", Close: 100})
	assert.ErrorIs(t, err, stats.ErrWindowTooLarge)
}
