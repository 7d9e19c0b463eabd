package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statarb/reversion/internal/model"
)

// flatBar has no intra-bar range so every fill lands exactly on the close,
// keeping PnL assertions deterministic.
func flatBar(symbol string, minute int, close float64) model.Bar {
	ts := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
	return model.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    10000,
	}
}

// oscillating closes stay inside the bands; a spike bar breaks out above.
func reversionSeries(symbol string) []model.Bar {
	bars := make([]model.Bar, 0, 40)
	for i := 0; i < 25; i++ {
		close := 100.0
		if i%2 == 0 {
			close = 100.4
		} else {
			close = 99.6
		}
		bars = append(bars, flatBar(symbol, i, close))
	}
	// Breakout: close far above the upper band triggers a short.
	bars = append(bars, flatBar(symbol, 25, 120))
	// Reversion back toward the mean.
	for i := 26; i < 40; i++ {
		bars = append(bars, flatBar(symbol, i, 100))
	}
	return bars
}

func TestRun_ShortsBreakoutAndProfitsOnReversion(t *testing.T) {
	bt := NewBacktester(DefaultConfig(), []string{"META"}, zerolog.Nop())

	summary, err := bt.Run(context.Background(), reversionSeries("META"))

	require.NoError(t, err)
	assert.Equal(t, 40, summary.Bars)
	assert.Equal(t, 1, summary.Signals)
	assert.Equal(t, 1, summary.FilledOrders)
	assert.Zero(t, summary.RejectedOrders)
	// Short 1 at 120, liquidated at the final close of 100.
	assert.InDelta(t, 20, summary.RealizedPnL, 1e-9)
	assert.Empty(t, summary.EndingPositions)
}

func TestRun_HoldsPositionWithoutEndLiquidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LiquidateAtEnd = false
	bt := NewBacktester(cfg, []string{"META"}, zerolog.Nop())

	summary, err := bt.Run(context.Background(), reversionSeries("META"))

	require.NoError(t, err)
	require.Len(t, summary.EndingPositions, 1)
	pos := summary.EndingPositions[0]
	assert.Equal(t, "META", pos.Symbol)
	assert.Equal(t, -1, pos.Qty)
	assert.InDelta(t, 120, pos.EntryPrice, 1e-9)
	assert.Zero(t, summary.RealizedPnL)
}

func TestRun_IgnoresSymbolsOutsideUniverse(t *testing.T) {
	bt := NewBacktester(DefaultConfig(), []string{"AAPL"}, zerolog.Nop())

	summary, err := bt.Run(context.Background(), reversionSeries("META"))

	require.NoError(t, err)
	assert.Zero(t, summary.Signals)
	assert.Empty(t, summary.EndingPositions)
}

func TestRun_SortsBarsByTimestamp(t *testing.T) {
	bars := reversionSeries("META")
	// Reverse so the replay has to restore chronological order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	bt := NewBacktester(DefaultConfig(), []string{"META"}, zerolog.Nop())

	summary, err := bt.Run(context.Background(), bars)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilledOrders)
	assert.InDelta(t, 20, summary.RealizedPnL, 1e-9)
}

func TestRun_EmptyInput(t *testing.T) {
	bt := NewBacktester(DefaultConfig(), []string{"META"}, zerolog.Nop())

	_, err := bt.Run(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNoBars)
}

func TestRun_CanceledContextStopsReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bt := NewBacktester(DefaultConfig(), []string{"META"}, zerolog.Nop())

	_, err := bt.Run(ctx, reversionSeries("META"))

	assert.ErrorIs(t, err, context.Canceled)
}
