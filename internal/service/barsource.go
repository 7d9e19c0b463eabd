package service

import (
	"context"
	"time"

	"github.com/statarb/reversion/internal/broker"
)

// MarketBarSource serves trailing close history from the broker's
// historical bars API. The lookback window is wide enough to span a
// weekend so early-session evaluations still see a full window.
type MarketBarSource struct {
	data      broker.MarketData
	timeframe string
	lookback  time.Duration
	now       func() time.Time
}

// NewMarketBarSource adapts broker market data to the evaluator.
func NewMarketBarSource(data broker.MarketData) *MarketBarSource {
	return &MarketBarSource{
		data:      data,
		timeframe: "1Min",
		lookback:  96 * time.Hour,
		now:       time.Now,
	}
}

func (s *MarketBarSource) RecentCloses(ctx context.Context, symbol string, n int) ([]float64, error) {
	end := s.now().UTC()
	bars, err := s.data.GetBars(ctx, symbol, end.Add(-s.lookback), end, s.timeframe)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close)
	}
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	return closes, nil
}
