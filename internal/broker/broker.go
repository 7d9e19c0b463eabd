// Package broker defines the capability interfaces the trading engine needs
// from a brokerage: the market clock, historical/latest price data, and
// market-order placement. The engine never talks to a broker SDK directly;
// live adapters and backtest fakes both satisfy these interfaces.
package broker

import (
	"context"
	"time"

	"github.com/statarb/reversion/internal/model"
)

// Clock reports the state of the market session.
type Clock interface {
	IsOpen(ctx context.Context) (bool, error)
	// MinutesToClose returns minutes until the session closes, 0 when the
	// market is already closed.
	MinutesToClose(ctx context.Context) (int, error)
	// MinutesToOpen returns minutes until the next session opens, 0 when
	// the market is open.
	MinutesToOpen(ctx context.Context) (int, error)
}

// MarketData serves historical bars and latest trade prices.
type MarketData interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) ([]model.Bar, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// OrderPlacer submits market orders and reports the achieved fill price.
type OrderPlacer interface {
	SubmitMarketOrder(ctx context.Context, symbol string, qty int, side model.Side) (float64, error)
}
