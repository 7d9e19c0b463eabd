package model

import "time"

// Bar is a fixed-interval OHLCV summary for one symbol. Bars arrive from the
// market-data feed and are immutable once published.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int64     `json:"trade_count"`
}

// Key returns the idempotency key used to de-duplicate redelivered bars.
func (b Bar) Key() string {
	return b.Symbol + "@" + b.Timestamp.UTC().Format(time.RFC3339)
}
