// Package journal persists executed fills so a trading day can be
// reconstructed after the fact.
package journal

import (
	"context"
	"time"
)

// Fill is one executed order.
type Fill struct {
	ID        string    `db:"id"`
	Timestamp time.Time `db:"ts"`
	Symbol    string    `db:"symbol"`
	Side      string    `db:"side"`
	Qty       int       `db:"qty"`
	Price     float64   `db:"price"`
}

// Repo stores fills. The executor treats journal failures as non-fatal.
type Repo interface {
	InsertFill(ctx context.Context, fill Fill) error
	RecentFills(ctx context.Context, symbol string, limit int) ([]Fill, error)
}
