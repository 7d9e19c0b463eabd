package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Schema is the DDL for the fills table; applied by operators, not at boot.
const Schema = `
CREATE TABLE IF NOT EXISTS fills (
    id         UUID PRIMARY KEY,
    ts         TIMESTAMPTZ NOT NULL,
    symbol     TEXT NOT NULL,
    side       TEXT NOT NULL,
    qty        INTEGER NOT NULL,
    price      DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS fills_symbol_ts_idx ON fills (symbol, ts DESC);
`

// postgresRepo implements Repo on PostgreSQL.
type postgresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Connect opens a PostgreSQL-backed journal.
func Connect(dsn string, timeout time.Duration) (Repo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect journal db: %w", err)
	}
	return NewPostgresRepo(db, timeout), nil
}

// NewPostgresRepo wraps an existing connection; tests inject a mock here.
func NewPostgresRepo(db *sqlx.DB, timeout time.Duration) Repo {
	return &postgresRepo{db: db, timeout: timeout}
}

func (r *postgresRepo) InsertFill(ctx context.Context, fill Fill) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO fills (id, ts, symbol, side, qty, price)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		fill.ID, fill.Timestamp, fill.Symbol, fill.Side, fill.Qty, fill.Price); err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

func (r *postgresRepo) RecentFills(ctx context.Context, symbol string, limit int) ([]Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, symbol, side, qty, price
		FROM fills
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`
	var fills []Fill
	if err := r.db.SelectContext(ctx, &fills, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("select fills: %w", err)
	}
	return fills, nil
}
