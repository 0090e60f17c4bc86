package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresKV keeps the cache in a single key-value table, for deployments
// that already run Postgres and want the record alongside other state.
type PostgresKV struct {
	db *sql.DB
}

// NewPostgresKV ensures the backing table exists and returns the store.
func NewPostgresKV(ctx context.Context, db *sql.DB) (*PostgresKV, error) {
	const schema = `CREATE TABLE IF NOT EXISTS agegate_kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure agegate_kv table: %w", err)
	}
	return &PostgresKV{db: db}, nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM agegate_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO agegate_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM agegate_kv WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres delete %q: %w", key, err)
	}
	return nil
}
