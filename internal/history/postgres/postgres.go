// Package postgres provides a PostgreSQL-backed [history.Store].
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/clubnote/internal/history"
)

const ddl = `
CREATE TABLE IF NOT EXISTS chat_history (
    key        TEXT        NOT NULL,
    field      TEXT        NOT NULL,
    value      TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (key, field)
);`

// Store keeps history in a single chat_history table.
type Store struct {
	pool *pgxpool.Pool
}

var _ history.Store = (*Store)(nil)

// New connects to dsn, pings and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Get implements [history.Store].
func (s *Store) Get(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT field, value FROM chat_history WHERE key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("history postgres: get %q: %w", key, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("history postgres: scan: %w", err)
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history postgres: get %q: %w", key, err)
	}
	return out, nil
}

// Put implements [history.Store].
func (s *Store) Put(ctx context.Context, key, field, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_history (key, field, value) VALUES ($1, $2, $3)
		ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, field, value)
	if err != nil {
		return fmt.Errorf("history postgres: put %q/%q: %w", key, field, err)
	}
	return nil
}

// Delete implements [history.Store].
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_history WHERE key = $1`, key); err != nil {
		return fmt.Errorf("history postgres: delete %q: %w", key, err)
	}
	return nil
}

// Ping checks connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
