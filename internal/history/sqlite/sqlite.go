// Package sqlite provides a SQLite-backed [history.Store] using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/clubnote/internal/history"
)

const ddl = `
CREATE TABLE IF NOT EXISTS chat_history (
    key        TEXT NOT NULL,
    field      TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (key, field)
);`

// Store keeps history in a SQLite file.
type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path. Use ":memory:" for
// an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history sqlite: open: %w", err)
	}
	// One writer avoids SQLITE_BUSY and keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("history sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get implements [history.Store].
func (s *Store) Get(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM chat_history WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("history sqlite: get %q: %w", key, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("history sqlite: scan: %w", err)
		}
		out[field] = value
	}
	return out, rows.Err()
}

// Put implements [history.Store].
func (s *Store) Put(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_history (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT (key, field) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		key, field, value)
	if err != nil {
		return fmt.Errorf("history sqlite: put %q/%q: %w", key, field, err)
	}
	return nil
}

// Delete implements [history.Store].
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE key = ?`, key); err != nil {
		return fmt.Errorf("history sqlite: delete %q: %w", key, err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
