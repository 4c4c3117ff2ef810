package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/clubnote/internal/history/historytest"
	"github.com/MrWong99/clubnote/internal/history/postgres"
)

// testDSN skips unless CLUBNOTE_TEST_POSTGRES_DSN is set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("CLUBNOTE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CLUBNOTE_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func TestStore(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.Exec(ctx, "DROP TABLE IF EXISTS chat_history"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_ = conn.Close(ctx)

	s, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	historytest.Run(t, s)
}
