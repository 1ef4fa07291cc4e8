package db_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/tickregion/internal/db"
	"github.com/udisondev/tickregion/internal/testutil"
)

// setupStatsRepo запускает PostgreSQL testcontainer с применёнными миграциями.
// Пропускается в -short режиме (нужен Docker).
func setupStatsRepo(tb testing.TB) (*db.StatsRepository, *pgxpool.Pool) {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping postgres integration test in short mode")
	}

	pool := testutil.SetupTestDB(tb)
	return db.NewStatsRepository(pool), pool
}

// truncate очищает таблицы для изоляции между subtests.
func truncate(tb testing.TB, pool *pgxpool.Pool) {
	tb.Helper()
	if _, err := pool.Exec(context.Background(), "TRUNCATE stat_snapshots CASCADE"); err != nil {
		tb.Fatalf("truncating stats tables: %v", err)
	}
}
