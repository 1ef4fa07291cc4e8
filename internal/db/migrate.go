package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/udisondev/tickregion/internal/db/migrations"
)

// RunMigrations applies embedded migrations on the given DSN and returns the schema version.
func RunMigrations(ctx context.Context, dsn string) (int64, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	return Migrate(ctx, sqlDB)
}

// MigratePool applies embedded migrations through a *sql.DB bridged from pool.
func MigratePool(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	// goose работает через database/sql
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	return Migrate(ctx, sqlDB)
}

// Migrate applies pending migrations using a goose provider over the embedded FS.
func Migrate(ctx context.Context, sqlDB *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
