package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/tickregion/internal/stats"
)

// SnapshotTotals are manager-wide counters stored alongside region rows.
type SnapshotTotals struct {
	Regions     int
	Objects     int
	Cycles      uint64
	Skipped     uint64
	StuckAborts uint64
	Respawned   uint64
}

// Snapshot is one persisted stats report.
type Snapshot struct {
	ID      int64
	TakenAt time.Time
	Totals  SnapshotTotals
	Rows    []stats.Row
}

// StatsRepository persists region stats snapshots.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// SaveSnapshot stores totals and rows in one transaction. Returns the new snapshot ID.
func (r *StatsRepository) SaveSnapshot(ctx context.Context, takenAt time.Time, totals SnapshotTotals, rows []stats.Row) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO stat_snapshots (taken_at, regions, objects, cycles, skipped, stuck_aborts, respawned)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING snapshot_id`,
		takenAt, totals.Regions, totals.Objects,
		int64(totals.Cycles), int64(totals.Skipped), int64(totals.StuckAborts), int64(totals.Respawned),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting snapshot: %w", err)
	}

	if len(rows) > 0 {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(
				`INSERT INTO region_stats (snapshot_id, tag, origin_x, origin_z, members, avg_tick_ms, placeholder)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, row.Tag, row.OriginX, row.OriginZ, row.Members, row.AvgTickMillis, row.Placeholder,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("inserting region row: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LatestSnapshot loads the most recent snapshot with its rows.
// Returns nil, nil if nothing was saved yet.
func (r *StatsRepository) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		s                                      Snapshot
		cycles, skipped, stuckAborts, respawns int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT snapshot_id, taken_at, regions, objects, cycles, skipped, stuck_aborts, respawned
		 FROM stat_snapshots
		 ORDER BY taken_at DESC, snapshot_id DESC
		 LIMIT 1`,
	).Scan(&s.ID, &s.TakenAt, &s.Totals.Regions, &s.Totals.Objects, &cycles, &skipped, &stuckAborts, &respawns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	s.Totals.Cycles = uint64(cycles)
	s.Totals.Skipped = uint64(skipped)
	s.Totals.StuckAborts = uint64(stuckAborts)
	s.Totals.Respawned = uint64(respawns)

	rows, err := r.pool.Query(ctx,
		`SELECT tag, origin_x, origin_z, members, avg_tick_ms, placeholder
		 FROM region_stats
		 WHERE snapshot_id = $1
		 ORDER BY tag DESC, placeholder DESC, origin_x, origin_z`,
		s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading region rows of snapshot %d: %w", s.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row stats.Row
		if err := rows.Scan(&row.Tag, &row.OriginX, &row.OriginZ, &row.Members, &row.AvgTickMillis, &row.Placeholder); err != nil {
			return nil, fmt.Errorf("scanning region row: %w", err)
		}
		s.Rows = append(s.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating region rows: %w", err)
	}

	return &s, nil
}

// Prune deletes all but the newest keep snapshots (region rows cascade).
// Returns number of deleted snapshots.
func (r *StatsRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM stat_snapshots
		 WHERE snapshot_id NOT IN (
		     SELECT snapshot_id FROM stat_snapshots
		     ORDER BY taken_at DESC, snapshot_id DESC
		     LIMIT $1
		 )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns number of stored snapshots.
func (r *StatsRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM stat_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}
