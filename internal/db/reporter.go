package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/tickregion/internal/stats"
)

// SnapshotReporter is a stats.Reporter persisting every report as a snapshot.
type SnapshotReporter struct {
	repo   *StatsRepository
	totals func() SnapshotTotals
	keep   int
	now    func() time.Time
}

// NewSnapshotReporter creates reporter. totals may be nil; keep > 0 prunes older snapshots
// after each save.
func NewSnapshotReporter(repo *StatsRepository, totals func() SnapshotTotals, keep int) *SnapshotReporter {
	return &SnapshotReporter{
		repo:   repo,
		totals: totals,
		keep:   keep,
		now:    time.Now,
	}
}

// Report implements stats.Reporter.
func (r *SnapshotReporter) Report(ctx context.Context, rows []stats.Row) error {
	var totals SnapshotTotals
	if r.totals != nil {
		totals = r.totals()
	}

	id, err := r.repo.SaveSnapshot(ctx, r.now(), totals, rows)
	if err != nil {
		return fmt.Errorf("saving stats snapshot: %w", err)
	}

	if r.keep > 0 {
		pruned, err := r.repo.Prune(ctx, r.keep)
		if err != nil {
			return fmt.Errorf("pruning stats snapshots: %w", err)
		}
		if pruned > 0 {
			slog.Debug("stats snapshots pruned", "deleted", pruned, "keep", r.keep)
		}
	}

	slog.Debug("stats snapshot saved", "snapshot", id, "rows", len(rows))
	return nil
}
