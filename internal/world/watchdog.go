package world

import (
	"context"
	"log/slog"
	"time"
)

// Watchdog bounds the wall-clock duration of region passes.
//
// Past deadline it cancels the pass context with a *StuckError cause (cooperative abort:
// lock waits, member boundaries and CheckStuck observe it). Past deadline+grace, if the pass
// still has not returned, the worker is abandoned and replaced, and the dispatching cycle
// is released. The region stays in flight until the abandoned goroutine returns.
type Watchdog struct {
	pool     *workerPool
	deadline time.Duration
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
}

func newWatchdog(pool *workerPool, deadline, grace, interval time.Duration) *Watchdog {
	return &Watchdog{
		pool:     pool,
		deadline: deadline,
		grace:    grace,
		interval: interval,
		now:      time.Now,
	}
}

// Start scans in-flight passes every interval until ctx is cancelled.
func (wd *Watchdog) Start(ctx context.Context) error {
	ticker := time.NewTicker(wd.interval)
	defer ticker.Stop()

	slog.Info("tick watchdog started", "deadline", wd.deadline, "grace", wd.grace, "interval", wd.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick watchdog stopping")
			return ctx.Err()
		case <-ticker.C:
			wd.Scan()
		}
	}
}

// Scan checks every worker once. Returns how many passes were interrupted and how many
// workers were abandoned by this scan.
func (wd *Watchdog) Scan() (interrupted, abandoned int) {
	now := wd.now()

	for _, w := range wd.pool.snapshot() {
		st := w.state.Load()
		if st == nil {
			continue
		}
		elapsed := now.Sub(st.start)
		region := st.job.region

		// Hard path only after a previous scan already delivered the interrupt.
		if st.signalled.Load() && elapsed >= wd.deadline+wd.grace {
			if st.abandoned.CompareAndSwap(false, true) {
				slog.Error("region tick ignored interrupt, abandoning worker",
					"worker", w.id,
					"region", region.String(),
					"elapsed", elapsed)
				wd.pool.abandon(w)
				st.job.finish()
				abandoned++
			}
			continue
		}

		if elapsed >= wd.deadline && st.signalled.CompareAndSwap(false, true) {
			se := &StuckError{Region: region.String(), Elapsed: elapsed}
			if mb := region.current.Load(); mb != nil {
				se = se.at(mb.obj)
			}
			slog.Warn("region tick exceeded deadline, interrupting",
				"worker", w.id,
				"region", se.Region,
				"object", se.MemberID,
				"elapsed", elapsed)
			st.cancel(se)
			interrupted++
		}
	}
	return interrupted, abandoned
}
