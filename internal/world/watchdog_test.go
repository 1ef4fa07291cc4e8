package world

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tickregion/internal/model"
)

func TestStuckError(t *testing.T) {
	se := &StuckError{Region: "rX: 0, rZ: 0, hashCode: 0", Elapsed: time.Second}
	assert.True(t, errors.Is(se, ErrStuck))
	assert.NotContains(t, se.Error(), "object")

	at := se.at(newObj(7, 1, 2, 3))
	assert.Zero(t, se.MemberID, "at returns a copy")
	assert.Equal(t, uint32(7), at.MemberID)
	assert.Equal(t, model.NewLocation(1, 2, 3), at.MemberLoc)
	assert.True(t, strings.Contains(at.Error(), "object 7"))
}

func TestCheckStuck(t *testing.T) {
	// Live context: no-op.
	CheckStuck(context.Background())

	// Plain cancellation (shutdown) is not a stuck abort.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { CheckStuck(ctx) })
	assert.True(t, abortIfStuck(ctx, nil))

	sctx, scancel := context.WithCancelCause(context.Background())
	scancel(&StuckError{Region: "r"})
	assert.PanicsWithError(t, (&StuckError{Region: "r"}).Error(), func() { CheckStuck(sctx) })
}

func TestWatchdog_CooperativeAbortReleasesLocks(t *testing.T) {
	tests := []struct {
		name string
		tick model.TickFunc
	}{
		{
			name: "CheckStuck in update loop",
			tick: func(ctx context.Context, o *model.WorldObject) error {
				for {
					CheckStuck(ctx)
					time.Sleep(time.Millisecond)
				}
			},
		},
		{
			name: "update returns ctx error",
			tick: func(ctx context.Context, o *model.WorldObject) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			startWatchdog(t, m)

			stuck := newObj(1, 5, 0, 5)
			stuck.SetLockSlots(model.SlotNeighbours)
			stuck.SetTickFunc(tt.tick)
			after := newObj(2, 6, 0, 6)
			m.Add(stuck, true)
			m.Add(after, true)
			r := m.RegionAt(KindObject, 5, 5)

			m.RunCycle(context.Background())

			metrics := m.Metrics()
			assert.Equal(t, uint64(1), metrics.StuckAborts)
			assert.Zero(t, metrics.Respawned, "cooperative abort keeps the worker")
			assert.Zero(t, m.Locks().HeldCount(), "none of the stuck member's slots stay held")
			assert.Zero(t, after.TickCount(), "rest of the aborted pass is abandoned")
			assert.True(t, r.Contains(stuck), "stuck member stays live")
			assert.False(t, r.Ticking())
			assert.False(t, r.dispatched.Load())

			// Worker keeps serving cycles.
			stuck.SetTickFunc(nil)
			m.RunCycle(context.Background())
			assert.Equal(t, uint64(1), after.TickCount())
			assert.Equal(t, uint64(1), m.Metrics().StuckAborts)
			assert.Equal(t, 2, m.Metrics().Workers)
		})
	}
}

func TestWatchdog_AbortsBlockedLockWait(t *testing.T) {
	m, _ := newTestManager(t)
	startWatchdog(t, m)

	obj := newObj(1, 5, 0, 5)
	obj.SetLockSlots(model.SlotSelf | model.SlotXPlus)
	m.Add(obj, true)

	// Someone else holds the self slot forever.
	held := m.Locks().Resolve(obj.Location(), model.SlotSelf)
	require.NoError(t, held.Acquire(context.Background()))

	m.RunCycle(context.Background())

	assert.Equal(t, uint64(1), m.Metrics().StuckAborts)
	assert.Zero(t, obj.TickCount())
	assert.Equal(t, 1, m.Locks().HeldCount(), "only the external holder remains")

	held.Release()
	m.RunCycle(context.Background())
	assert.Equal(t, uint64(1), obj.TickCount())
	assert.Zero(t, m.Locks().HeldCount())
}

func TestWatchdog_HardHangRespawnsWorker(t *testing.T) {
	m, _ := newTestManager(t)
	startWatchdog(t, m)

	release := make(chan struct{})
	hung := newObj(1, 5, 0, 5)
	hung.SetLockSlots(model.SlotSelf)
	hung.SetTickFunc(func(ctx context.Context, o *model.WorldObject) error {
		<-release // ignores cancellation
		return nil
	})
	m.Add(hung, true)

	var other = newObj(2, 100, 0, 100)
	m.Add(other, true)

	r := m.RegionAt(KindObject, 5, 5)

	// Cycle is released by the watchdog after deadline+grace.
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunCycle(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle not released by watchdog")
	}

	metrics := m.Metrics()
	assert.Equal(t, uint64(1), metrics.Respawned)
	assert.Equal(t, 2, metrics.Workers, "pool size restored")
	assert.True(t, r.dispatched.Load(), "region stays in flight while the abandoned pass runs")
	assert.Equal(t, 1, m.Locks().HeldCount())

	// Next cycle skips the in-flight region but runs the others.
	m.RunCycle(context.Background())
	assert.GreaterOrEqual(t, m.Metrics().Skipped, uint64(1))
	assert.Equal(t, uint64(2), other.TickCount())

	close(release)
	require.Eventually(t, func() bool { return !r.dispatched.Load() }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, m.Locks().HeldCount())

	hung.SetTickFunc(nil)
	m.RunCycle(context.Background())
	assert.Equal(t, uint64(2), hung.TickCount())
}

func TestWatchdog_ScanIdle(t *testing.T) {
	m, _ := newTestManager(t)
	interrupted, abandoned := m.Watchdog().Scan()
	assert.Zero(t, interrupted)
	assert.Zero(t, abandoned)
}
