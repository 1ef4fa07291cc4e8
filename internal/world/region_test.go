package world

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tickregion/internal/model"
)

func TestRegion_AddRemoveDirect(t *testing.T) {
	m, _ := newTestManager(t)
	r := newRegion(m, KindObject, 0, 0, false)
	obj := newObj(1, 1, 0, 1)

	assert.True(t, r.IsEmpty())
	assert.True(t, r.Add(obj), "first Add inserts")
	assert.False(t, r.Add(obj), "duplicate Add is refused")
	assert.Equal(t, 1, r.Size())
	assert.True(t, r.Contains(obj))

	assert.True(t, r.Remove(obj))
	assert.False(t, r.Remove(obj), "second Remove finds nothing")
	assert.True(t, r.IsEmpty())
}

func TestRegion_InsertionOrder(t *testing.T) {
	m, _ := newTestManager(t)
	r := newRegion(m, KindObject, 0, 0, false)

	ids := []uint32{5, 3, 9, 1}
	for _, id := range ids {
		r.Add(newObj(id, 1, 0, 1))
	}
	r.Remove(newObj(9, 1, 0, 1))
	r.Add(newObj(9, 1, 0, 1))

	var got []uint32
	for _, o := range r.Members() {
		got = append(got, o.ObjectID())
	}
	assert.Equal(t, []uint32{5, 3, 1, 9}, got)
}

func TestRegion_DeferredMutationDuringTick(t *testing.T) {
	m, _ := newTestManager(t)
	r := newRegion(m, KindObject, 0, 0, false)

	existing := newObj(1, 1, 0, 1)
	newcomer := newObj(2, 2, 0, 2)
	driver := newObj(3, 3, 0, 3)

	var (
		queuedAdd, dupAdd, queuedRemove bool
		newcomerLiveInTick              bool
		existingLiveInTick              bool
	)
	driver.SetTickFunc(func(ctx context.Context, o *model.WorldObject) error {
		queuedAdd = r.Add(newcomer)
		dupAdd = r.Add(existing)
		queuedRemove = r.Remove(existing)

		// Applying changes mid-tick must not touch the live set.
		r.ProcessChanges()
		newcomerLiveInTick = r.Contains(newcomer)
		existingLiveInTick = r.Contains(existing)
		return nil
	})

	r.Add(existing)
	r.Add(driver)

	require.True(t, r.Run(context.Background()))

	assert.True(t, queuedAdd, "Add during tick queues")
	assert.False(t, dupAdd, "Add of a live member during tick is refused")
	assert.True(t, queuedRemove, "Remove during tick reports live membership")
	assert.False(t, newcomerLiveInTick)
	assert.True(t, existingLiveInTick)

	// Changes are not visible until ProcessChanges after the pass.
	assert.False(t, r.Contains(newcomer))
	assert.True(t, r.Contains(existing))

	r.ProcessChanges()

	assert.True(t, r.Contains(newcomer))
	assert.False(t, r.Contains(existing))
	assert.True(t, r.Contains(driver))
	assert.False(t, r.Ticking())

	// Applied exactly once: a second drain is a no-op.
	r.ProcessChanges()
	assert.Equal(t, 2, r.Size())
}

func TestRegion_RemovalWinsWithinTick(t *testing.T) {
	m, _ := newTestManager(t)
	r := newRegion(m, KindObject, 0, 0, false)

	a := newObj(10, 1, 0, 1)
	b := newObj(11, 1, 0, 1)
	driver := newObj(1, 1, 0, 1)
	driver.SetTickFunc(func(ctx context.Context, o *model.WorldObject) error {
		// a: add then remove → dropped
		r.Add(a)
		r.Remove(a)
		// b: remove then add → removal still wins
		r.Remove(b)
		assert.False(t, r.Add(b))
		return nil
	})
	r.Add(driver)

	require.True(t, r.Run(context.Background()))
	r.ProcessChanges()

	assert.False(t, r.Contains(a))
	assert.False(t, r.Contains(b))
	assert.Equal(t, 1, r.Size())
}

// TestRegion_DeferredMutationProperty checks that after a tick and the next drain the
// live set equals (live before ∪ adds issued) − removes issued.
func TestRegion_DeferredMutationProperty(t *testing.T) {
	const (
		pool   = 24
		rounds = 200
		ops    = 40
	)
	rng := rand.New(rand.NewPCG(42, 7))

	for round := range rounds {
		m, _ := newTestManager(t)
		r := newRegion(m, KindObject, 0, 0, false)

		objs := make([]*model.WorldObject, pool)
		for i := range objs {
			objs[i] = newObj(uint32(100+i), 1, 0, 1)
		}

		expected := make(map[uint32]bool)
		for _, o := range objs {
			if rng.IntN(2) == 0 {
				r.Add(o)
				expected[o.ObjectID()] = true
			}
		}

		type op struct {
			add bool
			obj *model.WorldObject
		}
		script := make([]op, ops)
		for i := range script {
			script[i] = op{add: rng.IntN(2) == 0, obj: objs[rng.IntN(pool)]}
		}

		removed := make(map[uint32]bool)
		for _, s := range script {
			if s.add {
				expected[s.obj.ObjectID()] = true
			} else {
				removed[s.obj.ObjectID()] = true
			}
		}
		for id := range removed {
			delete(expected, id)
		}

		driver := newObj(1, 1, 0, 1)
		driver.SetTickFunc(func(ctx context.Context, o *model.WorldObject) error {
			for _, s := range script {
				if s.add {
					r.Add(s.obj)
				} else {
					r.Remove(s.obj)
				}
			}
			return nil
		})
		r.Add(driver)
		expected[driver.ObjectID()] = true

		require.True(t, r.Run(context.Background()))
		r.ProcessChanges()

		got := make(map[uint32]bool)
		for _, o := range r.Members() {
			got[o.ObjectID()] = true
		}
		require.Equal(t, expected, got, "round %d", round)

		r.mu.Lock()
		assert.Zero(t, r.toAdd.len())
		assert.Zero(t, r.toRemove.len())
		r.mu.Unlock()
	}
}

func TestRegion_RunIsExclusive(t *testing.T) {
	m, _ := newTestManager(t)
	r := newRegion(m, KindObject, 0, 0, false)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := newObj(1, 1, 0, 1)
	blocker.SetTickFunc(func(ctx context.Context, o *model.WorldObject) error {
		close(started)
		<-release
		return nil
	})
	r.Add(blocker)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, r.Run(context.Background()))
	}()

	<-started
	assert.False(t, r.Run(context.Background()), "second concurrent Run must be refused")
	assert.True(t, r.Ticking())

	close(release)
	wg.Wait()

	assert.Equal(t, uint64(1), r.Passes())
	assert.Equal(t, uint64(1), blocker.TickCount())
	assert.False(t, r.Ticking())
}

func TestRegion_DieAndReclaimable(t *testing.T) {
	m, _ := newTestManager(t)
	r := newRegion(m, KindObject, 0, 0, false)
	r.Add(newObj(1, 1, 0, 1))

	assert.False(t, r.reclaimable(), "non-empty region is not reclaimable")

	r.Die()
	assert.True(t, r.Dead())
	assert.True(t, r.IsEmpty())
	assert.True(t, r.reclaimable())

	r.dispatched.Store(true)
	assert.False(t, r.reclaimable(), "in-flight region is not reclaimable")

	p := newRegion(m, KindObject, 0, 0, true)
	assert.False(t, p.reclaimable(), "placeholder is never reclaimable")
}

func TestRegion_StatsAndString(t *testing.T) {
	m, _ := newTestManager(t)

	r := newRegion(m, KindObject, 1, -1, false)
	r.Add(newObj(1, 17, 0, -3))
	row := r.Stats()
	assert.Equal(t, "T", row.Tag)
	assert.Equal(t, int64(16), row.OriginX)
	assert.Equal(t, int64(-16), row.OriginZ)
	assert.Equal(t, 1, row.Members)
	assert.False(t, row.Placeholder)
	assert.InDelta(t, 1e-6, row.AvgTickMillis, 1e-9)

	assert.Equal(t, "rX: 1, rZ: -1, hashCode: "+strconv.FormatInt(RegionHash(1, -1), 10), r.String())

	e := newRegion(m, KindEntity, 0, 0, true)
	assert.Equal(t, "E no region", e.String())
	assert.Equal(t, "E", e.Stats().Tag)
	assert.True(t, e.Stats().Placeholder)
}

func TestRegion_Equal(t *testing.T) {
	m, _ := newTestManager(t)

	a := newRegion(m, KindObject, 2, 3, false)
	b := newRegion(m, KindObject, 2, 3, false)
	c := newRegion(m, KindEntity, 2, 3, false)
	d := newRegion(m, KindObject, 3, 2, false)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "different variant")
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
}
