package world

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/tickregion/internal/model"
	"github.com/udisondev/tickregion/internal/stats"
)

// Region owns the objects of one spatial cell (regionSize × regionSize) and ticks them as a unit.
//
// The live member set is mutated directly only by the region's own tick goroutine or by any
// goroutine while the region is not ticking; during a tick, Add/Remove are queued and applied
// by ProcessChanges after the pass.
type Region struct {
	rx, rz      int32
	hash        int64
	kind        Kind
	body        tickBody
	placeholder bool // "no region": owns objects outside world bounds
	manager     *Manager

	mu       sync.Mutex // guards ticking, pending sets and every live-set mutation
	ticking  bool
	dead     bool
	live     *memberSet
	toAdd    *memberSet
	toRemove *memberSet

	averageBits atomic.Uint64 // float64 nanoseconds (EWMA)
	profiling   atomic.Bool   // per-region profiling override

	dispatched atomic.Bool // queued or running on a worker
	running    atomic.Bool // inside Run
	current    atomic.Pointer[member]
	passes     atomic.Uint64
}

func newRegion(m *Manager, kind Kind, rx, rz int32, placeholder bool) *Region {
	r := &Region{
		rx:          rx,
		rz:          rz,
		hash:        RegionHash(rx, rz),
		kind:        kind,
		body:        bodyFor(kind),
		placeholder: placeholder,
		manager:     m,
		live:        newMemberSet(),
		toAdd:       newMemberSet(),
		toRemove:    newMemberSet(),
	}
	r.averageBits.Store(math.Float64bits(initialAverage))
	return r
}

// RX returns region X index.
func (r *Region) RX() int32 { return r.rx }

// RZ returns region Z index.
func (r *Region) RZ() int32 { return r.rz }

// Hash returns region hash code.
func (r *Region) Hash() int64 { return r.hash }

// Kind returns region variant.
func (r *Region) Kind() Kind { return r.kind }

// Placeholder reports whether this is the "no region" sentinel.
func (r *Region) Placeholder() bool { return r.placeholder }

// Passes returns number of executed (not skipped) tick passes.
func (r *Region) Passes() uint64 { return r.passes.Load() }

// SetProfiling enables per-object profiling for this region only.
func (r *Region) SetProfiling(enabled bool) { r.profiling.Store(enabled) }

// Run is invoked once per scheduling cycle. Returns true if the tick body executed.
// The Manager never dispatches a region that is still in flight; concurrent entry is
// detected and refused.
func (r *Region) Run(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		slog.Error("concurrent region run refused", "region", r.String())
		return false
	}
	defer r.running.Store(false)

	if !shouldRun(r.manager.settings.VariableTickRate(), r.averageNanos(), r.manager.rand) {
		return false
	}

	start := time.Now()
	r.setTicking(true)
	// Deferred so an aborted (stuck) pass still leaves ticking=false and is accounted for.
	defer func() {
		r.current.Store(nil)
		r.setTicking(false)
		r.averageBits.Store(math.Float64bits(foldAverage(r.averageNanos(), time.Since(start))))
		r.passes.Add(1)
	}()

	r.doTick(ctx)
	return true
}

func (r *Region) setTicking(v bool) {
	r.mu.Lock()
	r.ticking = v
	r.mu.Unlock()
}

// Ticking reports whether a tick pass is in progress.
func (r *Region) Ticking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticking
}

// Add inserts obj. While ticking the insertion is queued; returns whether obj was newly
// queued (false if already live or queued for removal in this tick). Otherwise returns
// whether obj was newly inserted.
func (r *Region) Add(obj model.Trackable) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ticking {
		return r.live.add(obj)
	}

	// A removal queued in this tick wins over a later add: pending sets stay disjoint.
	if r.live.contains(obj) || r.toRemove.contains(obj) {
		return false
	}
	return r.toAdd.add(obj)
}

// Remove deletes obj. While ticking the removal is queued; returns whether obj is a live
// member. Otherwise returns whether obj was removed.
func (r *Region) Remove(obj model.Trackable) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ticking {
		return r.live.remove(obj)
	}

	// Every removal issued during the tick is applied, even for objects not yet live:
	// it cancels an earlier queued add and blocks a later one.
	r.toAdd.remove(obj)
	r.toRemove.add(obj)
	return r.live.contains(obj)
}

// removeIfHeld removes obj only if it is live or queued for addition here.
// held=false leaves the region untouched.
func (r *Region) removeIfHeld(obj model.Trackable) (held, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live.contains(obj) && !r.toAdd.contains(obj) {
		return false, false
	}
	if !r.ticking {
		return true, r.live.remove(obj)
	}
	r.toAdd.remove(obj)
	r.toRemove.add(obj)
	return true, r.live.contains(obj)
}

// ProcessChanges applies queued adds then queued removes. No-op while ticking.
func (r *Region) ProcessChanges() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticking {
		return
	}
	r.toAdd.each(func(m *member) bool {
		r.live.add(m.obj)
		return true
	})
	r.toRemove.each(func(m *member) bool {
		r.live.remove(m.obj)
		return true
	})
	r.toAdd.clear()
	r.toRemove.clear()
}

// dropLive removes obj from the live set. Called by the tick goroutine during its own pass.
func (r *Region) dropLive(obj model.Trackable) {
	r.mu.Lock()
	r.live.remove(obj)
	r.mu.Unlock()
}

// IsEmpty reports whether the live set is empty.
func (r *Region) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live.len() == 0
}

// Size returns live member count.
func (r *Region) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live.len()
}

// reclaimable reports whether the region can be detached from its Manager:
// empty, not ticking, nothing queued, not in flight.
func (r *Region) reclaimable() bool {
	if r.placeholder || r.dispatched.Load() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.ticking && r.live.len() == 0 && r.toAdd.len() == 0 && r.toRemove.len() == 0
}

// Contains reports whether obj is a live member.
func (r *Region) Contains(obj model.Trackable) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live.contains(obj)
}

// Members returns a snapshot of live members in iteration order.
func (r *Region) Members() []model.Trackable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live.objects()
}

// Die releases the live set; the region stays permanently empty.
func (r *Region) Die() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dead = true
	r.live.clear()
	r.toAdd.clear()
	r.toRemove.clear()
}

// Dead reports whether Die was called.
func (r *Region) Dead() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dead
}

func (r *Region) averageNanos() float64 {
	return math.Float64frombits(r.averageBits.Load())
}

// AverageTickTime returns EWMA of pass duration in milliseconds.
func (r *Region) AverageTickTime() float64 {
	return r.averageNanos() / float64(time.Millisecond)
}

// Stats returns reporting row of this region.
func (r *Region) Stats() stats.Row {
	x, z := r.manager.grid.Origin(r.rx, r.rz)
	return stats.Row{
		Tag:           r.body.tag(),
		OriginX:       x,
		OriginZ:       z,
		Members:       r.Size(),
		AvgTickMillis: r.AverageTickTime(),
		Placeholder:   r.placeholder,
	}
}

// Equal reports whether both regions have the same hash and variant.
func (r *Region) Equal(other *Region) bool {
	if r == other {
		return true
	}
	if other == nil {
		return false
	}
	return r.hash == other.hash && r.kind == other.kind && r.placeholder == other.placeholder
}

func (r *Region) String() string {
	if r.placeholder {
		return fmt.Sprintf("%s no region", r.body.tag())
	}
	return fmt.Sprintf("rX: %d, rZ: %d, hashCode: %d", r.rx, r.rz, r.hash)
}
