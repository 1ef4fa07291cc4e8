package world

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/udisondev/tickregion/internal/model"
)

// Kind is a region variant. Variants share scheduling, locking and deferred mutation;
// only the tick body policy differs.
type Kind uint8

const (
	KindObject Kind = iota // static updatable objects, full boundary locking
	KindEntity             // mobile entities, self slot only

	kindCount = 2
)

func (k Kind) String() string {
	return bodyFor(k).tag()
}

// tickBody is the per-variant part of a region pass.
type tickBody interface {
	tag() string
	// slots filters lock slots an object of this variant may take.
	slots(obj model.Trackable) model.LockSlots
	// cleansStorage reports whether removal must notify the storage collaborator.
	cleansStorage() bool
}

type objectBody struct{}

func (objectBody) tag() string                               { return "T" }
func (objectBody) slots(obj model.Trackable) model.LockSlots { return model.SlotsOf(obj) }
func (objectBody) cleansStorage() bool                       { return true }

type entityBody struct{}

func (entityBody) tag() string { return "E" }
func (entityBody) slots(obj model.Trackable) model.LockSlots {
	return model.SlotsOf(obj) & model.SlotSelf
}
func (entityBody) cleansStorage() bool { return false }

func bodyFor(k Kind) tickBody {
	if k == KindEntity {
		return entityBody{}
	}
	return objectBody{}
}

// Profiler receives per-object tick durations when profiling is enabled.
type Profiler interface {
	OnTickStart()
	Record(obj model.Trackable, elapsed time.Duration)
}

// doTick iterates live members once in insertion order.
func (r *Region) doTick(ctx context.Context) {
	m := r.manager

	var prof Profiler
	if m.profiler != nil && (m.settings.Profiling() || r.profiling.Load()) {
		prof = m.profiler
		if r.profiling.Load() {
			prof.OnTickStart()
		}
	}

	r.live.each(func(mb *member) bool {
		if abortIfStuck(ctx, mb.obj) {
			return false
		}
		r.current.Store(mb)

		if r.rehomeIfMoved(mb) {
			return true
		}
		r.tickMember(ctx, mb, prof)
		return true
	})
}

// rehomeIfMoved refreshes the cached location and moves the member to its new region
// if it crossed a boundary. Returns true if the member left this region.
func (r *Region) rehomeIfMoved(mb *member) bool {
	obj := mb.obj
	if obj.Location() == mb.last {
		return false
	}

	m := r.manager
	unlock := m.Lock(obj)
	defer unlock()

	loc := obj.Location()
	hash, ok := m.grid.HashOf(loc.X, loc.Z)
	belongs := (r.placeholder && !ok) || (!r.placeholder && ok && hash == r.hash)
	if belongs {
		mb.last = loc
		return false
	}

	r.dropLive(obj)
	m.route(r.kind, obj, false)
	m.rehomed.Add(1)

	if r.placeholder {
		slog.Warn("object is in the wrong tick region - was it moved by something else?",
			"object", obj.ObjectID(),
			"location", loc,
			"region", r.String())
	} else if IsDebugEnabled() {
		slog.Debug("object re-homed",
			"object", obj.ObjectID(),
			"from", mb.last,
			"to", loc,
			"region", r.String())
	}
	return true
}

// tickMember runs one member's update under its boundary locks.
// Locks are released on every exit path, including a stuck abort.
func (r *Region) tickMember(ctx context.Context, mb *member, prof Profiler) {
	m := r.manager
	obj := mb.obj

	var start time.Time
	if prof != nil {
		start = time.Now()
	}

	locks := m.locks.Resolve(mb.last, r.body.slots(obj))
	defer func() {
		locks.Release()
		if prof != nil {
			prof.Record(obj, time.Since(start))
		}
	}()
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if se, ok := rec.(*StuckError); ok {
			if se.MemberID == 0 {
				se = se.at(obj)
			}
			panic(se)
		}
		slog.Error("panic ticking object",
			"object", obj.ObjectID(),
			"location", mb.last,
			"region", r.String(),
			"panic", rec,
			"stack", string(debug.Stack()))
	}()

	if err := locks.Acquire(ctx); err != nil {
		abortIfStuck(ctx, obj)
		return
	}

	if obj.Removable() {
		r.dropLive(obj)
		m.Removed(obj)
		if r.body.cleansStorage() && m.storage.ChunkLoaded(mb.last.X, mb.last.Z) {
			m.storage.NotifyRemoved(obj, mb.last)
		}
		return
	}

	if !obj.Attached() || !m.storage.ChunkLoaded(mb.last.X, mb.last.Z) {
		return
	}

	if err := obj.Tick(ctx); err != nil {
		if abortIfStuck(ctx, obj) {
			return
		}
		slog.Error("error ticking object",
			"object", obj.ObjectID(),
			"location", mb.last,
			"region", r.String(),
			"err", err)
	}
}
