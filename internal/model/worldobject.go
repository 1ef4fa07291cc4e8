package model

import (
	"context"
	"sync"
	"sync/atomic"
)

// TickFunc is the per-object update callback of a WorldObject.
type TickFunc func(ctx context.Context, obj *WorldObject) error

// WorldObject — базовая реализация Trackable.
// Все объекты имеют ObjectID, Name и Location; поведение задаётся через TickFunc.
type WorldObject struct {
	objectID uint32
	name     string
	slots    LockSlots

	mu       sync.RWMutex
	location Location
	tick     TickFunc

	removed  atomic.Bool
	detached atomic.Bool
	ticks    atomic.Uint64

	Data any // simulation-specific payload
}

// NewWorldObject создаёт новый объект в игровом мире.
func NewWorldObject(objectID uint32, name string, loc Location) *WorldObject {
	return &WorldObject{
		objectID: objectID,
		name:     name,
		location: loc,
	}
}

// ObjectID возвращает уникальный ID объекта (immutable после создания).
func (w *WorldObject) ObjectID() uint32 {
	return w.objectID
}

// Name возвращает имя объекта.
func (w *WorldObject) Name() string {
	return w.name
}

// Location возвращает копию координат объекта (value type).
func (w *WorldObject) Location() Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.location
}

// SetLocation устанавливает новые координаты объекта.
func (w *WorldObject) SetLocation(loc Location) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.location = loc
}

// Move shifts the object by (dx, dy, dz) and returns the new location.
func (w *WorldObject) Move(dx, dy, dz int32) Location {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.location = w.location.Offset(dx, dy, dz)
	return w.location
}

// SetTickFunc replaces update callback.
func (w *WorldObject) SetTickFunc(fn TickFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = fn
}

// SetLockSlots sets boundary lock slots. Must be called before the object is added to a region.
func (w *WorldObject) SetLockSlots(slots LockSlots) {
	w.slots = slots
}

// LockSlots implements BoundaryAware.
func (w *WorldObject) LockSlots() LockSlots {
	return w.slots
}

// MarkRemoved flags object as removable; its region drops it on next tick.
func (w *WorldObject) MarkRemoved() {
	w.removed.Store(true)
}

// Removable implements Trackable.
func (w *WorldObject) Removable() bool {
	return w.removed.Load()
}

// Detach detaches the object from its world context (it stays live but is not updated).
func (w *WorldObject) Detach() {
	w.detached.Store(true)
}

// Attached implements Trackable.
func (w *WorldObject) Attached() bool {
	return !w.detached.Load()
}

// TickCount returns how many times Tick was invoked.
func (w *WorldObject) TickCount() uint64 {
	return w.ticks.Load()
}

// Tick implements Trackable.
func (w *WorldObject) Tick(ctx context.Context) error {
	w.ticks.Add(1)

	w.mu.RLock()
	fn := w.tick
	w.mu.RUnlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, w)
}
