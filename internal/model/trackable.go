package model

import "context"

// Trackable is an updatable object that a tick region owns.
// Implementations must be safe for concurrent reads of Location/Removable/Attached:
// the region reads them from its worker goroutine while the simulation may move the object.
type Trackable interface {
	// ObjectID returns unique object identity (immutable).
	ObjectID() uint32

	// Location returns current position. Stable between two calls unless the object moved.
	Location() Location

	// Removable reports that the object left the simulation and must be dropped by its region.
	Removable() bool

	// Attached reports whether the object's owning world context is still attached.
	Attached() bool

	// Tick runs one update. May fail or panic; the region logs and continues.
	// Long-running updates should observe ctx (the watchdog cancels it when the pass is stuck).
	Tick(ctx context.Context) error
}

// LockSlots is a bit set of boundary lock slots an object needs while it updates.
type LockSlots uint8

const (
	SlotSelf LockSlots = 1 << iota
	SlotXPlus
	SlotXMinus
	SlotZPlus
	SlotZMinus

	// SlotNone — object never touches neighbours, no locking.
	SlotNone LockSlots = 0
	// SlotNeighbours — self + all four grid-adjacent neighbours.
	SlotNeighbours = SlotSelf | SlotXPlus | SlotXMinus | SlotZPlus | SlotZMinus
)

// Has reports whether all slots in s2 are set.
func (s LockSlots) Has(s2 LockSlots) bool {
	return s&s2 == s2
}

// BoundaryAware is implemented by objects whose update reads or writes spatially adjacent objects.
type BoundaryAware interface {
	LockSlots() LockSlots
}

// SlotsOf returns lock slots requested by obj (SlotNone if obj is not BoundaryAware).
func SlotsOf(obj Trackable) LockSlots {
	if ba, ok := obj.(BoundaryAware); ok {
		return ba.LockSlots()
	}
	return SlotNone
}
