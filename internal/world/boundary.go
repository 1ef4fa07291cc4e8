package world

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/udisondev/tickregion/internal/model"
)

type lockKind uint8

const (
	lockCell  lockKind = iota // self slot of cell (x, z)
	lockEdgeX                 // boundary between (x, z) and (x+1, z)
	lockEdgeZ                 // boundary between (x, z) and (x, z+1)
)

// lockKey identifies a boundary lock. Edge keys always use the lower cell of the pair,
// so both neighbours resolve the same lock.
type lockKey struct {
	kind lockKind
	x, z int32
}

func (k lockKey) String() string {
	switch k.kind {
	case lockEdgeX:
		return fmt.Sprintf("x[%d|%d],%d", k.x, k.x+1, k.z)
	case lockEdgeZ:
		return fmt.Sprintf("%d,z[%d|%d]", k.x, k.z, k.z+1)
	default:
		return fmt.Sprintf("cell %d,%d", k.x, k.z)
	}
}

// BoundaryLock is a binary semaphore shared by objects straddling one boundary.
// Acquisition honours context cancellation so the watchdog can interrupt a blocked waiter.
type BoundaryLock struct {
	key  lockKey
	sem  *semaphore.Weighted
	held atomic.Bool
}

// Held reports whether the lock is currently held.
func (l *BoundaryLock) Held() bool {
	return l.held.Load()
}

func (l *BoundaryLock) String() string {
	return l.key.String()
}

func (l *BoundaryLock) lock(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.held.Store(true)
	return nil
}

func (l *BoundaryLock) unlock() {
	l.held.Store(false)
	l.sem.Release(1)
}

// LockTable is the externally indexed table of boundary locks.
// Locks are created lazily on first use and live until Clear.
type LockTable struct {
	mu    sync.Mutex
	locks map[lockKey]*BoundaryLock
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		locks: make(map[lockKey]*BoundaryLock, 256),
	}
}

func (t *LockTable) get(key lockKey) *BoundaryLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[key]
	if !ok {
		l = &BoundaryLock{key: key, sem: semaphore.NewWeighted(1)}
		t.locks[key] = l
	}
	return l
}

// Len returns number of allocated locks.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// HeldCount returns number of locks currently held (O(N), diagnostics and tests).
func (t *LockTable) HeldCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, l := range t.locks {
		if l.Held() {
			n++
		}
	}
	return n
}

// Clear drops all locks (world unload). Must not be called while ticks are in flight.
func (t *LockTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.locks)
}

// Resolve returns the lock set for an object at loc requesting slots.
// Slots are stored in acquisition order: +X, +Z, self, -Z, -X.
//
// The order is a total order on locks: edges sort by descending position along X, then
// cell-level locks (Z edges and self) by descending position along Z, so two objects
// sharing any locks always take them in the same relative order.
func (t *LockTable) Resolve(loc model.Location, slots model.LockSlots) LockSet {
	var ls LockSet
	if slots == model.SlotNone {
		return ls
	}

	x, z := loc.X, loc.Z
	if slots.Has(model.SlotXPlus) {
		ls.push(t.get(lockKey{kind: lockEdgeX, x: x, z: z}))
	}
	if slots.Has(model.SlotZPlus) {
		ls.push(t.get(lockKey{kind: lockEdgeZ, x: x, z: z}))
	}
	if slots.Has(model.SlotSelf) {
		ls.push(t.get(lockKey{kind: lockCell, x: x, z: z}))
	}
	if slots.Has(model.SlotZMinus) {
		ls.push(t.get(lockKey{kind: lockEdgeZ, x: x, z: z - 1}))
	}
	if slots.Has(model.SlotXMinus) {
		ls.push(t.get(lockKey{kind: lockEdgeX, x: x - 1, z: z}))
	}
	return ls
}

// LockSet is the up-to-five boundary locks of one member for one update.
type LockSet struct {
	locks [5]*BoundaryLock
	n     int // resolved
	held  int // acquired prefix of locks
}

func (ls *LockSet) push(l *BoundaryLock) {
	ls.locks[ls.n] = l
	ls.n++
}

// Len returns number of resolved (present) slots.
func (ls *LockSet) Len() int {
	return ls.n
}

// Locks returns resolved locks in acquisition order.
func (ls *LockSet) Locks() []*BoundaryLock {
	return ls.locks[:ls.n]
}

// Acquire takes all present locks in order. On failure (ctx cancelled) releases
// what was already taken and returns the context error.
func (ls *LockSet) Acquire(ctx context.Context) error {
	for ls.held < ls.n {
		if err := ls.locks[ls.held].lock(ctx); err != nil {
			ls.Release()
			return err
		}
		ls.held++
	}
	return nil
}

// Release releases every held lock. Safe to call multiple times.
func (ls *LockSet) Release() {
	for ls.held > 0 {
		ls.held--
		ls.locks[ls.held].unlock()
	}
}
