package world

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/tickregion/internal/config"
	"github.com/udisondev/tickregion/internal/model"
	"github.com/udisondev/tickregion/internal/stats"
)

// objectLockStripes — number of striped mutexes backing Manager.Lock.
const objectLockStripes = 64

// Manager routes objects to tick regions by spatial hash, owns the region maps and
// dispatches region passes to the worker pool once per cycle.
type Manager struct {
	grid     Grid
	settings *Settings
	locks    *LockTable
	profiler Profiler
	storage  Storage
	rand     RandSource

	mu           sync.RWMutex
	regions      [kindCount]map[int64]*Region // hash → region, one map per variant
	placeholders [kindCount]*Region

	objectLocks [objectLockStripes]sync.Mutex

	// cycleMu serializes RunCycle and Unload.
	cycleMu sync.Mutex

	workers          int
	tickInterval     time.Duration
	stuckDeadline    time.Duration
	stuckGrace       time.Duration
	watchdogInterval time.Duration

	// poolMu guards pool and watchdog. A closed pool is replaced on next use.
	poolMu   sync.Mutex
	pool     *workerPool
	watchdog *Watchdog
	counters poolCounters // survive pool restarts

	onRemoved func(obj model.Trackable)

	added   atomic.Uint64
	removed atomic.Uint64
	rehomed atomic.Uint64
	cycles  atomic.Uint64
	skipped atomic.Uint64 // regions not dispatched because still in flight
}

// NewManager creates a tick manager. storage must not be nil; profiler may be nil.
func NewManager(cfg config.TickServer, storage Storage, profiler Profiler) *Manager {
	m := &Manager{
		grid:             NewGrid(cfg.RegionSize, cfg.WorldBounds),
		settings:         NewSettings(cfg.VariableTickRate, cfg.Profiling),
		locks:            NewLockTable(),
		profiler:         profiler,
		storage:          storage,
		rand:             DefaultRand,
		workers:          cfg.WorkerCount(),
		tickInterval:     cfg.TickInterval,
		stuckDeadline:    cfg.StuckDeadline,
		stuckGrace:       cfg.StuckGrace,
		watchdogInterval: cfg.WatchdogInterval,
	}
	for k := range kindCount {
		m.regions[k] = make(map[int64]*Region, 64)
		m.placeholders[k] = newRegion(m, Kind(k), 0, 0, true)
	}
	return m
}

// SetRand replaces the should-run random source (tests).
// Must be called before the first cycle.
func (m *Manager) SetRand(rnd RandSource) {
	m.rand = rnd
}

// SetOnRemoved registers a hook called when an object leaves the live simulation.
// Must be called before the first cycle.
func (m *Manager) SetOnRemoved(fn func(obj model.Trackable)) {
	m.onRemoved = fn
}

// SetVariableTickRate toggles adaptive shedding at runtime.
func (m *Manager) SetVariableTickRate(enabled bool) {
	m.settings.SetVariableTickRate(enabled)
}

// SetProfiling toggles global per-object profiling at runtime.
func (m *Manager) SetProfiling(enabled bool) {
	m.settings.SetProfiling(enabled)
}

// Grid returns the spatial grid.
func (m *Manager) Grid() Grid {
	return m.grid
}

// Locks returns the boundary lock table.
func (m *Manager) Locks() *LockTable {
	return m.locks
}

// HashCode returns region hash for world coordinate.
func (m *Manager) HashCode(x, z int32) int64 {
	return m.grid.HashCode(x, z)
}

// Lock acquires per-object synchronization held while an object that may be concurrently
// re-homed is inspected. Returns the unlock function.
func (m *Manager) Lock(obj model.Trackable) (unlock func()) {
	mu := &m.objectLocks[obj.ObjectID()%objectLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Add routes a static object to its region, creating the region on first use.
// Returns whether the object was newly inserted (or queued).
func (m *Manager) Add(obj model.Trackable, isNew bool) bool {
	return m.addTo(KindObject, obj, isNew)
}

// AddEntity routes a mobile entity to its entity region.
func (m *Manager) AddEntity(obj model.Trackable, isNew bool) bool {
	return m.addTo(KindEntity, obj, isNew)
}

func (m *Manager) addTo(kind Kind, obj model.Trackable, isNew bool) bool {
	added := m.route(kind, obj, isNew)
	if added && isNew {
		m.added.Add(1)
		if IsDebugEnabled() {
			slog.Debug("object added to tick manager", "object", obj.ObjectID(), "kind", kind.String(), "location", obj.Location())
		}
	}
	return added
}

// route inserts obj into the region owning its current location.
// The region map read lock is held across the insert so reclaim cannot detach the region
// between lookup and insert.
func (m *Manager) route(kind Kind, obj model.Trackable, isNew bool) bool {
	loc := obj.Location()
	hash, ok := m.grid.HashOf(loc.X, loc.Z)

	if !ok {
		if isNew {
			slog.Warn("object outside world bounds, parked in placeholder region", "object", obj.ObjectID(), "location", loc)
		}
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.placeholders[kind].Add(obj)
	}

	m.mu.RLock()
	if r := m.regions[kind][hash]; r != nil {
		added := r.Add(obj)
		m.mu.RUnlock()
		return added
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check: another goroutine may have created it.
	r := m.regions[kind][hash]
	if r == nil {
		rx, rz := m.grid.Coords(loc.X, loc.Z)
		r = newRegion(m, kind, rx, rz, false)
		m.regions[kind][hash] = r
		if IsDebugEnabled() {
			slog.Debug("tick region created", "kind", kind.String(), "region", r.String())
		}
	}
	return r.Add(obj)
}

// Remove removes obj from the region that holds it. The region of its current location
// is tried first; an object that moved since its last pass is still held by its old
// region and is found there.
func (m *Manager) Remove(obj model.Trackable) bool {
	return m.removeFrom(KindObject, obj)
}

// RemoveEntity removes a mobile entity from its region.
func (m *Manager) RemoveEntity(obj model.Trackable) bool {
	return m.removeFrom(KindEntity, obj)
}

func (m *Manager) removeFrom(kind Kind, obj model.Trackable) bool {
	home := m.regionFor(kind, obj.Location())
	if home != nil {
		if held, removed := home.removeIfHeld(obj); held {
			return removed
		}
	}

	// Not re-homed yet.
	for _, r := range m.regionsOf(kind) {
		if r == home {
			continue
		}
		if held, removed := r.removeIfHeld(obj); held {
			return removed
		}
	}
	return false
}

// regionsOf returns a snapshot of kind's regions, placeholder first.
func (m *Manager) regionsOf(kind Kind) []*Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Region, 0, len(m.regions[kind])+1)
	out = append(out, m.placeholders[kind])
	for _, r := range m.regions[kind] {
		out = append(out, r)
	}
	return out
}

// Removed is the notification hook for an object that left the live simulation.
func (m *Manager) Removed(obj model.Trackable) {
	m.removed.Add(1)
	if IsDebugEnabled() {
		slog.Debug("object removed from tick manager", "object", obj.ObjectID(), "location", obj.Location())
	}
	if m.onRemoved != nil {
		m.onRemoved(obj)
	}
}

// regionFor returns the region owning loc (nil if not created yet).
func (m *Manager) regionFor(kind Kind, loc model.Location) *Region {
	hash, ok := m.grid.HashOf(loc.X, loc.Z)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !ok {
		return m.placeholders[kind]
	}
	return m.regions[kind][hash]
}

// RegionAt returns the region owning world coordinate (x, z), or nil.
func (m *Manager) RegionAt(kind Kind, x, z int32) *Region {
	return m.regionFor(kind, model.Location{X: x, Z: z})
}

// Placeholder returns the "no region" region of kind.
func (m *Manager) Placeholder(kind Kind) *Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.placeholders[kind]
}

// Regions returns a snapshot of all regions (placeholders first).
func (m *Manager) Regions() []*Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := kindCount
	for k := range kindCount {
		n += len(m.regions[k])
	}
	out := make([]*Region, 0, n)
	for k := range kindCount {
		out = append(out, m.placeholders[k])
		for _, r := range m.regions[k] {
			out = append(out, r)
		}
	}
	return out
}

// RegionCount returns number of non-placeholder regions.
func (m *Manager) RegionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for k := range kindCount {
		n += len(m.regions[k])
	}
	return n
}

// ensurePool returns the running worker pool and its watchdog, starting a fresh pair
// if none exists yet or the previous pool was closed.
func (m *Manager) ensurePool() (*workerPool, *Watchdog) {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()

	if m.pool == nil || m.pool.isClosed() {
		m.pool = newWorkerPool(m.workers, &m.counters)
		m.watchdog = newWatchdog(m.pool, m.stuckDeadline, m.stuckGrace, m.watchdogInterval)
	}
	return m.pool, m.watchdog
}

// Watchdog returns the stuck-execution watchdog (starts the worker pool if needed).
func (m *Manager) Watchdog() *Watchdog {
	_, wd := m.ensurePool()
	return wd
}

// RunCycle dispatches every region not already in flight, waits for the passes to finish
// (or be abandoned by the watchdog), applies queued changes and reclaims empty regions.
func (m *Manager) RunCycle(ctx context.Context) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	pool, _ := m.ensurePool()
	regions := m.Regions()

	var wg sync.WaitGroup
	for _, r := range regions {
		if !r.dispatched.CompareAndSwap(false, true) {
			m.skipped.Add(1)
			continue
		}
		wg.Add(1)
		j := &job{region: r, ctx: ctx, done: wg.Done}
		if !pool.submit(ctx, j) {
			r.dispatched.Store(false)
			j.finish()
		}
	}
	wg.Wait()

	for _, r := range regions {
		r.ProcessChanges()
	}
	m.reclaim()
	m.cycles.Add(1)
}

// reclaim detaches empty regions from the manager.
func (m *Manager) reclaim() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range kindCount {
		for hash, r := range m.regions[k] {
			if r.reclaimable() {
				r.Die()
				delete(m.regions[k], hash)
			}
		}
	}
}

// Start runs scheduling cycles every tick interval together with the watchdog.
// Blocks until ctx is cancelled; stops the worker pool on return. A later RunCycle or
// Start runs on a new pool.
func (m *Manager) Start(ctx context.Context) error {
	_, wd := m.ensurePool()
	defer m.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wd.Start(gctx)
	})
	g.Go(func() error {
		return m.tickLoop(gctx)
	})
	return g.Wait()
}

func (m *Manager) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	slog.Info("tick manager started", "interval", m.tickInterval, "workers", m.workers, "region_size", m.grid.RegionSize())

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick manager stopping")
			return ctx.Err()
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// Close stops the worker pool. Safe to call multiple times.
func (m *Manager) Close() {
	m.poolMu.Lock()
	pool := m.pool
	m.poolMu.Unlock()

	if pool != nil {
		pool.close()
	}
}

// Unload kills every region and clears boundary locks (world unload).
func (m *Manager) Unload() {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range kindCount {
		for hash, r := range m.regions[k] {
			r.Die()
			delete(m.regions[k], hash)
		}
		m.placeholders[k].Die()
		m.placeholders[k] = newRegion(m, Kind(k), 0, 0, true)
	}
	m.locks.Clear()
	slog.Info("tick manager unloaded")
}

// Stats returns one row per region with members, sorted by kind and origin.
func (m *Manager) Stats() []stats.Row {
	regions := m.Regions()
	rows := make([]stats.Row, 0, len(regions))
	for _, r := range regions {
		if r.placeholder && r.IsEmpty() {
			continue
		}
		rows = append(rows, r.Stats())
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Tag != b.Tag {
			return a.Tag > b.Tag // "T" before "E"
		}
		if a.Placeholder != b.Placeholder {
			return a.Placeholder
		}
		if a.OriginX != b.OriginX {
			return a.OriginX < b.OriginX
		}
		return a.OriginZ < b.OriginZ
	})
	return rows
}

// Metrics is a counters snapshot.
type Metrics struct {
	Regions     int
	Objects     int
	Added       uint64
	Removed     uint64
	Rehomed     uint64
	Cycles      uint64
	Skipped     uint64
	StuckAborts uint64
	Respawned   uint64
	Workers     int
}

// Metrics returns counters snapshot.
func (m *Manager) Metrics() Metrics {
	out := Metrics{
		Added:   m.added.Load(),
		Removed: m.removed.Load(),
		Rehomed: m.rehomed.Load(),
		Cycles:  m.cycles.Load(),
		Skipped: m.skipped.Load(),
	}
	for _, r := range m.Regions() {
		if !r.placeholder {
			out.Regions++
		}
		out.Objects += r.Size()
	}
	out.StuckAborts = m.counters.stuckAborts.Load()
	out.Respawned = m.counters.respawned.Load()

	m.poolMu.Lock()
	pool := m.pool
	m.poolMu.Unlock()
	if pool != nil && !pool.isClosed() {
		out.Workers = pool.Size()
	}
	return out
}
