package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/tickregion/internal/model"
	"github.com/udisondev/tickregion/internal/stats"
)

// ErrMockTick — ошибка, возвращаемая MockTrackable при FailTicks.
var ErrMockTick = errors.New("mock tick failure")

// MockTrackable — Trackable с управляемым поведением для unit тестов.
// Записывает каждый вызов Tick; может падать, паниковать или блокироваться.
type MockTrackable struct {
	id    uint32
	slots model.LockSlots

	mu  sync.Mutex
	loc model.Location

	removable atomic.Bool
	detached  atomic.Bool
	fail      atomic.Bool
	panics    atomic.Bool
	ticks     atomic.Int64

	// OnTick вызывается внутри Tick (если задан) до проверки fail/panic.
	OnTick func(ctx context.Context)
}

// NewMockTrackable создаёт mock с заданным ID и позицией.
func NewMockTrackable(id uint32, loc model.Location, slots model.LockSlots) *MockTrackable {
	return &MockTrackable{id: id, loc: loc, slots: slots}
}

// ObjectID implements model.Trackable.
func (m *MockTrackable) ObjectID() uint32 { return m.id }

// Location implements model.Trackable.
func (m *MockTrackable) Location() model.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loc
}

// MoveTo перемещает объект.
func (m *MockTrackable) MoveTo(loc model.Location) {
	m.mu.Lock()
	m.loc = loc
	m.mu.Unlock()
}

// LockSlots implements model.BoundaryAware.
func (m *MockTrackable) LockSlots() model.LockSlots { return m.slots }

// Removable implements model.Trackable.
func (m *MockTrackable) Removable() bool { return m.removable.Load() }

// Attached implements model.Trackable.
func (m *MockTrackable) Attached() bool { return !m.detached.Load() }

// SetRemovable помечает объект на удаление.
func (m *MockTrackable) SetRemovable(v bool) { m.removable.Store(v) }

// SetDetached отсоединяет объект от мира.
func (m *MockTrackable) SetDetached(v bool) { m.detached.Store(v) }

// FailTicks заставляет Tick возвращать ErrMockTick.
func (m *MockTrackable) FailTicks(v bool) { m.fail.Store(v) }

// PanicTicks заставляет Tick паниковать.
func (m *MockTrackable) PanicTicks(v bool) { m.panics.Store(v) }

// Ticks возвращает число вызовов Tick.
func (m *MockTrackable) Ticks() int64 { return m.ticks.Load() }

// Tick implements model.Trackable.
func (m *MockTrackable) Tick(ctx context.Context) error {
	m.ticks.Add(1)
	if m.OnTick != nil {
		m.OnTick(ctx)
	}
	if m.panics.Load() {
		panic("mock tick panic")
	}
	if m.fail.Load() {
		return ErrMockTick
	}
	return nil
}

// MockProfiler — thread-safe профайлер, собирающий все Record вызовы.
type MockProfiler struct {
	mu      sync.Mutex
	starts  int
	records map[uint32][]time.Duration
}

// NewMockProfiler создаёт пустой MockProfiler.
func NewMockProfiler() *MockProfiler {
	return &MockProfiler{records: make(map[uint32][]time.Duration)}
}

// OnTickStart implements world.Profiler.
func (p *MockProfiler) OnTickStart() {
	p.mu.Lock()
	p.starts++
	p.mu.Unlock()
}

// Record implements world.Profiler.
func (p *MockProfiler) Record(obj model.Trackable, elapsed time.Duration) {
	p.mu.Lock()
	p.records[obj.ObjectID()] = append(p.records[obj.ObjectID()], elapsed)
	p.mu.Unlock()
}

// Starts возвращает число OnTickStart.
func (p *MockProfiler) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// Recorded возвращает число записей для объекта.
func (p *MockProfiler) Recorded(id uint32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records[id])
}

// MockReporter — stats.Reporter, сохраняющий все снимки.
type MockReporter struct {
	mu      sync.Mutex
	reports [][]stats.Row
	Err     error
}

// Report implements stats.Reporter.
func (r *MockReporter) Report(_ context.Context, rows []stats.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, append([]stats.Row(nil), rows...))
	return r.Err
}

// Reports возвращает копию всех полученных снимков.
func (r *MockReporter) Reports() [][]stats.Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]stats.Row(nil), r.reports...)
}
