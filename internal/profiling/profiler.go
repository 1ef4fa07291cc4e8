// Package profiling collects per-object tick durations.
package profiling

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/tickregion/internal/model"
)

// Entry is aggregated timing of one object.
type Entry struct {
	ObjectID uint32
	Location model.Location // last seen
	Count    uint64
	Total    time.Duration
	Max      time.Duration
}

// Average returns mean tick duration.
func (e Entry) Average() time.Duration {
	if e.Count == 0 {
		return 0
	}
	return e.Total / time.Duration(e.Count)
}

// TickProfiler aggregates Record calls from concurrently ticking regions.
type TickProfiler struct {
	mu      sync.Mutex
	entries map[uint32]*Entry

	ticks atomic.Uint64
}

// NewTickProfiler creates empty profiler.
func NewTickProfiler() *TickProfiler {
	return &TickProfiler{
		entries: make(map[uint32]*Entry, 256),
	}
}

// OnTickStart marks the start of a profiled region pass.
func (p *TickProfiler) OnTickStart() {
	p.ticks.Add(1)
}

// Ticks returns number of profiled passes started.
func (p *TickProfiler) Ticks() uint64 {
	return p.ticks.Load()
}

// Record adds one object tick duration.
func (p *TickProfiler) Record(obj model.Trackable, elapsed time.Duration) {
	id := obj.ObjectID()
	loc := obj.Location()

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		e = &Entry{ObjectID: id}
		p.entries[id] = e
	}
	e.Location = loc
	e.Count++
	e.Total += elapsed
	if elapsed > e.Max {
		e.Max = elapsed
	}
}

// Len returns number of profiled objects.
func (p *TickProfiler) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Top returns up to n entries with the highest total time, slowest first.
func (p *TickProfiler) Top(n int) []Entry {
	p.mu.Lock()
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].ObjectID < out[j].ObjectID
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Reset drops collected data.
func (p *TickProfiler) Reset() {
	p.mu.Lock()
	clear(p.entries)
	p.mu.Unlock()
	p.ticks.Store(0)
}
