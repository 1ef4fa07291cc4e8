package world

import (
	"sync"
	"sync/atomic"

	"github.com/udisondev/tickregion/internal/model"
)

// Storage is the world storage collaborator consulted by the tick body.
type Storage interface {
	// ChunkLoaded reports whether the chunk containing (x, z) is loaded.
	ChunkLoaded(x, z int32) bool
	// NotifyRemoved tells storage that an object at loc left the simulation and needs cleanup.
	NotifyRemoved(obj model.Trackable, loc model.Location)
}

type chunkKey struct{ cx, cz int32 }

// ChunkSet is an in-memory Storage: a set of loaded chunks plus a removal counter.
type ChunkSet struct {
	loadAll bool

	mu     sync.RWMutex
	loaded map[chunkKey]struct{}

	removed atomic.Uint64
	onClean func(obj model.Trackable, loc model.Location)
}

// NewChunkSet creates storage. loadAll=true treats every chunk as loaded.
func NewChunkSet(loadAll bool) *ChunkSet {
	return &ChunkSet{
		loadAll: loadAll,
		loaded:  make(map[chunkKey]struct{}),
	}
}

// Load marks the chunk containing (x, z) as loaded.
func (s *ChunkSet) Load(x, z int32) {
	cx, cz := ChunkCoords(x, z)
	s.mu.Lock()
	s.loaded[chunkKey{cx, cz}] = struct{}{}
	s.mu.Unlock()
}

// Unload marks the chunk containing (x, z) as unloaded.
func (s *ChunkSet) Unload(x, z int32) {
	cx, cz := ChunkCoords(x, z)
	s.mu.Lock()
	delete(s.loaded, chunkKey{cx, cz})
	s.mu.Unlock()
}

// ChunkLoaded implements Storage.
func (s *ChunkSet) ChunkLoaded(x, z int32) bool {
	if s.loadAll {
		return true
	}
	cx, cz := ChunkCoords(x, z)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loaded[chunkKey{cx, cz}]
	return ok
}

// OnClean registers a cleanup callback. Must be set before ticking starts.
func (s *ChunkSet) OnClean(fn func(obj model.Trackable, loc model.Location)) {
	s.onClean = fn
}

// NotifyRemoved implements Storage.
func (s *ChunkSet) NotifyRemoved(obj model.Trackable, loc model.Location) {
	s.removed.Add(1)
	if s.onClean != nil {
		s.onClean(obj, loc)
	}
}

// Removed returns number of cleanup notifications.
func (s *ChunkSet) Removed() uint64 {
	return s.removed.Load()
}
