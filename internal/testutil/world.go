package testutil

import (
	"testing"
	"time"

	"github.com/udisondev/tickregion/internal/config"
	"github.com/udisondev/tickregion/internal/world"
)

// TestTickConfig returns a fast deterministic tick config: no shedding, short deadlines,
// small world bounds.
func TestTickConfig() config.TickServer {
	cfg := config.DefaultTickServer()
	cfg.Workers = 2
	cfg.VariableTickRate = false
	cfg.TickInterval = 5 * time.Millisecond
	cfg.StuckDeadline = 100 * time.Millisecond
	cfg.StuckGrace = 100 * time.Millisecond
	cfg.WatchdogInterval = 10 * time.Millisecond
	cfg.WorldBounds = config.Bounds{MinX: -4096, MaxX: 4096, MinZ: -4096, MaxZ: 4096}
	return cfg
}

// NewTestManager creates a world.Manager with all chunks loaded and closes it on cleanup.
func NewTestManager(t testing.TB, profiler world.Profiler, mutate ...func(*config.TickServer)) (*world.Manager, *world.ChunkSet) {
	t.Helper()

	cfg := TestTickConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	storage := world.NewChunkSet(true)

	m := world.NewManager(cfg, storage, profiler)
	t.Cleanup(m.Close)
	return m, storage
}
