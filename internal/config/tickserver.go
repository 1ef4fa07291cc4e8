package config

import (
	"fmt"
	"runtime"
	"time"
)

// Bounds is the horizontal world extent (inclusive). Objects outside are owned by the placeholder region.
type Bounds struct {
	MinX int32 `yaml:"min_x"`
	MaxX int32 `yaml:"max_x"`
	MinZ int32 `yaml:"min_z"`
	MaxZ int32 `yaml:"max_z"`
}

// Contains reports whether (x, z) lies inside bounds.
func (b Bounds) Contains(x, z int32) bool {
	return x >= b.MinX && x <= b.MaxX && z >= b.MinZ && z <= b.MaxZ
}

// Simulation configures the demo population of cmd/tickserver.
type Simulation struct {
	Objects    int           `yaml:"objects"`     // initial object count
	Entities   int           `yaml:"entities"`    // initial mobile entity count
	Spread     int32         `yaml:"spread"`      // spawn square half-size
	Lifetime   time.Duration `yaml:"lifetime"`    // object expires after this
	StallEvery int           `yaml:"stall_every"` // every Nth object stalls once (0 = never)
	Seed       uint64        `yaml:"seed"`
}

// TickServer holds all configuration for the tick server.
type TickServer struct {
	LogLevel string `yaml:"log_level"`

	// Spatial partitioning
	RegionSize  int32  `yaml:"region_size"` // world units per region side
	WorldBounds Bounds `yaml:"world_bounds"`

	// Scheduling
	Workers          int           `yaml:"workers"`            // 0 = runtime.NumCPU()
	TickInterval     time.Duration `yaml:"tick_interval"`      // scheduling cycle period
	VariableTickRate bool          `yaml:"variable_tick_rate"` // adaptive shedding of slow regions
	Profiling        bool          `yaml:"profiling"`          // per-object tick profiling

	// Watchdog
	StuckDeadline    time.Duration `yaml:"stuck_deadline"`    // region pass considered stuck after this
	StuckGrace       time.Duration `yaml:"stuck_grace"`       // extra time before the worker is abandoned
	WatchdogInterval time.Duration `yaml:"watchdog_interval"` // scan period

	// Reporting
	StatsInterval time.Duration `yaml:"stats_interval"`

	Simulation Simulation     `yaml:"simulation"`
	Database   DatabaseConfig `yaml:"database"`
}

// DefaultTickServer returns TickServer config with sensible defaults.
func DefaultTickServer() TickServer {
	return TickServer{
		LogLevel:   "info",
		RegionSize: 16,
		WorldBounds: Bounds{
			MinX: -30_000_000,
			MaxX: 30_000_000,
			MinZ: -30_000_000,
			MaxZ: 30_000_000,
		},
		Workers:          runtime.NumCPU(),
		TickInterval:     50 * time.Millisecond,
		VariableTickRate: true,
		Profiling:        false,
		StuckDeadline:    10 * time.Second,
		StuckGrace:       5 * time.Second,
		WatchdogInterval: 500 * time.Millisecond,
		StatsInterval:    30 * time.Second,
		Simulation: Simulation{
			Objects:    2000,
			Entities:   500,
			Spread:     256,
			Lifetime:   5 * time.Minute,
			StallEvery: 0,
			Seed:       1,
		},
		Database: DefaultDatabase(),
	}
}

// Validate checks value ranges.
func (c TickServer) Validate() error {
	switch {
	case c.RegionSize <= 0:
		return fmt.Errorf("%w: region_size must be > 0, got %d", ErrInvalid, c.RegionSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick_interval must be > 0", ErrInvalid)
	case c.StuckDeadline <= 0:
		return fmt.Errorf("%w: stuck_deadline must be > 0", ErrInvalid)
	case c.StuckGrace < 0:
		return fmt.Errorf("%w: stuck_grace must be >= 0", ErrInvalid)
	case c.WatchdogInterval <= 0:
		return fmt.Errorf("%w: watchdog_interval must be > 0", ErrInvalid)
	case c.StatsInterval <= 0:
		return fmt.Errorf("%w: stats_interval must be > 0", ErrInvalid)
	case c.WorldBounds.MinX > c.WorldBounds.MaxX || c.WorldBounds.MinZ > c.WorldBounds.MaxZ:
		return fmt.Errorf("%w: world_bounds min greater than max", ErrInvalid)
	}
	return nil
}

// WorkerCount returns effective number of workers.
func (c TickServer) WorkerCount() int {
	if c.Workers == 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// LoadTickServer loads tick server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadTickServer(path string) (TickServer, error) {
	cfg := DefaultTickServer()

	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}
