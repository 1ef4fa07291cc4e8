package world

import (
	"math/rand/v2"
	"sync/atomic"
	"time"
)

const (
	// LowLoadThreshold — regions averaging below this always run under adaptive shedding.
	LowLoadThreshold = 55 * time.Millisecond

	// ewmaWeight — new sample contributes 1/ewmaWeight of the average.
	ewmaWeight = 128

	// initialAverage matches a fresh region: effectively zero but non-zero.
	initialAverage = 1.0
)

// Settings is the runtime scheduling configuration shared by a Manager and its regions.
// Fields are atomics so flags can be flipped while ticks are in flight.
type Settings struct {
	variableTickRate atomic.Bool
	profiling        atomic.Bool
}

// NewSettings creates settings with the given initial flags.
func NewSettings(variableTickRate, profiling bool) *Settings {
	s := &Settings{}
	s.variableTickRate.Store(variableTickRate)
	s.profiling.Store(profiling)
	return s
}

// VariableTickRate reports whether adaptive shedding is enabled.
func (s *Settings) VariableTickRate() bool { return s.variableTickRate.Load() }

// SetVariableTickRate enables or disables adaptive shedding.
func (s *Settings) SetVariableTickRate(v bool) { s.variableTickRate.Store(v) }

// Profiling reports whether global per-object profiling is enabled.
func (s *Settings) Profiling() bool { return s.profiling.Load() }

// SetProfiling enables or disables global profiling.
func (s *Settings) SetProfiling(v bool) { s.profiling.Store(v) }

// RandSource returns uniform values in [0, 1).
type RandSource func() float64

// DefaultRand is the package-level uniform source.
var DefaultRand RandSource = rand.Float64

// shouldRun decides whether a region with the given average (nanoseconds) runs this cycle.
// Above the threshold a region runs with probability threshold/average, so a region at
// twice the threshold runs about half of the cycles and none fully starves.
func shouldRun(variable bool, averageNanos float64, rnd RandSource) bool {
	if !variable {
		return true
	}
	threshold := float64(LowLoadThreshold.Nanoseconds())
	if averageNanos < threshold {
		return true
	}
	return rnd() < threshold/averageNanos
}

// foldAverage folds elapsed sample into EWMA average (both nanoseconds).
func foldAverage(average float64, elapsed time.Duration) float64 {
	return (average*(ewmaWeight-1) + float64(elapsed.Nanoseconds())) / ewmaWeight
}
