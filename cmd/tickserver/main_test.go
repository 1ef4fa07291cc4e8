package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tickregion/internal/config"
	"github.com/udisondev/tickregion/internal/model"
	"github.com/udisondev/tickregion/internal/profiling"
	"github.com/udisondev/tickregion/internal/sim"
	"github.com/udisondev/tickregion/internal/testutil"
	"github.com/udisondev/tickregion/internal/world"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReportLoop(t *testing.T) {
	profiler := profiling.NewTickProfiler()
	m, _ := testutil.NewTestManager(t, profiler, func(c *config.TickServer) { c.Profiling = true })
	s := sim.NewSpawner(m, config.Simulation{}, world.NewObjectIDGenerator())

	_, err := s.SpawnAt(world.KindObject, model.NewLocation(1, 0, 1), 0, 0)
	require.NoError(t, err)
	m.RunCycle(context.Background())
	require.Equal(t, 1, profiler.Len())

	rep := &testutil.MockReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reportLoop(ctx, time.Millisecond, m, s, profiler, rep) }()

	require.Eventually(t, func() bool { return len(rep.Reports()) >= 2 }, 5*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	first := rep.Reports()[0]
	require.Len(t, first, 1)
	assert.Equal(t, "T", first[0].Tag)
	assert.Equal(t, 1, first[0].Members)
	assert.Zero(t, profiler.Len(), "profiler reset after each report")
}
