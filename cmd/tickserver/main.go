package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/tickregion/internal/config"
	"github.com/udisondev/tickregion/internal/db"
	"github.com/udisondev/tickregion/internal/profiling"
	"github.com/udisondev/tickregion/internal/sim"
	"github.com/udisondev/tickregion/internal/stats"
	"github.com/udisondev/tickregion/internal/world"
)

const TickConfigPath = "config/tickserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := TickConfigPath
	if p := os.Getenv("TICKREGION_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadTickServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading tick server config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
	world.EnableDebugLogging(logLevel == slog.LevelDebug)

	slog.Info("tick server starting",
		"log_level", cfg.LogLevel,
		"region_size", cfg.RegionSize,
		"workers", cfg.WorkerCount(),
		"tick_interval", cfg.TickInterval,
		"variable_tick_rate", cfg.VariableTickRate)

	reporters := stats.Multi{stats.LogReporter{Top: 5}}

	profiler := profiling.NewTickProfiler()
	manager := world.NewManager(cfg, world.NewChunkSet(true), profiler)

	spawner := sim.NewSpawner(manager, cfg.Simulation, world.IDGenerator())
	if err := spawner.Populate(); err != nil {
		return fmt.Errorf("populating simulation: %w", err)
	}

	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		version, err := db.RunMigrations(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied", "version", version)

		reporters = append(reporters, db.NewSnapshotReporter(database.Stats(), func() db.SnapshotTotals {
			mt := manager.Metrics()
			return db.SnapshotTotals{
				Regions:     mt.Regions,
				Objects:     mt.Objects,
				Cycles:      mt.Cycles,
				Skipped:     mt.Skipped,
				StuckAborts: mt.StuckAborts,
				Respawned:   mt.Respawned,
			}
		}, cfg.Database.KeepSnapshots))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Start(gctx)
	})
	g.Go(func() error {
		return spawner.Start(gctx)
	})
	g.Go(func() error {
		return reportLoop(gctx, cfg.StatsInterval, manager, spawner, profiler, reporters)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("tick server stopped", "cycles", manager.Metrics().Cycles)
	return nil
}

// reportLoop publishes region stats every interval.
func reportLoop(ctx context.Context, interval time.Duration, m *world.Manager, s *sim.Spawner, p *profiling.TickProfiler, reporter stats.Reporter) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := reporter.Report(ctx, m.Stats()); err != nil {
			// Persistence failure is not fatal: the simulation keeps running.
			slog.Error("reporting tick stats", "err", err)
		}

		mt := m.Metrics()
		sc := s.Counters()
		slog.Info("tick manager metrics",
			"regions", mt.Regions,
			"objects", mt.Objects,
			"cycles", mt.Cycles,
			"skipped", mt.Skipped,
			"rehomed", mt.Rehomed,
			"stuck_aborts", mt.StuckAborts,
			"respawned_workers", mt.Respawned,
			"sim_spawned", sc.Spawned,
			"sim_expired", sc.Expired,
			"sim_stalls", sc.Stalls)

		for _, e := range p.Top(3) {
			slog.Info("slow object",
				"object", e.ObjectID,
				"location", e.Location,
				"count", e.Count,
				"avg", e.Average(),
				"max", e.Max)
		}
		p.Reset()
	}
}

// parseLogLevel converts string log level to slog.Level.
// Returns slog.LevelInfo for unknown values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
