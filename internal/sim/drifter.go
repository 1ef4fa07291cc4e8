// Package sim is the demo population of cmd/tickserver: objects that drift across
// region boundaries, expire after a lifetime and occasionally stall.
package sim

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/udisondev/tickregion/internal/model"
)

// Drifter is the per-object simulation state stored in model.WorldObject.Data.
// Mutated only by the object's own tick (one region ticks an object at a time).
type Drifter struct {
	VX, VZ   int32 // units per tick
	Born     time.Time
	Lifetime time.Duration // 0 = never expires
	Stall    bool          // block once until the pass is interrupted

	stalled atomic.Bool
}

// Stalled reports whether the one-off stall already happened.
func (d *Drifter) Stalled() bool {
	return d.stalled.Load()
}

// DrifterOf returns simulation state of obj (nil if obj is not simulated).
func DrifterOf(obj *model.WorldObject) *Drifter {
	d, _ := obj.Data.(*Drifter)
	return d
}

// tick is the update callback of every simulated object.
func (s *Spawner) tick(ctx context.Context, obj *model.WorldObject) error {
	d := DrifterOf(obj)
	if d == nil {
		return nil
	}

	if d.Lifetime > 0 && s.now().Sub(d.Born) >= d.Lifetime {
		// Регион удалит объект на следующем проходе.
		obj.MarkRemoved()
		return nil
	}

	if d.Stall && d.stalled.CompareAndSwap(false, true) {
		s.stalls.Add(1)
		slog.Warn("simulated object stalling", "object", obj.ObjectID(), "location", obj.Location())
		<-ctx.Done()
		return ctx.Err()
	}

	loc := obj.Move(d.VX, 0, d.VZ)

	// Bounce off the spawn square.
	if s.cfg.Spread > 0 {
		if loc.X > s.cfg.Spread || loc.X < -s.cfg.Spread {
			d.VX = -d.VX
		}
		if loc.Z > s.cfg.Spread || loc.Z < -s.cfg.Spread {
			d.VZ = -d.VZ
		}
	}
	return nil
}
