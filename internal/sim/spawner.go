package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/tickregion/internal/config"
	"github.com/udisondev/tickregion/internal/model"
	"github.com/udisondev/tickregion/internal/world"
)

const (
	// DefaultRespawnDelay — delay before an expired object is replaced.
	DefaultRespawnDelay = 5 * time.Second

	// maxSpeed — maximum drift per tick on each axis.
	maxSpeed = 4
)

// respawnTask is a scheduled replacement of an expired object.
type respawnTask struct {
	kind world.Kind
	at   time.Time
}

// Counters is a snapshot of spawner activity.
type Counters struct {
	Spawned uint64
	Expired uint64
	Stalls  uint64
	Live    int64
	Pending int
}

// Spawner populates a world.Manager with drifting objects and replaces expired ones.
type Spawner struct {
	manager *world.Manager
	cfg     config.Simulation
	ids     *world.ObjectIDGenerator
	now     func() time.Time

	respawnDelay  time.Duration
	checkInterval time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.Mutex
	tasks []respawnTask

	spawned atomic.Uint64
	expired atomic.Uint64
	stalls  atomic.Uint64
	live    atomic.Int64
}

// NewSpawner creates spawner and registers its removal hook on m.
// Must be called before the manager runs its first cycle.
func NewSpawner(m *world.Manager, cfg config.Simulation, ids *world.ObjectIDGenerator) *Spawner {
	s := &Spawner{
		manager:       m,
		cfg:           cfg,
		ids:           ids,
		now:           time.Now,
		respawnDelay:  DefaultRespawnDelay,
		checkInterval: time.Second,
		rng:           rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	m.SetOnRemoved(s.onRemoved)
	return s
}

// SetClock replaces the time source (tests).
func (s *Spawner) SetClock(now func() time.Time) {
	s.now = now
}

// SetRespawnDelay changes the delay before expired objects are replaced (0 disables respawn).
func (s *Spawner) SetRespawnDelay(d time.Duration) {
	s.respawnDelay = d
}

// Populate spawns the configured initial population.
func (s *Spawner) Populate() error {
	for range s.cfg.Objects {
		if _, err := s.spawn(world.KindObject); err != nil {
			return err
		}
	}
	for range s.cfg.Entities {
		if _, err := s.spawn(world.KindEntity); err != nil {
			return err
		}
	}

	slog.Info("simulation populated",
		"objects", s.cfg.Objects,
		"entities", s.cfg.Entities,
		"spread", s.cfg.Spread,
		"lifetime", s.cfg.Lifetime,
		"stall_every", s.cfg.StallEvery)
	return nil
}

// spawn creates one object of kind at a random position with a random velocity.
func (s *Spawner) spawn(kind world.Kind) (*model.WorldObject, error) {
	s.rngMu.Lock()
	x := s.coord()
	z := s.coord()
	vx := s.rng.Int32N(2*maxSpeed+1) - maxSpeed
	vz := s.rng.Int32N(2*maxSpeed+1) - maxSpeed
	s.rngMu.Unlock()

	return s.SpawnAt(kind, model.NewLocation(x, 0, z), vx, vz)
}

func (s *Spawner) coord() int32 {
	if s.cfg.Spread <= 0 {
		return 0
	}
	return s.rng.Int32N(2*s.cfg.Spread+1) - s.cfg.Spread
}

// SpawnAt adds one simulated object of kind at loc drifting by (vx, vz) per tick.
// Static objects contend on all neighbour boundaries, entities on their own cell only.
func (s *Spawner) SpawnAt(kind world.Kind, loc model.Location, vx, vz int32) (*model.WorldObject, error) {
	n := s.spawned.Add(1)

	var (
		id    uint32
		name  string
		slots model.LockSlots
	)
	if kind == world.KindEntity {
		id, name, slots = s.ids.NextEntityID(), "entity", model.SlotSelf
	} else {
		id, name, slots = s.ids.NextObjectID(), "object", model.SlotNeighbours
	}

	obj := model.NewWorldObject(id, name, loc)
	obj.SetLockSlots(slots)
	obj.Data = &Drifter{
		VX:       vx,
		VZ:       vz,
		Born:     s.now(),
		Lifetime: s.cfg.Lifetime,
		Stall:    s.cfg.StallEvery > 0 && n%uint64(s.cfg.StallEvery) == 0,
	}
	obj.SetTickFunc(s.tick)

	var added bool
	if kind == world.KindEntity {
		added = s.manager.AddEntity(obj, true)
	} else {
		added = s.manager.Add(obj, true)
	}
	if !added {
		return nil, fmt.Errorf("adding simulated %s %d at %s: already present", name, id, loc)
	}

	s.live.Add(1)
	return obj, nil
}

// onRemoved is the manager removal hook: count and schedule a replacement.
func (s *Spawner) onRemoved(obj model.Trackable) {
	s.expired.Add(1)
	s.live.Add(-1)

	if s.respawnDelay <= 0 {
		return
	}

	kind := world.KindObject
	if world.IsEntityID(obj.ObjectID()) {
		kind = world.KindEntity
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, respawnTask{kind: kind, at: s.now().Add(s.respawnDelay)})
	s.mu.Unlock()

	if world.IsDebugEnabled() {
		slog.Debug("respawn scheduled", "object", obj.ObjectID(), "kind", kind.String(), "delay", s.respawnDelay)
	}
}

// Start processes due respawns every check interval (blocks until ctx is cancelled).
func (s *Spawner) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	slog.Info("simulation spawner started", "interval", s.checkInterval, "respawn_delay", s.respawnDelay)

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation spawner stopping")
			return ctx.Err()
		case <-ticker.C:
			s.ProcessDue(s.now())
		}
	}
}

// ProcessDue spawns replacements for every task due at now. Returns number spawned.
func (s *Spawner) ProcessDue(now time.Time) int {
	s.mu.Lock()
	var due []respawnTask
	kept := s.tasks[:0]
	for _, task := range s.tasks {
		if !now.Before(task.at) {
			due = append(due, task)
		} else {
			kept = append(kept, task)
		}
	}
	s.tasks = kept
	s.mu.Unlock()

	spawned := 0
	for _, task := range due {
		if _, err := s.spawn(task.kind); err != nil {
			slog.Error("respawn failed", "kind", task.kind.String(), "error", err)
			continue
		}
		spawned++
	}
	return spawned
}

// Counters returns activity snapshot.
func (s *Spawner) Counters() Counters {
	s.mu.Lock()
	pending := len(s.tasks)
	s.mu.Unlock()

	return Counters{
		Spawned: s.spawned.Load(),
		Expired: s.expired.Load(),
		Stalls:  s.stalls.Load(),
		Live:    s.live.Load(),
		Pending: pending,
	}
}
