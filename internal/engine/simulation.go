// Simulation ties together the world state, the decision policy, the battle
// resolver and the snapshot slot, and runs them once per tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/battle"
	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
	"github.com/talgya/automon-world/internal/persistence"
	"github.com/talgya/automon-world/internal/world"
)

// Decider chooses a trainer's action. It must always return a decision.
type Decider interface {
	Decide(ctx context.Context, c *agents.Context, rng *entropy.Source) agents.Decision
}

// Metrics receives engine measurements. All methods must be cheap.
type Metrics interface {
	TickCompleted(d time.Duration, failed bool)
	BattleResolved(kind string, won bool)
	EventLogged(category string)
	SnapshotSaveFailed()
}

type noopMetrics struct{}

func (noopMetrics) TickCompleted(time.Duration, bool) {}
func (noopMetrics) BattleResolved(string, bool)       {}
func (noopMetrics) EventLogged(string)                {}
func (noopMetrics) SnapshotSaveFailed()               {}

// Options configures a Simulation.
type Options struct {
	TicksPerDay int
	Gen         world.GenConfig
	Metrics     Metrics
	Hub         *Hub
}

// Simulation owns the single GameState. Only Tick and Reset replace it;
// everything else reads clones through State or Snapshot.
type Simulation struct {
	cat      *catalog.Catalog
	store    persistence.Store
	decider  Decider
	resolver *battle.Resolver
	opts     Options
	metrics  Metrics
	hub      *Hub

	tickMu    sync.Mutex // serializes Tick, Init and Reset
	rng       *entropy.Source
	abundance *world.Abundance
	pending   []string // system messages to log on the next tick

	mu    sync.RWMutex
	state *world.GameState

	running atomic.Bool
	speed   atomic.Int32
}

// NewSimulation creates a Simulation. Call Init before the first tick.
func NewSimulation(cat *catalog.Catalog, store persistence.Store, decider Decider, opts Options) *Simulation {
	if opts.TicksPerDay <= 0 {
		opts.TicksPerDay = world.DefaultTicksPerDay
	}
	m := opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub()
	}
	s := &Simulation{
		cat:      cat,
		store:    store,
		decider:  decider,
		resolver: &battle.Resolver{Catalog: cat},
		opts:     opts,
		metrics:  m,
		hub:      hub,
	}
	s.speed.Store(1)
	return s
}

// Init loads the saved world, or seeds and saves a fresh one when the slot
// is empty.
func (s *Simulation) Init(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	st, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}
	if st == nil {
		st = world.New(s.cat, s.opts.Gen)
		if err := s.store.Save(ctx, st); err != nil {
			return fmt.Errorf("save fresh world: %w", err)
		}
		slog.Info("seeded fresh world", "world_id", st.WorldID, "seed", st.Seed, "trainers", len(st.Trainers))
	} else {
		slog.Info("loaded world", "world_id", st.WorldID, "tick", st.Tick, "day", st.Day)
	}
	s.install(st)
	return nil
}

// Reset discards the current world and seeds a new one from the same seed.
func (s *Simulation) Reset(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	gen := s.opts.Gen
	if cur := s.current(); cur != nil {
		gen.Seed = cur.Seed
	}
	st := world.New(s.cat, gen)

	// Save replaces the slot in one write; on failure the old world stays
	// both in memory and on disk.
	if err := s.store.Save(ctx, st); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.pending = nil
	s.install(st)
	slog.Info("world reset", "world_id", st.WorldID, "seed", st.Seed)
	return nil
}

// install swaps in a new root state and re-derives the random streams from
// its seed and tick.
func (s *Simulation) install(st *world.GameState) {
	s.rng = entropy.Derive(st.Seed, st.Tick)
	s.abundance = world.NewAbundance(st.Seed)
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.publish()
}

func (s *Simulation) current() *world.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// State returns a deep copy of the current world.
func (s *Simulation) State() *world.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

// Snapshot returns the observer view of the current world.
func (s *Simulation) Snapshot() *world.Snapshot {
	return &world.Snapshot{
		State:   s.State(),
		Catalog: s.cat,
		Running: s.running.Load(),
		Speed:   int(s.speed.Load()),
	}
}

// Catalog returns the reference tables.
func (s *Simulation) Catalog() *catalog.Catalog { return s.cat }

// Hub returns the snapshot hub.
func (s *Simulation) Hub() *Hub { return s.hub }

func (s *Simulation) setRunState(running bool, speed int) {
	s.running.Store(running)
	s.speed.Store(int32(speed))
}

func (s *Simulation) publish() {
	s.hub.Publish(s.Snapshot())
}

// Tick advances the world by one tick. The tick runs on a clone that is
// committed only when every phase finishes; a panic commits the previous
// state plus a system event instead. Ticks never overlap.
func (s *Simulation) Tick(ctx context.Context) (err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	prev := s.current()
	if prev == nil {
		return fmt.Errorf("tick: world not initialized")
	}
	start := time.Now()
	next := prev.Clone()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("tick failed", "tick", next.Tick, "panic", r)
			failed := prev.Clone()
			failed.Log(world.CategorySystem, "", "tick %d failed and was rolled back: %v", next.Tick, r)
			s.commit(ctx, failed, prev.NextEventSeq)
			s.metrics.TickCompleted(time.Since(start), true)
			err = fmt.Errorf("tick %d: panic: %v", next.Tick, r)
		}
	}()

	s.runTick(ctx, next)
	s.pending = nil
	s.commit(ctx, next, prev.NextEventSeq)
	s.metrics.TickCompleted(time.Since(start), false)
	return nil
}

// commit installs st as the current world, persists it and notifies
// observers. A failed save leaves memory ahead of disk until the next save.
func (s *Simulation) commit(ctx context.Context, st *world.GameState, prevSeq uint64) {
	for _, e := range st.EventsSince(prevSeq) {
		s.metrics.EventLogged(e.Category)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	if err := s.store.Save(ctx, st); err != nil {
		slog.Error("snapshot save failed", "tick", st.Tick, "err", err)
		s.metrics.SnapshotSaveFailed()
		s.pending = append(s.pending, fmt.Sprintf("snapshot save failed at tick %d", st.Tick))
	}
	s.publish()
}
