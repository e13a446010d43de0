package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ErrUnknownSpeed is returned for a multiplier outside the configured set.
var ErrUnknownSpeed = errors.New("unknown speed multiplier")

// DefaultSpeeds are the multipliers accepted when none are configured.
var DefaultSpeeds = []int{1, 2, 5, 10}

// Status is the scheduler's observable run state.
type Status struct {
	Running  bool          `json:"running"`
	Speed    int           `json:"speed"`
	Interval time.Duration `json:"interval"`
}

// Scheduler drives Simulation.Tick on a ticker. At most one loop runs at a
// time and ticks never overlap.
type Scheduler struct {
	sim    *Simulation
	base   time.Duration
	speeds []int

	mu      sync.Mutex
	root    context.Context
	running bool
	speed   int
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a stopped scheduler at 1x.
func NewScheduler(sim *Simulation, base time.Duration, speeds []int) *Scheduler {
	if len(speeds) == 0 {
		speeds = DefaultSpeeds
	}
	return &Scheduler{
		sim:    sim,
		base:   base,
		speeds: slices.Clone(speeds),
		root:   context.Background(),
		speed:  1,
	}
}

// Start begins ticking under ctx. Cancelling ctx stops the loop after the
// in-flight tick. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = ctx
	s.startLocked()
}

// Pause stops the loop and waits for any in-flight tick to finish.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Resume restarts the loop at the current speed.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

// SetSpeed changes the tick interval to base/multiplier. A running loop is
// replaced with one at the new interval.
func (s *Scheduler) SetSpeed(multiplier int) error {
	if !slices.Contains(s.speeds, multiplier) {
		return fmt.Errorf("%w: %d (allowed %v)", ErrUnknownSpeed, multiplier, s.speeds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = multiplier
	if s.running {
		s.stopLocked()
		s.startLocked()
		return nil
	}
	s.sim.setRunState(false, s.speed)
	s.sim.publish()
	return nil
}

// Reset stops the loop, reseeds the world and restarts if it was running.
// A failed reset keeps the previous world and still restarts the loop.
func (s *Scheduler) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stopLocked()
		defer s.startLocked()
	}
	return s.sim.Reset(ctx)
}

// Apply executes a control command.
func (s *Scheduler) Apply(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandPause:
		s.Pause()
	case CommandResume:
		s.Resume()
	case CommandSpeed:
		return s.SetSpeed(cmd.Multiplier)
	case CommandReset:
		return s.Reset(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}

// Status reports the current run state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.running, Speed: s.speed, Interval: s.interval()}
}

// Speeds returns the accepted multipliers.
func (s *Scheduler) Speeds() []int { return slices.Clone(s.speeds) }

func (s *Scheduler) interval() time.Duration {
	return s.base / time.Duration(s.speed)
}

func (s *Scheduler) startLocked() {
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(s.root)
	done := make(chan struct{})
	s.cancel, s.done, s.running = cancel, done, true
	s.sim.setRunState(true, s.speed)
	s.sim.publish()

	interval := s.interval()
	slog.Info("scheduler started", "speed", s.speed, "interval", interval)
	go s.loop(ctx, interval, done)
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done, s.running = nil, nil, false
	s.sim.setRunState(false, s.speed)
	s.sim.publish()
	slog.Info("scheduler paused")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// An in-flight tick always runs to completion.
			if err := s.sim.Tick(context.WithoutCancel(ctx)); err != nil {
				slog.Error("tick error", "err", err)
			}
		}
	}
}
