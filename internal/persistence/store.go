package persistence

import (
	"context"
	"sync"

	"github.com/talgya/automon-world/internal/world"
)

// Store is the single durable slot holding the whole world.
type Store interface {
	// Load returns the saved world, or (nil, nil) when the slot is empty.
	Load(ctx context.Context) (*world.GameState, error)
	// Save replaces the slot atomically: a failed save leaves the previous
	// snapshot in place.
	Save(ctx context.Context, s *world.GameState) error
}

// Memory is an in-process Store. It keeps a deep copy so callers can keep
// mutating their state after Save.
type Memory struct {
	mu    sync.Mutex
	state *world.GameState
	saves int
}

// NewMemory returns an empty in-memory slot.
func NewMemory() *Memory { return &Memory{} }

// Load implements Store.
func (m *Memory) Load(context.Context) (*world.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, s *world.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	m.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
