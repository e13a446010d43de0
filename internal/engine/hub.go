package engine

import (
	"sync"

	"github.com/talgya/automon-world/internal/world"
)

// Hub fans snapshots out to subscribers. Each subscriber has a one-slot
// mailbox: a slow reader skips intermediate snapshots and always sees the
// newest one.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan *world.Snapshot
	nextID int
	latest *world.Snapshot
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan *world.Snapshot)}
}

// Subscribe registers a mailbox. The latest snapshot, if any, is delivered
// immediately. Call cancel to unsubscribe; the channel is closed.
func (h *Hub) Subscribe() (<-chan *world.Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan *world.Snapshot, 1)
	if h.latest != nil {
		ch <- h.latest
	}
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Publish replaces every mailbox's content with snap. It never blocks.
func (h *Hub) Publish(snap *world.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = snap
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Latest returns the most recent snapshot, or nil before the first publish.
func (h *Hub) Latest() *world.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Subscribers reports the number of open mailboxes.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
