// Package agents provides the trainer and creature data model, needs decay,
// creature growth, the action vocabulary and the rule-based fallback policy.
package agents

import (
	"sort"

	"github.com/talgya/automon-world/internal/catalog"
)

// Busy actions are timed actions that block decisions until they complete.
const (
	BusySleep  = "sleep"
	BusyTravel = "travel"
)

// Status is derived from a creature's health and stamina; see RefreshStatus.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusInjured   Status = "injured"
	StatusExhausted Status = "exhausted"
	StatusFainted   Status = "fainted"
)

// Stats are a creature's combat stats.
type Stats struct {
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Speed   int `json:"speed"`
	Stamina int `json:"stamina"`
}

// AutoMon is a creature owned by a trainer.
type AutoMon struct {
	ID        string          `json:"id"`
	SpeciesID string          `json:"species_id"`
	Nickname  string          `json:"nickname"`
	Element   catalog.Element `json:"element"`

	Level     int `json:"level"`
	XP        int `json:"xp"`
	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`
	Hunger    int `json:"hunger"`  // 0–100, 100 = fed
	Loyalty   int `json:"loyalty"` // 0–100, removed at 0

	Stats          Stats    `json:"stats"`
	Abilities      []string `json:"abilities"`
	Status         Status   `json:"status"`
	StaminaCurrent int      `json:"stamina_current"`
}

// Crop is a planted seed waiting to be harvested.
type Crop struct {
	ItemID      string `json:"item_id"`
	LocationID  string `json:"location_id"`
	PlantedTick uint64 `json:"planted_tick"`
	ReadyTick   uint64 `json:"ready_tick"`
	Watered     bool   `json:"watered"`
}

// Inventory maps item id to a positive count. Zero entries are pruned.
type Inventory map[string]int

// Count returns how many of id are held.
func (inv Inventory) Count(id string) int { return inv[id] }

// Add adds n of id. Non-positive n is ignored.
func (inv Inventory) Add(id string, n int) {
	if n <= 0 {
		return
	}
	inv[id] += n
}

// Remove takes n of id. It reports false and changes nothing when fewer than
// n are held.
func (inv Inventory) Remove(id string, n int) bool {
	if n <= 0 || inv[id] < n {
		return false
	}
	inv[id] -= n
	if inv[id] == 0 {
		delete(inv, id)
	}
	return true
}

// Sorted returns the held item ids in lexical order.
func (inv Inventory) Sorted() []string {
	ids := make([]string, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Trainer is one autonomous agent.
type Trainer struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Survival gauges, 0–100. Hunger is satiety: 100 = full.
	Health int `json:"health"`
	Energy int `json:"energy"`
	Hunger int `json:"hunger"`

	Gold       int       `json:"gold"`
	LocationID string    `json:"location_id"`
	Inventory  Inventory `json:"inventory"`

	StableCapacity int        `json:"stable_capacity"`
	AutoMons       []*AutoMon `json:"automons"`
	Crops          []Crop     `json:"crops"`

	Elo    int `json:"elo"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	// At most one timed action is in flight.
	BusyAction      string `json:"busy_action,omitempty"`
	BusyUntilTick   uint64 `json:"busy_until_tick,omitempty"`
	PendingTravelTo string `json:"pending_travel_to,omitempty"`
}

// IsBusy reports whether a timed action is still running at tick.
func (t *Trainer) IsBusy(tick uint64) bool {
	return t.BusyAction != "" && tick < t.BusyUntilTick
}

// ClearBusy drops any in-flight timed action.
func (t *Trainer) ClearBusy() {
	t.BusyAction = ""
	t.BusyUntilTick = 0
	t.PendingTravelTo = ""
}

// Lead returns the first creature with health above zero, or nil.
func (t *Trainer) Lead() *AutoMon {
	for _, m := range t.AutoMons {
		if m.Health > 0 {
			return m
		}
	}
	return nil
}

// RosterFull reports whether the stable has no free slot.
func (t *Trainer) RosterFull() bool {
	return len(t.AutoMons) >= t.StableCapacity
}

// FindAutoMon looks a creature up by id or nickname.
func (t *Trainer) FindAutoMon(ref string) *AutoMon {
	for _, m := range t.AutoMons {
		if m.ID == ref || m.Nickname == ref {
			return m
		}
	}
	return nil
}

// RemoveAutoMon drops the creature with the given id. It reports whether one
// was removed.
func (t *Trainer) RemoveAutoMon(id string) bool {
	for i, m := range t.AutoMons {
		if m.ID == id {
			t.AutoMons = append(t.AutoMons[:i], t.AutoMons[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (t *Trainer) Clone() *Trainer {
	c := *t
	c.Inventory = make(Inventory, len(t.Inventory))
	for k, v := range t.Inventory {
		c.Inventory[k] = v
	}
	c.AutoMons = make([]*AutoMon, len(t.AutoMons))
	for i, m := range t.AutoMons {
		c.AutoMons[i] = m.Clone()
	}
	c.Crops = append([]Crop(nil), t.Crops...)
	return &c
}

// Clone returns a deep copy.
func (m *AutoMon) Clone() *AutoMon {
	c := *m
	c.Abilities = append([]string(nil), m.Abilities...)
	return &c
}

func clamp100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
