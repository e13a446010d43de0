// World seeding and the resource abundance field.
// Abundance uses layered simplex noise over (location, time) so yields vary
// smoothly between places and over the days.
package world

import (
	"fmt"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
)

// GenConfig holds seeding parameters.
type GenConfig struct {
	Seed         int64 // 0 = random
	MaxEvents    int
	StarterLevel int
	StartGold    int
	Capacity     int
	StartElo     int
}

// DefaultGenConfig returns the standard starting conditions.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		MaxEvents:    DefaultMaxEvents,
		StarterLevel: 5,
		StartGold:    100,
		Capacity:     6,
		StartElo:     1000,
	}
}

// starterKit is every trainer's opening inventory.
var starterKit = map[string]int{
	"trail_ration": 2,
	"automon_chow": 2,
	"fishing_bait": 3,
	"basic_trap":   2,
	"seed_packet":  2,
}

// New seeds a fresh world: one trainer per roster entry at the starting town
// with their starter creature, a market at catalog prices, and a single
// initialization event.
func New(cat *catalog.Catalog, cfg GenConfig) *GameState {
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}
	def := DefaultGenConfig()
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.StarterLevel <= 0 {
		cfg.StarterLevel = def.StarterLevel
	}
	if cfg.StartGold <= 0 {
		cfg.StartGold = def.StartGold
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.StartElo <= 0 {
		cfg.StartElo = def.StartElo
	}

	s := &GameState{
		WorldID:   uuid.NewString(),
		Seed:      seed,
		Day:       1,
		Weather:   WeatherClear,
		TimeOfDay: TimeOfDayAt(0),
		Market:    make(map[string]*MarketEntry, len(cat.Items)),
		MaxEvents: cfg.MaxEvents,
	}

	for _, id := range cat.ItemIDs() {
		price := cat.Items[id].Price
		s.Market[id] = &MarketEntry{Price: price, Base: price, Trend: TrendSteady}
	}

	for _, r := range cat.Roster {
		t := &agents.Trainer{
			ID:             r.ID,
			Name:           r.Name,
			Health:         100,
			Energy:         100,
			Hunger:         80,
			Gold:           cfg.StartGold,
			LocationID:     catalog.StartLocation,
			Inventory:      agents.Inventory{},
			StableCapacity: cfg.Capacity,
			Elo:            cfg.StartElo,
		}
		for item, n := range starterKit {
			if _, ok := cat.Items[item]; ok {
				t.Inventory.Add(item, n)
			}
		}
		t.AutoMons = append(t.AutoMons, agents.NewAutoMon(cat, s.NewMonID(), r.Starter, cfg.StarterLevel))
		s.Trainers = append(s.Trainers, t)
	}

	s.RefreshLeaderboard()
	s.Log(CategorySystem, "", "world %s initialized with %d trainers (seed %d)", s.WorldID, len(s.Trainers), seed)
	return s
}

func monID(seq uint64) string {
	return fmt.Sprintf("mon-%d", seq)
}

// Abundance samples how plentiful gatherable resources are at a location.
type Abundance struct {
	noise opensimplex.Noise
}

// NewAbundance builds the field for a world seed.
func NewAbundance(seed int64) *Abundance {
	return &Abundance{noise: opensimplex.NewNormalized(seed)}
}

// At returns abundance in [0, 1] for the location index at a tick. The field
// drifts slowly over time and is independent per location.
func (a *Abundance) At(locationIndex int, tick uint64) float64 {
	x := float64(locationIndex) * 3.7
	y := float64(tick) / 48.0
	return entropy.Clamp(octaveNoise(a.noise, x, y, 3, 1.0, 0.5), 0, 1)
}

// Yield scales a base quantity by abundance: 1 at the scarcest, up to
// base+1 at the richest.
func (a *Abundance) Yield(locationIndex int, tick uint64, base int) int {
	if base < 1 {
		base = 1
	}
	n := 1 + int(a.At(locationIndex, tick)*float64(base)+0.5)
	if n > base+1 {
		n = base + 1
	}
	return n
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
