// Package world holds the single mutable simulation root: the calendar, the
// trainers, the market, the bounded event log and the derived leaderboard.
package world

import (
	"sort"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/catalog"
)

// Weather states.
const (
	WeatherClear  = "clear"
	WeatherCloudy = "cloudy"
	WeatherRain   = "rain"
	WeatherStorm  = "storm"
	WeatherFog    = "fog"
)

// Weathers is the set a new day's weather is drawn from.
var Weathers = []string{WeatherClear, WeatherCloudy, WeatherRain, WeatherStorm, WeatherFog}

// TimesOfDay cycles with tick mod 5.
var TimesOfDay = []string{"dawn", "morning", "afternoon", "evening", "night"}

// Market trends.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendSteady = "steady"
)

// MarketEntry is the current price of one item.
type MarketEntry struct {
	Price int    `json:"price"`
	Base  int    `json:"base"`
	Trend string `json:"trend"`
}

// LeaderboardEntry is one ranked trainer.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	TrainerID string `json:"trainer_id"`
	Name      string `json:"name"`
	Elo       int    `json:"elo"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
}

// GameState is the whole world. Only the engine mutates it, and only inside
// a tick.
type GameState struct {
	WorldID   string `json:"world_id"`
	Seed      int64  `json:"seed"`
	Tick      uint64 `json:"tick"`
	Day       int    `json:"day"`
	Weather   string `json:"weather"`
	TimeOfDay string `json:"time_of_day"`

	Trainers    []*agents.Trainer       `json:"trainers"`
	Market      map[string]*MarketEntry `json:"market"`
	Events      []Event                 `json:"events"`
	Leaderboard []LeaderboardEntry      `json:"leaderboard"`

	MaxEvents    int    `json:"max_events"`
	NextMonSeq   uint64 `json:"next_mon_seq"`
	NextEventSeq uint64 `json:"next_event_seq"`
}

// Snapshot is the read-only view pushed to observers after every tick.
type Snapshot struct {
	State   *GameState       `json:"state"`
	Catalog *catalog.Catalog `json:"catalog,omitempty"`
	Running bool             `json:"running"`
	Speed   int              `json:"speed"`
}

// Trainer returns the trainer with the given id, or nil.
func (s *GameState) Trainer(id string) *agents.Trainer {
	for _, t := range s.Trainers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TrainersAt returns trainers at a location, in list order.
func (s *GameState) TrainersAt(locationID string) []*agents.Trainer {
	var out []*agents.Trainer
	for _, t := range s.Trainers {
		if t.LocationID == locationID {
			out = append(out, t)
		}
	}
	return out
}

// NewMonID allocates a creature id unique within the world.
func (s *GameState) NewMonID() string {
	s.NextMonSeq++
	return monID(s.NextMonSeq)
}

// RefreshLeaderboard ranks trainers by Elo, highest first. Equal ratings keep
// list order.
func (s *GameState) RefreshLeaderboard() {
	ranked := make([]*agents.Trainer, len(s.Trainers))
	copy(ranked, s.Trainers)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Elo > ranked[j].Elo })

	s.Leaderboard = s.Leaderboard[:0]
	for i, t := range ranked {
		s.Leaderboard = append(s.Leaderboard, LeaderboardEntry{
			Rank:      i + 1,
			TrainerID: t.ID,
			Name:      t.Name,
			Elo:       t.Elo,
			Wins:      t.Wins,
			Losses:    t.Losses,
		})
	}
}

// Clone returns a deep copy. Ticks mutate a clone and swap it in on success.
func (s *GameState) Clone() *GameState {
	c := *s
	c.Trainers = make([]*agents.Trainer, len(s.Trainers))
	for i, t := range s.Trainers {
		c.Trainers[i] = t.Clone()
	}
	c.Market = make(map[string]*MarketEntry, len(s.Market))
	for id, e := range s.Market {
		cp := *e
		c.Market[id] = &cp
	}
	c.Events = append([]Event(nil), s.Events...)
	c.Leaderboard = append([]LeaderboardEntry(nil), s.Leaderboard...)
	return &c
}
