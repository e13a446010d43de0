package engine

import (
	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/world"
)

// recentEventCount is how many log lines a trainer sees when deciding.
const recentEventCount = 8

// buildContext assembles everything the policy may look at for t. The
// trainer is a copy so a policy cannot mutate the world.
func (s *Simulation) buildContext(st *world.GameState, t *agents.Trainer) *agents.Context {
	c := &agents.Context{
		Trainer:      t.Clone(),
		Market:       make(map[string]agents.Quote, len(st.Market)),
		RecentEvents: st.RecentEvents(t.ID, recentEventCount),
		Clock: agents.Clock{
			Tick:      st.Tick,
			Day:       st.Day,
			TimeOfDay: st.TimeOfDay,
			Weather:   st.Weather,
		},
	}
	if loc, ok := s.cat.Locations[t.LocationID]; ok {
		c.Location = agents.LocationView{ID: loc.ID, Name: loc.Name, Biome: loc.Biome, Danger: loc.Danger}
		c.LegalActions = append([]string(nil), loc.Actions...)
		c.Connections = append(c.Connections, loc.Connections...)
	} else {
		c.Location = agents.LocationView{ID: t.LocationID, Name: t.LocationID}
	}

	for _, other := range st.TrainersAt(t.LocationID) {
		if other.ID == t.ID {
			continue
		}
		n := agents.NearbyTrainer{ID: other.ID, Name: other.Name, Elo: other.Elo, Busy: other.IsBusy(st.Tick)}
		if lead := other.Lead(); lead != nil {
			n.LeadLevel = lead.Level
		}
		c.Nearby = append(c.Nearby, n)
	}

	for id, e := range st.Market {
		c.Market[id] = agents.Quote{Price: e.Price, Trend: e.Trend}
	}
	return c
}
