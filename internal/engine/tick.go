package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/world"
)

// Busy-window completion bonuses.
const (
	sleepHealthBonus = 15
	sleepEnergy      = 100
)

// tickRun carries per-tick scratch state through the phases.
type tickRun struct {
	st     *world.GameState
	fought map[string]bool
}

// runTick mutates st through every phase of one tick, in order. Pending
// system messages are logged but stay queued until the tick commits.
func (s *Simulation) runTick(ctx context.Context, st *world.GameState) {
	for _, msg := range s.pending {
		st.Log(world.CategorySystem, "", "%s", msg)
	}

	s.advanceCalendar(st)
	s.decayNeeds(st)
	s.completeBusy(st)

	run := &tickRun{st: st, fought: make(map[string]bool)}
	for _, t := range st.Trainers {
		if t.IsBusy(st.Tick) {
			continue
		}
		s.decide(ctx, run, t)
	}

	st.RefreshLeaderboard()
}

func (s *Simulation) advanceCalendar(st *world.GameState) {
	if st.AdvanceCalendar(s.rng, s.opts.TicksPerDay) {
		st.Log(world.CategoryWorld, "", "day %d begins; the weather is %s", st.Day, st.Weather)
		slog.Info("new day", "day", st.Day, "tick", st.Tick, "weather", st.Weather, "trainers", len(st.Trainers))
	}
	st.DriftMarket(s.rng, s.cat.ItemIDs())
}

func (s *Simulation) decayNeeds(st *world.GameState) {
	for _, t := range st.Trainers {
		wasStarving, wasExhausted := t.Hunger == 0, t.Energy == 0
		r := agents.DecayNeeds(t)
		if r.Starving && !wasStarving {
			st.Log(world.CategoryNeeds, t.ID, "%s is starving", t.Name)
		}
		if r.Exhausted && !wasExhausted {
			st.Log(world.CategoryNeeds, t.ID, "%s is exhausted", t.Name)
		}
		for _, nick := range r.Fainted {
			st.Log(world.CategoryNeeds, t.ID, "%s's %s fainted from hunger", t.Name, nick)
		}
		for _, nick := range r.Deserted {
			st.Log(world.CategoryNeeds, t.ID, "%s's %s lost all loyalty and left", t.Name, nick)
		}
		if r.Rescued {
			st.Log(world.CategoryNeeds, t.ID, "%s collapsed and was carried back to town", t.Name)
		}
	}
}

// completeBusy finishes timed actions whose window has closed.
func (s *Simulation) completeBusy(st *world.GameState) {
	for _, t := range st.Trainers {
		if t.BusyAction == "" || t.IsBusy(st.Tick) {
			continue
		}
		switch t.BusyAction {
		case agents.BusySleep:
			t.Energy = sleepEnergy
			agents.AdjustGauges(t, sleepHealthBonus, 0, 0)
			st.Log(world.CategoryAction, t.ID, "%s woke up rested", t.Name)
		case agents.BusyTravel:
			if dest := t.PendingTravelTo; dest != "" {
				t.LocationID = dest
				st.Log(world.CategoryTravel, t.ID, "%s arrived at %s", t.Name, s.locationName(dest))
			}
		}
		t.ClearBusy()
	}
}

// decide asks the policy for one trainer's action and dispatches it.
func (s *Simulation) decide(ctx context.Context, run *tickRun, t *agents.Trainer) {
	c := s.buildContext(run.st, t)
	d := s.decider.Decide(ctx, c, s.rng)

	kind, ok := agents.ParseAction(d.Action)
	switch {
	case !ok:
		run.st.Log(world.CategoryNoop, t.ID, "%s tried unknown action %q", t.Name, d.Action)
		kind = agents.ActionIdle
	case kind != agents.ActionIdle && !c.Legal(kind):
		run.st.Log(world.CategoryNoop, t.ID, "%s cannot %s at %s", t.Name, kind, c.Location.Name)
		kind = agents.ActionIdle
	}

	slog.Debug("decision", "tick", run.st.Tick, "trainer", t.ID, "action", kind.String(), "target", d.Target, "reasoning", d.Reasoning)
	handlers[kind](s, run, t, d.Target)
}

func (s *Simulation) locationName(id string) string {
	if l, ok := s.cat.Locations[id]; ok {
		return l.Name
	}
	return id
}
