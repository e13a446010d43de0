package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
)

var cat = catalog.Default()

func newTrainer() *Trainer {
	return &Trainer{
		ID:             "t1",
		Name:           "Tess",
		Health:         100,
		Energy:         80,
		Hunger:         80,
		Gold:           50,
		LocationID:     catalog.StartLocation,
		Inventory:      Inventory{},
		StableCapacity: 6,
		AutoMons:       []*AutoMon{NewAutoMon(cat, "m1", "emberkit", 5)},
		Elo:            1000,
	}
}

func contextAt(t *Trainer, location string) *Context {
	loc := cat.Locations[location]
	return &Context{
		Trainer:      t,
		Location:     LocationView{ID: loc.ID, Name: loc.Name, Biome: loc.Biome},
		LegalActions: loc.Actions,
		Connections:  loc.Connections,
		Market:       map[string]Quote{},
	}
}

func TestInventoryPrunesZero(t *testing.T) {
	inv := Inventory{}
	inv.Add("herb", 2)
	require.True(t, inv.Remove("herb", 2))
	_, present := inv["herb"]
	assert.False(t, present)
	assert.False(t, inv.Remove("herb", 1))
	inv.Add("herb", 0)
	assert.Empty(t, inv)
}

func TestParseAction(t *testing.T) {
	k, ok := ParseAction(" Battle_PvE ")
	require.True(t, ok)
	assert.Equal(t, ActionBattlePvE, k)

	k, ok = ParseAction("dance")
	assert.False(t, ok)
	assert.Equal(t, ActionIdle, k)

	for _, name := range catalog.KnownActions {
		_, ok := ParseAction(name)
		assert.True(t, ok, name)
	}
}

func TestNewAutoMonScalesWithLevel(t *testing.T) {
	m := NewAutoMon(cat, "m", "emberkit", 5)
	sp := cat.Species["emberkit"]
	assert.Equal(t, sp.Base.Health+16, m.MaxHealth)
	assert.Equal(t, m.MaxHealth, m.Health)
	assert.Equal(t, sp.Base.Attack+8, m.Stats.Attack)
	assert.Equal(t, MaxStamina(m), m.StaminaCurrent)
	assert.Equal(t, StatusHealthy, m.Status)
	assert.Equal(t, []string{"ember", "tackle"}, m.Abilities)
}

func TestGainXPUnlocksAbilities(t *testing.T) {
	m := NewAutoMon(cat, "m", "emberkit", 9)
	r := GainXP(cat, m, XPToNext(9))
	assert.Equal(t, 1, r.LevelsGained)
	assert.Equal(t, 10, m.Level)
	assert.Contains(t, m.Abilities, "flame_burst")
	assert.Equal(t, []string{"flame_burst"}, r.Unlocked)
}

func TestEvolutionIsIdempotent(t *testing.T) {
	m := NewAutoMon(cat, "m", "emberkit", 15)
	before := *m
	beforeAbilities := append([]string(nil), m.Abilities...)

	r := GainXP(cat, m, XPToNext(15))
	require.True(t, r.Evolved)
	assert.Equal(t, "blazefang", m.SpeciesID)
	assert.Equal(t, "Blazefang", m.Nickname)
	assert.Equal(t, catalog.ElementFire, m.Element)
	assert.Equal(t, before.MaxHealth+healthPerLevel+18, m.MaxHealth)
	assert.Equal(t, before.Stats.Attack+attackPerLevel+5, m.Stats.Attack)
	assert.Equal(t, before.Stats.Defense+defensePerLevel+4, m.Stats.Defense)
	assert.Equal(t, before.Stats.Speed+speedPerLevel+4, m.Stats.Speed)
	assert.Equal(t, before.Stats.Stamina+staminaPerLevel+4, m.Stats.Stamina)

	seen := map[string]int{}
	for _, a := range m.Abilities {
		seen[a]++
	}
	for a, n := range seen {
		assert.Equal(t, 1, n, "ability %s duplicated", a)
	}
	for _, a := range beforeAbilities {
		assert.Contains(t, m.Abilities, a)
	}

	// More XP past the threshold never evolves again.
	maxAfter := m.MaxHealth
	for i := 0; i < 5; i++ {
		r := GainXP(cat, m, 10)
		assert.False(t, r.Evolved)
	}
	_, _, ok := Evolve(cat, m)
	assert.False(t, ok)
	assert.Equal(t, "blazefang", m.SpeciesID)
	assert.GreaterOrEqual(t, m.MaxHealth, maxAfter)
}

func TestRefreshStatus(t *testing.T) {
	m := NewAutoMon(cat, "m", "pebblit", 5)
	m.Health = 0
	RefreshStatus(m)
	assert.Equal(t, StatusFainted, m.Status)

	m.Health = m.MaxHealth / 5
	RefreshStatus(m)
	assert.Equal(t, StatusInjured, m.Status)

	m.Health = m.MaxHealth
	m.StaminaCurrent = 0
	RefreshStatus(m)
	assert.Equal(t, StatusExhausted, m.Status)
}

func TestDecayNeeds(t *testing.T) {
	tr := newTrainer()
	tr.Hunger, tr.Energy = 1, 1
	r := DecayNeeds(tr)
	assert.Equal(t, 0, tr.Hunger)
	assert.Equal(t, 0, tr.Energy)
	assert.Equal(t, 100-4-2, tr.Health)
	assert.True(t, r.Starving)
	assert.True(t, r.Exhausted)
	assert.Equal(t, 79, tr.AutoMons[0].Hunger)
}

func TestDecayStarvingMonDesertsAtZeroLoyalty(t *testing.T) {
	tr := newTrainer()
	m := tr.AutoMons[0]
	m.Hunger, m.Loyalty, m.Health = 0, 3, 2

	r := DecayNeeds(tr)
	assert.Equal(t, []string{m.Nickname}, r.Fainted)
	assert.Equal(t, []string{m.Nickname}, r.Deserted)
	assert.Empty(t, tr.AutoMons)
}

func TestDecayRescuesCollapsedTrainer(t *testing.T) {
	tr := newTrainer()
	tr.Health, tr.Hunger, tr.Energy = 3, 0, 0
	tr.LocationID = "ember_crater"
	tr.BusyAction, tr.BusyUntilTick, tr.PendingTravelTo = BusyTravel, 9, "crystal_caves"

	r := DecayNeeds(tr)
	require.True(t, r.Rescued)
	assert.Equal(t, 25, tr.Health)
	assert.Equal(t, 25, tr.Hunger)
	assert.Equal(t, 30, tr.Energy)
	assert.Equal(t, catalog.StartLocation, tr.LocationID)
	assert.Empty(t, tr.BusyAction)
}

func TestFallbackEatsWhenHungry(t *testing.T) {
	tr := newTrainer()
	tr.Hunger = 10
	tr.Inventory.Add("trail_ration", 1)

	d := Fallback(cat, contextAt(tr, catalog.StartLocation), entropy.New(1))
	assert.Equal(t, "eat", d.Action)
	assert.Equal(t, "trail_ration", d.Target)
}

func TestFallbackBuysFoodWhenNoneHeld(t *testing.T) {
	tr := newTrainer()
	tr.Hunger = 10
	d := Fallback(cat, contextAt(tr, catalog.StartLocation), entropy.New(1))
	assert.Equal(t, "buy", d.Action)
	assert.Equal(t, "berry_bundle", d.Target)
}

func TestFallbackLadderOrder(t *testing.T) {
	tests := []struct {
		name     string
		location string
		setup    func(*Trainer)
		want     string
	}{
		{
			name:     "heal beats hunger",
			location: catalog.StartLocation,
			setup: func(tr *Trainer) {
				tr.Health, tr.Hunger = 20, 5
				tr.AutoMons[0].Health = 1
				tr.Inventory.Add("trail_ration", 1)
			},
			want: "heal_automon",
		},
		{
			name:     "rest when exhausted",
			location: catalog.StartLocation,
			setup:    func(tr *Trainer) { tr.Energy = 10 },
			want:     "rest",
		},
		{
			name:     "feed hungry creature",
			location: "whisper_forest",
			setup: func(tr *Trainer) {
				tr.AutoMons[0].Hunger = 10
				tr.Inventory.Add("automon_chow", 1)
			},
			want: "feed_automon",
		},
		{
			name:     "pve when fit",
			location: "whisper_forest",
			setup:    func(*Trainer) {},
			want:     "battle_pve",
		},
		{
			name:     "fish when lead is hurt and bait held",
			location: "river_delta",
			setup: func(tr *Trainer) {
				tr.AutoMons[0].Health = 5
				tr.Inventory.Add("fishing_bait", 2)
			},
			want: "fish",
		},
		{
			name:     "explore without bait",
			location: "river_delta",
			setup:    func(tr *Trainer) { tr.AutoMons[0].Health = 5 },
			want:     "explore",
		},
		{
			name:     "travel from town with nothing else to do",
			location: catalog.StartLocation,
			setup:    func(*Trainer) {},
			want:     "travel",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTrainer()
			tt.setup(tr)
			d := Fallback(cat, contextAt(tr, tt.location), entropy.New(5))
			assert.Equal(t, tt.want, d.Action, d.Reasoning)
		})
	}
}

func TestFallbackIsDeterministicForSameSeed(t *testing.T) {
	tr := newTrainer()
	c := contextAt(tr, catalog.StartLocation)

	a := Fallback(cat, c, entropy.New(42))
	b := Fallback(cat, c, entropy.New(42))
	assert.Equal(t, a, b)
	require.Equal(t, "travel", a.Action)

	_, ok := cat.Locations[catalog.StartLocation].Edge(a.Target)
	assert.True(t, ok)
}

func TestFallbackWithNoLegalActionsIdles(t *testing.T) {
	tr := newTrainer()
	c := &Context{Trainer: tr}
	d := Fallback(cat, c, entropy.New(1))
	assert.Equal(t, "idle", d.Action)
}
