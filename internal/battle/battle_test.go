package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Species: map[string]*catalog.SpeciesDef{},
		Abilities: map[string]*catalog.AbilityDef{
			"fire_hit":  {ID: "fire_hit", Name: "Fire Hit", Element: catalog.ElementFire, Power: 20, StaminaCost: 5, UnlockLevel: 1},
			"earth_hit": {ID: "earth_hit", Name: "Earth Hit", Element: catalog.ElementEarth, Power: 20, StaminaCost: 5, UnlockLevel: 1},
			"big_hit":   {ID: "big_hit", Name: "Big Hit", Element: catalog.ElementNeutral, Power: 40, StaminaCost: 15, UnlockLevel: 1},
			"locked":    {ID: "locked", Name: "Locked", Element: catalog.ElementNeutral, Power: 90, StaminaCost: 1, UnlockLevel: 50},
		},
	}
}

func mon(id string, el catalog.Element, hp int, st agents.Stats, abilities ...string) *agents.AutoMon {
	m := &agents.AutoMon{
		ID:        id,
		Nickname:  id,
		Element:   el,
		Level:     5,
		Health:    hp,
		MaxHealth: hp,
		Hunger:    80,
		Loyalty:   50,
		Stats:     st,
		Abilities: abilities,
	}
	m.StaminaCurrent = agents.MaxStamina(m)
	return m
}

func trainer(id string, gold, elo int, mons ...*agents.AutoMon) *agents.Trainer {
	return &agents.Trainer{
		ID: id, Name: id, Health: 100, Energy: 100, Hunger: 100,
		Gold: gold, Elo: elo, StableCapacity: 6,
		Inventory: agents.Inventory{}, AutoMons: mons,
	}
}

func TestDamage(t *testing.T) {
	tests := []struct {
		name                   string
		power, attack, defense int
		mult                   float64
		want                   int
	}{
		{name: "neutral", power: 20, attack: 15, defense: 10, mult: 1, want: 29},
		{name: "advantage", power: 20, attack: 20, defense: 10, mult: 1.5, want: 51},
		{name: "defense floored", power: 10, attack: 10, defense: 9, mult: 1, want: 15},
		{name: "minimum", power: 1, attack: 1, defense: 100, mult: 1, want: 4},
		{name: "fraction floored", power: 11, attack: 0, defense: 0, mult: 1.5, want: 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Damage(tt.power, tt.attack, tt.defense, tt.mult))
		})
	}
}

func TestFireBeatsEarth(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	fire := mon("fire", catalog.ElementFire, 100, agents.Stats{Attack: 20, Defense: 10, Speed: 15, Stamina: 20}, "fire_hit")
	earth := mon("earth", catalog.ElementEarth, 100, agents.Stats{Attack: 15, Defense: 10, Speed: 10, Stamina: 20}, "earth_hit")
	a := trainer("a", 50, 1000, fire)
	b := trainer("b", 50, 1000, earth)

	res := r.Resolve(TrainerSide(a), TrainerSide(b))
	require.NotNil(t, res)
	assert.Equal(t, "a", res.WinnerID)
	assert.Equal(t, "b", res.LoserID)
	assert.LessOrEqual(t, res.Turns, MaxTurns)
	assert.Equal(t, 2, res.Turns)
	assert.False(t, res.Stalemate)
	assert.Contains(t, res.Log[1], "for 51")
	assert.Contains(t, res.Log[2], "for 29")

	// Loser forced to 20% and injured; both regenerated.
	assert.Equal(t, 20, earth.Health)
	assert.Equal(t, agents.StatusInjured, earth.Status)
	assert.Equal(t, agents.MaxStamina(fire), fire.StaminaCurrent)
	assert.Equal(t, agents.MaxStamina(earth), earth.StaminaCurrent)

	// Settlement.
	assert.Equal(t, 30, res.XPGained)
	assert.Equal(t, 54, fire.Loyalty)
	assert.Equal(t, 40, res.WinnerGold)
	assert.Equal(t, 90, a.Gold)
	assert.Equal(t, 10, b.Gold)
	assert.Equal(t, 14, res.EloDelta)
	assert.Equal(t, 1014, a.Elo)
	assert.Equal(t, 986, b.Elo)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, b.Losses)
}

func TestSpeedTieFavoursFirstSide(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	st := agents.Stats{Attack: 50, Defense: 0, Speed: 10, Stamina: 20}
	x := mon("x", catalog.ElementNeutral, 30, st, "big_hit")
	y := mon("y", catalog.ElementNeutral, 30, st, "big_hit")

	res := r.Resolve(TrainerSide(trainer("a", 0, 1000, x)), TrainerSide(trainer("b", 0, 1000, y)))
	require.NotNil(t, res)
	assert.Equal(t, "a", res.WinnerID)
	assert.Equal(t, 1, res.Turns)
}

func TestTurnCapStalemate(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	st := agents.Stats{Attack: 0, Defense: 100, Speed: 5, Stamina: 0}

	t.Run("equal fractions go to first side", func(t *testing.T) {
		x := mon("x", catalog.ElementNeutral, 5000, st)
		y := mon("y", catalog.ElementNeutral, 5000, st)
		res := r.Resolve(TrainerSide(trainer("a", 0, 1000, x)), TrainerSide(trainer("b", 0, 1000, y)))
		require.NotNil(t, res)
		assert.Equal(t, MaxTurns, res.Turns)
		assert.True(t, res.Stalemate)
		assert.Equal(t, "a", res.WinnerID)
	})

	t.Run("higher health fraction wins", func(t *testing.T) {
		x := mon("x", catalog.ElementNeutral, 500, st)
		y := mon("y", catalog.ElementNeutral, 5000, st)
		res := r.Resolve(TrainerSide(trainer("a", 0, 1000, x)), TrainerSide(trainer("b", 0, 1000, y)))
		require.NotNil(t, res)
		assert.Equal(t, MaxTurns, res.Turns)
		assert.Equal(t, "b", res.WinnerID)
	})
}

func TestStruggleWhenOutOfStamina(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	m := mon("m", catalog.ElementNeutral, 50, agents.Stats{Attack: 10}, "big_hit", "locked")
	m.StaminaCurrent = 3

	mv := r.chooseMove(m)
	assert.Equal(t, "Struggle", mv.name)
	assert.Equal(t, strugglePower, mv.power)

	m.StaminaCurrent = 20
	assert.Equal(t, "Big Hit", r.chooseMove(m).name)
}

func TestResolveReturnsNilWithoutCombatant(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	down := mon("down", catalog.ElementFire, 10, agents.Stats{}, "fire_hit")
	down.Health = 0
	up := mon("up", catalog.ElementFire, 10, agents.Stats{}, "fire_hit")

	assert.Nil(t, r.Resolve(TrainerSide(trainer("a", 0, 1000, down)), TrainerSide(trainer("b", 0, 1000, up))))
	assert.Nil(t, r.Resolve(TrainerSide(trainer("a", 0, 1000, up)), TrainerSide(trainer("b", 0, 1000))))
}

func TestGoldNeverExceedsLoserGold(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	for _, gold := range []int{0, 3, 39, 40, 500} {
		strong := mon("s", catalog.ElementNeutral, 100, agents.Stats{Attack: 60, Speed: 20}, "big_hit")
		weak := mon("w", catalog.ElementNeutral, 20, agents.Stats{Speed: 1})
		a := trainer("a", 0, 1200, strong)
		b := trainer("b", gold, 900, weak)

		res := r.Resolve(TrainerSide(a), TrainerSide(b))
		require.NotNil(t, res)
		assert.LessOrEqual(t, res.LoserGoldLoss, gold)
		assert.GreaterOrEqual(t, b.Gold, 0)
		assert.Equal(t, min(gold, 40), a.Gold)
	}
}

func TestEloIsZeroSum(t *testing.T) {
	for _, pair := range [][2]int{{1000, 1000}, {1400, 1000}, {1000, 1400}, {800, 2200}} {
		d := EloDelta(pair[0], pair[1])
		assert.GreaterOrEqual(t, d, 0)
		assert.LessOrEqual(t, d, EloK)
		assert.InDelta(t, 1.0, ExpectedScore(pair[0], pair[1])+ExpectedScore(pair[1], pair[0]), 1e-9)
	}
	assert.Less(t, EloDelta(1400, 1000), EloDelta(1000, 1400))
}

func TestWildBattleLeavesEloAlone(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}
	own := mon("own", catalog.ElementFire, 100, agents.Stats{Attack: 30, Speed: 20}, "fire_hit")
	wild := mon("wild", catalog.ElementEarth, 20, agents.Stats{Speed: 1})
	tr := trainer("a", 10, 1000, own)
	side := WildSide(wild)
	require.Equal(t, 20, side.Purse)

	res := r.Resolve(TrainerSide(tr), side)
	require.NotNil(t, res)
	assert.Equal(t, "a", res.WinnerID)
	assert.Zero(t, res.EloDelta)
	assert.Equal(t, 1000, tr.Elo)
	assert.Equal(t, 30, tr.Gold)
	assert.Zero(t, side.Purse)
	assert.True(t, side.IsWild())
}
