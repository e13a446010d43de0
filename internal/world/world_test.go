package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
)

var cat = catalog.Default()

func seeded(t *testing.T) *GameState {
	t.Helper()
	cfg := DefaultGenConfig()
	cfg.Seed = 7
	return New(cat, cfg)
}

func TestNewSeedsFreshWorld(t *testing.T) {
	s := seeded(t)

	assert.NotEmpty(t, s.WorldID)
	assert.Equal(t, int64(7), s.Seed)
	assert.Zero(t, s.Tick)
	assert.Equal(t, 1, s.Day)
	assert.Equal(t, WeatherClear, s.Weather)
	assert.Equal(t, "dawn", s.TimeOfDay)
	require.Len(t, s.Events, 1)
	assert.Equal(t, CategorySystem, s.Events[0].Category)

	require.Len(t, s.Trainers, len(cat.Roster))
	for i, tr := range s.Trainers {
		assert.Equal(t, cat.Roster[i].ID, tr.ID)
		assert.Equal(t, catalog.StartLocation, tr.LocationID)
		assert.Equal(t, 1000, tr.Elo)
		require.Len(t, tr.AutoMons, 1)
		assert.Equal(t, cat.Roster[i].Starter, tr.AutoMons[0].SpeciesID)
		assert.Equal(t, 5, tr.AutoMons[0].Level)
		for id, n := range tr.Inventory {
			assert.Positive(t, n, id)
		}
	}

	for _, id := range cat.ItemIDs() {
		e := s.Market[id]
		require.NotNil(t, e, id)
		assert.Equal(t, cat.Items[id].Price, e.Price)
		assert.Equal(t, TrendSteady, e.Trend)
	}
	assert.Len(t, s.Leaderboard, len(s.Trainers))
}

func TestNewWithSameSeedKeepsSeed(t *testing.T) {
	a, b := seeded(t), seeded(t)
	assert.Equal(t, a.Seed, b.Seed)
	assert.NotEqual(t, a.WorldID, b.WorldID)
	assert.Equal(t, len(a.Trainers), len(b.Trainers))
}

func TestAdvanceCalendar(t *testing.T) {
	s := seeded(t)
	rng := entropy.New(3)

	for i := 1; i < 4; i++ {
		assert.False(t, s.AdvanceCalendar(rng, 4))
		assert.Equal(t, TimesOfDay[i%5], s.TimeOfDay)
	}
	assert.True(t, s.AdvanceCalendar(rng, 4))
	assert.Equal(t, uint64(4), s.Tick)
	assert.Equal(t, 2, s.Day)
	assert.Contains(t, Weathers, s.Weather)
	assert.Equal(t, "night", s.TimeOfDay)

	s.AdvanceCalendar(rng, 4)
	assert.Equal(t, "dawn", s.TimeOfDay)
}

func TestDriftMarketStaysInBand(t *testing.T) {
	s := seeded(t)
	rng := entropy.New(11)

	for i := 0; i < 2000; i++ {
		s.DriftMarket(rng, cat.ItemIDs())
		for id, e := range s.Market {
			lo, hi := PriceBounds(e.Base)
			require.GreaterOrEqual(t, e.Price, lo, id)
			require.LessOrEqual(t, e.Price, hi, id)
			require.Contains(t, []string{TrendUp, TrendDown, TrendSteady}, e.Trend)
		}
	}
}

func TestPriceBounds(t *testing.T) {
	tests := []struct {
		base, lo, hi int
	}{
		{base: 5, lo: 3, hi: 9},
		{base: 8, lo: 4, hi: 14},
		{base: 35, lo: 21, hi: 63},
		{base: 1, lo: 0, hi: 1},
	}
	for _, tt := range tests {
		lo, hi := PriceBounds(tt.base)
		assert.Equal(t, tt.lo, lo, "base %d", tt.base)
		assert.Equal(t, tt.hi, hi, "base %d", tt.base)
	}
}

func TestSellPrice(t *testing.T) {
	s := seeded(t)
	p, ok := s.SellPrice("ore")
	require.True(t, ok)
	assert.Equal(t, 7, p)

	_, ok = s.SellPrice("unobtainium")
	assert.False(t, ok)
}

func TestEventLogIsBounded(t *testing.T) {
	s := seeded(t)
	s.MaxEvents = 5
	for i := 0; i < 12; i++ {
		s.Log(CategoryAction, "trainer-ash", "event %d", i)
	}
	require.Len(t, s.Events, 5)
	assert.Equal(t, "event 7", s.Events[0].Message)
	assert.Equal(t, "event 11", s.Events[4].Message)
	assert.Equal(t, uint64(13), s.Events[4].Seq)

	ids := map[string]bool{}
	for _, e := range s.Events {
		assert.False(t, ids[e.ID])
		ids[e.ID] = true
	}
}

func TestRecentEventsFiltersByTrainer(t *testing.T) {
	s := seeded(t)
	s.Log(CategoryAction, "a", "a1")
	s.Log(CategoryAction, "b", "b1")
	s.Log(CategoryWorld, "", "global")
	s.Log(CategoryAction, "a", "a2")

	got := s.RecentEvents("a", 3)
	assert.Equal(t, []string{"a1", "global", "a2"}, got)
}

func TestEventsSince(t *testing.T) {
	s := seeded(t)
	s.Log(CategoryAction, "", "one")
	s.Log(CategoryAction, "", "two")
	got := s.EventsSince(2)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Message)
	assert.Nil(t, s.EventsSince(99))
}

func TestRefreshLeaderboardIsStable(t *testing.T) {
	s := seeded(t)
	s.Trainers[2].Elo = 1100
	s.Trainers[4].Elo = 900
	s.RefreshLeaderboard()

	require.Len(t, s.Leaderboard, len(s.Trainers))
	assert.Equal(t, s.Trainers[2].ID, s.Leaderboard[0].TrainerID)
	assert.Equal(t, 1, s.Leaderboard[0].Rank)
	assert.Equal(t, s.Trainers[0].ID, s.Leaderboard[1].TrainerID)
	assert.Equal(t, s.Trainers[1].ID, s.Leaderboard[2].TrainerID)
	assert.Equal(t, s.Trainers[4].ID, s.Leaderboard[len(s.Leaderboard)-1].TrainerID)
}

func TestCloneIsDeep(t *testing.T) {
	s := seeded(t)
	c := s.Clone()

	c.Trainers[0].Gold = 1
	c.Trainers[0].Inventory.Add("ore", 3)
	c.Trainers[0].AutoMons[0].Health = 1
	c.Trainers[0].AutoMons[0].Abilities[0] = "changed"
	c.Market["ore"].Price = 1
	c.Log(CategoryWorld, "", "clone only")

	assert.Equal(t, 100, s.Trainers[0].Gold)
	assert.Zero(t, s.Trainers[0].Inventory.Count("ore"))
	assert.Equal(t, s.Trainers[0].AutoMons[0].MaxHealth, s.Trainers[0].AutoMons[0].Health)
	assert.NotEqual(t, "changed", s.Trainers[0].AutoMons[0].Abilities[0])
	assert.Equal(t, 10, s.Market["ore"].Price)
	assert.Len(t, s.Events, 1)
}

func TestAbundance(t *testing.T) {
	a := NewAbundance(42)
	b := NewAbundance(42)
	for loc := 0; loc < 6; loc++ {
		for tick := uint64(0); tick < 200; tick += 7 {
			v := a.At(loc, tick)
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
			assert.Equal(t, v, b.At(loc, tick))

			y := a.Yield(loc, tick, 2)
			assert.GreaterOrEqual(t, y, 1)
			assert.LessOrEqual(t, y, 3)
		}
	}
}
