// Calendar, weather and market drift.
package world

import (
	"github.com/talgya/automon-world/internal/entropy"
)

// DefaultTicksPerDay is the day length when none is configured.
const DefaultTicksPerDay = 24

// maxDrift is the largest per-tick price move in either direction.
const maxDrift = 3

// AdvanceCalendar moves the clock one tick. Every ticksPerDay ticks the day
// rolls over and the weather is redrawn. It reports whether a new day began.
func (s *GameState) AdvanceCalendar(rng *entropy.Source, ticksPerDay int) bool {
	if ticksPerDay <= 0 {
		ticksPerDay = DefaultTicksPerDay
	}
	s.Tick++
	s.TimeOfDay = TimeOfDayAt(s.Tick)
	if s.Tick%uint64(ticksPerDay) != 0 {
		return false
	}
	s.Day++
	if w, ok := entropy.Choice(rng, Weathers); ok {
		s.Weather = w
	}
	return true
}

// TimeOfDayAt returns the phase for a tick.
func TimeOfDayAt(tick uint64) string {
	return TimesOfDay[tick%uint64(len(TimesOfDay))]
}

// PriceBounds returns the inclusive band a drifting price stays within:
// floor(0.6*base) to floor(1.8*base).
func PriceBounds(base int) (lo, hi int) {
	return base * 3 / 5, base * 9 / 5
}

// DriftMarket moves every price by a random step in [-3, 3], clamped to its
// band, and records the direction. Items are visited in catalog order so the
// draws are reproducible for a seed.
func (s *GameState) DriftMarket(rng *entropy.Source, itemOrder []string) {
	for _, id := range itemOrder {
		e, ok := s.Market[id]
		if !ok {
			continue
		}
		lo, hi := PriceBounds(e.Base)
		old := e.Price
		e.Price = entropy.ClampInt(old+rng.Range(-maxDrift, maxDrift), lo, hi)
		switch {
		case e.Price > old:
			e.Trend = TrendUp
		case e.Price < old:
			e.Trend = TrendDown
		default:
			e.Trend = TrendSteady
		}
	}
}

// BuyPrice is what a trainer pays for one unit.
func (s *GameState) BuyPrice(item string) (int, bool) {
	e, ok := s.Market[item]
	if !ok {
		return 0, false
	}
	return e.Price, true
}

// SellPrice is what a trainer receives for one unit: 75% of market, at least 1.
func (s *GameState) SellPrice(item string) (int, bool) {
	e, ok := s.Market[item]
	if !ok {
		return 0, false
	}
	p := e.Price * 3 / 4
	if p < 1 {
		p = 1
	}
	return p, true
}
