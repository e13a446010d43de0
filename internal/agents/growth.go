// Creature creation, experience, level-ups and evolution.
package agents

import (
	"github.com/talgya/automon-world/internal/catalog"
)

// Per-level stat growth.
const (
	healthPerLevel  = 4
	attackPerLevel  = 2
	defensePerLevel = 1
	speedPerLevel   = 1
	staminaPerLevel = 1
)

// Evolution bonuses.
const (
	evolveHealth  = 18
	evolveAttack  = 5
	evolveDefense = 4
	evolveSpeed   = 4
	evolveStamina = 4
)

// injuredFraction is the health fraction below which a creature is injured.
const injuredFraction = 0.4

// XPToNext returns the experience needed to advance from level.
func XPToNext(level int) int {
	return 20 + 10*level
}

// MaxStamina is the stamina a creature regenerates to after a battle.
func MaxStamina(m *AutoMon) int {
	return 20 + m.Stats.Stamina
}

// NewAutoMon builds a creature of the given species at level with full
// health and stamina.
func NewAutoMon(cat *catalog.Catalog, id, speciesID string, level int) *AutoMon {
	sp := cat.Species[speciesID]
	if level < 1 {
		level = 1
	}
	grow := level - 1
	m := &AutoMon{
		ID:        id,
		SpeciesID: sp.ID,
		Nickname:  sp.Name,
		Element:   sp.Element,
		Level:     level,
		MaxHealth: sp.Base.Health + healthPerLevel*grow,
		Hunger:    80,
		Loyalty:   60,
		Stats: Stats{
			Attack:  sp.Base.Attack + attackPerLevel*grow,
			Defense: sp.Base.Defense + defensePerLevel*grow,
			Speed:   sp.Base.Speed + speedPerLevel*grow,
			Stamina: sp.Base.Stamina + staminaPerLevel*grow,
		},
	}
	m.Health = m.MaxHealth
	m.StaminaCurrent = MaxStamina(m)
	m.Abilities = append(m.Abilities, sp.BaseAbilities...)
	unlockAbilities(cat, m)
	RefreshStatus(m)
	return m
}

// GrowthReport lists what happened during GainXP.
type GrowthReport struct {
	LevelsGained int
	Evolved      bool
	EvolvedFrom  string
	EvolvedTo    string
	Unlocked     []string
}

// GainXP adds experience, applying level-ups, ability unlocks and evolution.
func GainXP(cat *catalog.Catalog, m *AutoMon, xp int) GrowthReport {
	var r GrowthReport
	if xp <= 0 {
		return r
	}
	m.XP += xp
	for m.XP >= XPToNext(m.Level) {
		m.XP -= XPToNext(m.Level)
		m.Level++
		m.MaxHealth += healthPerLevel
		m.Health += healthPerLevel
		m.Stats.Attack += attackPerLevel
		m.Stats.Defense += defensePerLevel
		m.Stats.Speed += speedPerLevel
		m.Stats.Stamina += staminaPerLevel
		r.LevelsGained++
	}
	r.Unlocked = append(r.Unlocked, unlockAbilities(cat, m)...)
	if from, to, ok := Evolve(cat, m); ok {
		r.Evolved, r.EvolvedFrom, r.EvolvedTo = true, from, to
		r.Unlocked = append(r.Unlocked, unlockAbilities(cat, m)...)
	}
	if m.Health > m.MaxHealth {
		m.Health = m.MaxHealth
	}
	RefreshStatus(m)
	return r
}

// Evolve swaps the creature into its evolved species when its level meets the
// species threshold. A creature already in its final form is left alone, so
// repeated calls evolve at most once per threshold.
func Evolve(cat *catalog.Catalog, m *AutoMon) (from, to string, ok bool) {
	sp, found := cat.Species[m.SpeciesID]
	if !found || sp.EvolvesTo == "" || m.Level < sp.EvolveLevel {
		return "", "", false
	}
	next := cat.Species[sp.EvolvesTo]

	if m.Nickname == sp.Name {
		m.Nickname = next.Name
	}
	m.SpeciesID = next.ID
	m.Element = next.Element
	m.MaxHealth += evolveHealth
	m.Health += evolveHealth
	if m.Health > m.MaxHealth {
		m.Health = m.MaxHealth
	}
	m.Stats.Attack += evolveAttack
	m.Stats.Defense += evolveDefense
	m.Stats.Speed += evolveSpeed
	m.Stats.Stamina += evolveStamina
	for _, a := range next.BaseAbilities {
		addAbility(m, a)
	}
	RefreshStatus(m)
	return sp.ID, next.ID, true
}

// unlockAbilities adds learnset abilities whose unlock level has been reached.
func unlockAbilities(cat *catalog.Catalog, m *AutoMon) []string {
	sp, ok := cat.Species[m.SpeciesID]
	if !ok {
		return nil
	}
	var added []string
	for _, id := range sp.Learnset {
		ab, ok := cat.Abilities[id]
		if !ok || ab.UnlockLevel > m.Level {
			continue
		}
		if addAbility(m, id) {
			added = append(added, id)
		}
	}
	return added
}

func addAbility(m *AutoMon, id string) bool {
	for _, have := range m.Abilities {
		if have == id {
			return false
		}
	}
	m.Abilities = append(m.Abilities, id)
	return true
}

// RefreshStatus recomputes Status from health and stamina.
func RefreshStatus(m *AutoMon) {
	switch {
	case m.Health <= 0:
		m.Status = StatusFainted
	case float64(m.Health) < float64(m.MaxHealth)*injuredFraction:
		m.Status = StatusInjured
	case m.StaminaCurrent <= 0:
		m.Status = StatusExhausted
	default:
		m.Status = StatusHealthy
	}
}

// HealMon adds health to a creature, clamped to its maximum.
func HealMon(m *AutoMon, amount int) {
	m.Health += amount
	if m.Health > m.MaxHealth {
		m.Health = m.MaxHealth
	}
	if m.Health < 0 {
		m.Health = 0
	}
	RefreshStatus(m)
}

// AdjustLoyalty changes loyalty, clamped to [0, 100].
func AdjustLoyalty(m *AutoMon, delta int) {
	m.Loyalty = clamp100(m.Loyalty + delta)
}

// FeedMon changes creature hunger, clamped to [0, 100].
func FeedMon(m *AutoMon, delta int) {
	m.Hunger = clamp100(m.Hunger + delta)
}
