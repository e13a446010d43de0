// Package battle resolves turn-based fights between the lead creatures of two
// sides and settles experience, gold, rating and post-battle condition.
package battle

import (
	"fmt"
	"math"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
)

// Combat constants.
const (
	MaxTurns       = 30
	EloK           = 28
	minDamage      = 4
	defenseFactor  = 0.6
	strugglePower  = 10
	struggleCost   = 8
	winLoyalty     = 4
	loserHealthPct = 0.2
)

// Side is one participant: a trainer's roster, or a single wild creature.
type Side struct {
	ID      string
	Name    string
	Trainer *agents.Trainer // nil for wild encounters
	Wild    *agents.AutoMon
	Purse   int // gold a wild side can lose
}

// TrainerSide wraps a trainer.
func TrainerSide(t *agents.Trainer) *Side {
	return &Side{ID: t.ID, Name: t.Name, Trainer: t}
}

// WildSide wraps a wild creature. Its purse is 10 + 2*level.
func WildSide(m *agents.AutoMon) *Side {
	return &Side{ID: "wild:" + m.ID, Name: "wild " + m.Nickname, Wild: m, Purse: 10 + 2*m.Level}
}

// IsWild reports whether the side is a wild encounter.
func (s *Side) IsWild() bool { return s.Trainer == nil }

// Lead returns the first creature with health above zero, or nil.
func (s *Side) Lead() *agents.AutoMon {
	if s.Trainer != nil {
		return s.Trainer.Lead()
	}
	if s.Wild != nil && s.Wild.Health > 0 {
		return s.Wild
	}
	return nil
}

func (s *Side) roster() []*agents.AutoMon {
	if s.Trainer != nil {
		return s.Trainer.AutoMons
	}
	if s.Wild != nil {
		return []*agents.AutoMon{s.Wild}
	}
	return nil
}

func (s *Side) gold() int {
	if s.Trainer != nil {
		return s.Trainer.Gold
	}
	return s.Purse
}

func (s *Side) addGold(n int) {
	if s.Trainer != nil {
		s.Trainer.Gold += n
		return
	}
	s.Purse += n
}

// Result describes a finished battle.
type Result struct {
	WinnerID      string   `json:"winner_id"`
	LoserID       string   `json:"loser_id"`
	WinnerName    string   `json:"winner_name"`
	LoserName     string   `json:"loser_name"`
	Log           []string `json:"log"`
	WinnerGold    int      `json:"winner_gold"`
	LoserGoldLoss int      `json:"loser_gold_loss"`
	Turns         int      `json:"turns"`
	Stalemate     bool     `json:"stalemate"`
	EloDelta      int      `json:"elo_delta"` // added to the winner, taken from the loser
	XPGained      int      `json:"xp_gained"`

	Growth agents.GrowthReport `json:"-"`
}

// Resolver runs battles against a catalog.
type Resolver struct {
	Catalog *catalog.Catalog
}

// move is the attack a creature uses this turn.
type move struct {
	name    string
	power   int
	cost    int
	element catalog.Element
}

// Resolve fights a against b. It returns nil when either side has no creature
// with health above zero. Battles always finish within MaxTurns turns and
// mutate both sides in place.
func (r *Resolver) Resolve(a, b *Side) *Result {
	ma, mb := a.Lead(), b.Lead()
	if ma == nil || mb == nil {
		return nil
	}

	res := &Result{}
	res.Log = append(res.Log, fmt.Sprintf("%s's %s (Lv%d) vs %s's %s (Lv%d)",
		a.Name, ma.Nickname, ma.Level, b.Name, mb.Nickname, mb.Level))

	first, second := ma, mb
	if mb.Stats.Speed > ma.Stats.Speed {
		first, second = mb, ma
	}

	knockout := false
	for res.Turns < MaxTurns && !knockout {
		res.Turns++
		for _, pair := range [2][2]*agents.AutoMon{{first, second}, {second, first}} {
			atk, def := pair[0], pair[1]
			mv := r.chooseMove(atk)
			dmg := Damage(mv.power, atk.Stats.Attack, def.Stats.Defense, catalog.Multiplier(mv.element, def.Element))
			def.Health = entropy.ClampInt(def.Health-dmg, 0, def.MaxHealth)
			atk.StaminaCurrent = max(0, atk.StaminaCurrent-mv.cost)
			res.Log = append(res.Log, fmt.Sprintf("T%d: %s used %s for %d (%s %d/%d)",
				res.Turns, atk.Nickname, mv.name, dmg, def.Nickname, def.Health, def.MaxHealth))
			if def.Health == 0 {
				knockout = true
				break
			}
		}
	}

	winner, loser := a, b
	wMon, lMon := ma, mb
	switch {
	case ma.Health == 0:
		winner, loser, wMon, lMon = b, a, mb, ma
	case mb.Health == 0:
	default:
		res.Stalemate = true
		if healthFraction(mb) > healthFraction(ma) {
			winner, loser, wMon, lMon = b, a, mb, ma
		}
		res.Log = append(res.Log, fmt.Sprintf("turn limit reached; %s holds out with more health", wMon.Nickname))
	}

	r.settle(res, winner, loser, wMon, lMon)
	return res
}

func (r *Resolver) settle(res *Result, winner, loser *Side, wMon, lMon *agents.AutoMon) {
	res.WinnerID, res.LoserID = winner.ID, loser.ID
	res.WinnerName, res.LoserName = winner.Name, loser.Name

	res.XPGained = 20 + 2*lMon.Level
	res.Growth = agents.GainXP(r.Catalog, wMon, res.XPGained)
	agents.AdjustLoyalty(wMon, winLoyalty)

	gold := min(loser.gold(), 25+3*lMon.Level)
	if gold < 0 {
		gold = 0
	}
	loser.addGold(-gold)
	winner.addGold(gold)
	res.WinnerGold, res.LoserGoldLoss = gold, gold

	if winner.Trainer != nil && loser.Trainer != nil {
		res.EloDelta = EloDelta(winner.Trainer.Elo, loser.Trainer.Elo)
		winner.Trainer.Elo += res.EloDelta
		loser.Trainer.Elo -= res.EloDelta
	}
	if winner.Trainer != nil {
		winner.Trainer.Wins++
	}
	if loser.Trainer != nil {
		loser.Trainer.Losses++
	}

	lMon.Health = max(1, int(float64(lMon.MaxHealth)*loserHealthPct))

	for _, side := range []*Side{winner, loser} {
		for _, m := range side.roster() {
			m.StaminaCurrent = agents.MaxStamina(m)
			agents.RefreshStatus(m)
		}
	}

	res.Log = append(res.Log, fmt.Sprintf("%s wins: +%d XP, +%d gold", winner.Name, res.XPGained, gold))
	if res.Growth.Evolved {
		res.Log = append(res.Log, fmt.Sprintf("%s evolved into %s!", res.Growth.EvolvedFrom, res.Growth.EvolvedTo))
	}
}

// chooseMove picks the strongest affordable unlocked ability. Ties keep the
// first listed. With nothing affordable the creature struggles.
func (r *Resolver) chooseMove(m *agents.AutoMon) move {
	best := move{name: "Struggle", power: strugglePower, cost: struggleCost, element: catalog.ElementNeutral}
	found := false
	for _, id := range m.Abilities {
		ab, ok := r.Catalog.Abilities[id]
		if !ok || ab.StaminaCost > m.StaminaCurrent || ab.UnlockLevel > m.Level {
			continue
		}
		if !found || ab.Power > best.power {
			best = move{name: ab.Name, power: ab.Power, cost: ab.StaminaCost, element: ab.Element}
			found = true
		}
	}
	return best
}

// Damage is max(4, floor((power + attack - floor(defense*0.6)) * mult)).
func Damage(power, attack, defense int, mult float64) int {
	raw := float64(power+attack-int(math.Floor(float64(defense)*defenseFactor))) * mult
	return max(minDamage, int(math.Floor(raw)))
}

// ExpectedScore is the logistic probability that a player rated ra beats rb.
func ExpectedScore(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

// EloDelta is the rating the winner gains and the loser gives up.
func EloDelta(winnerElo, loserElo int) int {
	return int(math.Round(EloK * (1 - ExpectedScore(winnerElo, loserElo))))
}

func healthFraction(m *agents.AutoMon) float64 {
	if m.MaxHealth <= 0 {
		return 0
	}
	return float64(m.Health) / float64(m.MaxHealth)
}
