// Passive needs decay for trainers and their creatures.
package agents

import "github.com/talgya/automon-world/internal/catalog"

// Per-tick decay and damage.
const (
	hungerDecay      = 2
	energyDecay      = 1
	starvationDamage = 4
	exhaustionDamage = 2
	monHungerDecay   = 1
	monStarveLoyalty = 3
	monStarveDamage  = 2
	rescueHealth     = 25
	rescueHunger     = 25
	rescueEnergy     = 30
)

// DecayReport summarizes what decay did to one trainer this tick.
type DecayReport struct {
	Starving  bool
	Exhausted bool
	Fainted   []string // nicknames that fainted this tick
	Deserted  []string // nicknames removed for zero loyalty
	Rescued   bool
}

// DecayNeeds applies one tick of passive decay to a trainer and every creature
// they own. Trainers whose health reaches zero are rescued, not removed.
func DecayNeeds(t *Trainer) DecayReport {
	var r DecayReport

	t.Hunger = clamp100(t.Hunger - hungerDecay)
	t.Energy = clamp100(t.Energy - energyDecay)
	if t.Hunger == 0 {
		t.Health = clamp100(t.Health - starvationDamage)
		r.Starving = true
	}
	if t.Energy == 0 {
		t.Health = clamp100(t.Health - exhaustionDamage)
		r.Exhausted = true
	}

	kept := t.AutoMons[:0]
	for _, m := range t.AutoMons {
		wasUp := m.Health > 0
		m.Hunger = clamp100(m.Hunger - monHungerDecay)
		if m.Hunger == 0 {
			m.Loyalty = clamp100(m.Loyalty - monStarveLoyalty)
			m.Health -= monStarveDamage
			if m.Health < 0 {
				m.Health = 0
			}
		}
		RefreshStatus(m)
		if wasUp && m.Health == 0 {
			r.Fainted = append(r.Fainted, m.Nickname)
		}
		if m.Loyalty <= 0 {
			r.Deserted = append(r.Deserted, m.Nickname)
			continue
		}
		kept = append(kept, m)
	}
	// Zero the tail so removed creatures are not retained by the backing array.
	for i := len(kept); i < len(t.AutoMons); i++ {
		t.AutoMons[i] = nil
	}
	t.AutoMons = kept

	if t.Health <= 0 {
		Rescue(t)
		r.Rescued = true
	}
	return r
}

// Rescue restores a collapsed trainer to minimal gauges at the starting town.
func Rescue(t *Trainer) {
	t.Health = rescueHealth
	t.Hunger = rescueHunger
	t.Energy = rescueEnergy
	t.LocationID = catalog.StartLocation
	t.ClearBusy()
}

// AdjustGauges applies deltas to a trainer's gauges, clamped to [0, 100].
func AdjustGauges(t *Trainer, health, energy, hunger int) {
	t.Health = clamp100(t.Health + health)
	t.Energy = clamp100(t.Energy + energy)
	t.Hunger = clamp100(t.Hunger + hunger)
}
