// Rule-based fallback policy: a fixed priority ladder over the trainer's
// gauges, inventory and the legal actions at their location.
package agents

import (
	"fmt"

	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
)

// HealCost is the gold price of a full roster heal at a healing station.
const HealCost = 15

// Ladder thresholds.
const (
	healMonFraction  = 0.5
	healOwnHealth    = 35
	eatBelowHunger   = 25
	restBelowEnergy  = 20
	feedBelowHunger  = 40
	pveMinEnergy     = 15
	workMinEnergy    = 10
	pveMinLeadHealth = 0.5
)

// Fallback picks an action with the fixed priority ladder. Rungs are tried in
// order and the first one whose legality and resource checks pass wins. The
// only random draw is the travel destination.
func Fallback(cat *catalog.Catalog, c *Context, rng *entropy.Source) Decision {
	t := c.Trainer

	// 1. Patch up the roster when both trainer and a creature are hurting.
	if t.Health < healOwnHealth && anyMonBelow(t, healMonFraction) {
		if c.Legal(ActionHealAutoMon) && t.Gold >= HealCost {
			return Decision{Action: ActionHealAutoMon.String(), Reasoning: "roster and trainer are hurt; visiting the healer"}
		}
		if c.Legal(ActionUseItem) {
			if potion := FirstOwned(cat, t, catalog.ItemMedicine, func(d *catalog.ItemDef) bool { return d.Effect.MonHealth > 0 }); potion != "" {
				return Decision{Action: ActionUseItem.String(), Target: potion, Reasoning: "roster is hurt; using " + potion}
			}
		}
	}

	// 2. Eat, or buy something to eat.
	if t.Hunger < eatBelowHunger {
		if c.Legal(ActionEat) {
			if food := BestFood(cat, t); food != "" {
				return Decision{Action: ActionEat.String(), Target: food, Reasoning: fmt.Sprintf("hunger is %d; eating %s", t.Hunger, food)}
			}
		}
		if c.Legal(ActionBuy) {
			if food := cheapestFood(cat, c); food != "" {
				return Decision{Action: ActionBuy.String(), Target: food, Reasoning: fmt.Sprintf("hunger is %d and no food on hand; buying %s", t.Hunger, food)}
			}
		}
	}

	// 3. Rest when spent.
	if t.Energy < restBelowEnergy && c.Legal(ActionRest) {
		return Decision{Action: ActionRest.String(), Reasoning: fmt.Sprintf("energy is %d; resting", t.Energy)}
	}

	// 4. Feed a hungry creature.
	if c.Legal(ActionFeedAutoMon) {
		if chow := FirstOwned(cat, t, catalog.ItemChow, nil); chow != "" {
			if m := HungriestMon(t); m != nil && m.Hunger < feedBelowHunger {
				return Decision{Action: ActionFeedAutoMon.String(), Target: m.ID, Reasoning: fmt.Sprintf("%s is hungry (%d)", m.Nickname, m.Hunger)}
			}
		}
	}

	// 5. Fight a wild encounter when the lead is fit.
	if c.Legal(ActionBattlePvE) && t.Energy >= pveMinEnergy {
		if lead := t.Lead(); lead != nil && float64(lead.Health) >= float64(lead.MaxHealth)*pveMinLeadHealth {
			return Decision{Action: ActionBattlePvE.String(), Reasoning: fmt.Sprintf("%s is fit for a wild battle", lead.Nickname)}
		}
	}

	// 6. Fish.
	if c.Legal(ActionFish) && t.Energy >= workMinEnergy && FirstOwned(cat, t, catalog.ItemBait, nil) != "" {
		return Decision{Action: ActionFish.String(), Reasoning: "bait on hand; fishing"}
	}

	// 7. Explore.
	if c.Legal(ActionExplore) && t.Energy >= workMinEnergy {
		return Decision{Action: ActionExplore.String(), Reasoning: "exploring the area"}
	}

	// 8. Move on.
	if c.Legal(ActionTravel) {
		if edge, ok := entropy.Choice(rng, c.Connections); ok {
			return Decision{Action: ActionTravel.String(), Target: edge.To, Reasoning: "nothing to do here; heading to " + edge.To}
		}
	}

	// 9. Rest.
	if c.Legal(ActionRest) {
		return Decision{Action: ActionRest.String(), Reasoning: "resting"}
	}

	// 10. Whatever the place allows.
	if len(c.LegalActions) > 0 {
		return Decision{Action: c.LegalActions[0], Reasoning: "taking the first available action"}
	}
	return Decision{Action: ActionIdle.String(), Reasoning: "no legal actions"}
}

// WeakestMon returns the creature with the lowest health fraction, or nil.
func WeakestMon(t *Trainer) *AutoMon {
	var best *AutoMon
	bestFrac := 2.0
	for _, m := range t.AutoMons {
		if m.MaxHealth <= 0 {
			continue
		}
		if f := float64(m.Health) / float64(m.MaxHealth); f < bestFrac {
			best, bestFrac = m, f
		}
	}
	return best
}

func anyMonBelow(t *Trainer, fraction float64) bool {
	for _, m := range t.AutoMons {
		if float64(m.Health) < float64(m.MaxHealth)*fraction {
			return true
		}
	}
	return false
}

// HungriestMon returns the creature with the lowest hunger, or nil.
func HungriestMon(t *Trainer) *AutoMon {
	var best *AutoMon
	for _, m := range t.AutoMons {
		if best == nil || m.Hunger < best.Hunger {
			best = m
		}
	}
	return best
}

// FirstOwned returns the first held item (by id) of type typ that
// satisfies keep.
func FirstOwned(cat *catalog.Catalog, t *Trainer, typ catalog.ItemType, keep func(*catalog.ItemDef) bool) string {
	for _, id := range t.Inventory.Sorted() {
		def, ok := cat.Items[id]
		if !ok || def.Type != typ {
			continue
		}
		if keep == nil || keep(def) {
			return id
		}
	}
	return ""
}

// BestFood returns the held food that restores the most hunger.
func BestFood(cat *catalog.Catalog, t *Trainer) string {
	best, bestHunger := "", 0
	for _, id := range t.Inventory.Sorted() {
		def, ok := cat.Items[id]
		if !ok || def.Type != catalog.ItemFood {
			continue
		}
		if def.Effect.Hunger > bestHunger {
			best, bestHunger = id, def.Effect.Hunger
		}
	}
	return best
}

// cheapestFood returns the cheapest food the trainer can afford right now.
func cheapestFood(cat *catalog.Catalog, c *Context) string {
	best, bestPrice := "", 0
	for _, id := range cat.ItemsOfType(catalog.ItemFood) {
		p := c.Price(cat, id)
		if p <= 0 || p > c.Trainer.Gold {
			continue
		}
		if best == "" || p < bestPrice {
			best, bestPrice = id, p
		}
	}
	return best
}
