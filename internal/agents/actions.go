package agents

import (
	"strings"

	"github.com/talgya/automon-world/internal/catalog"
)

// ActionKind enumerates everything a trainer can do in a tick.
type ActionKind uint8

const (
	ActionIdle ActionKind = iota
	ActionRest
	ActionSleep
	ActionEat
	ActionFeedAutoMon
	ActionFish
	ActionPlant
	ActionWater
	ActionHarvest
	ActionGather
	ActionMine
	ActionBuy
	ActionSell
	ActionCraft
	ActionBattlePvE
	ActionBattlePvP
	ActionTrainAutoMon
	ActionHealAutoMon
	ActionTravel
	ActionExplore
	ActionCatchAutoMon
	ActionUseItem
	ActionReleaseAutoMon
)

var actionNames = [...]string{
	ActionIdle:           "idle",
	ActionRest:           "rest",
	ActionSleep:          "sleep",
	ActionEat:            "eat",
	ActionFeedAutoMon:    "feed_automon",
	ActionFish:           "fish",
	ActionPlant:          "plant",
	ActionWater:          "water",
	ActionHarvest:        "harvest",
	ActionGather:         "gather",
	ActionMine:           "mine",
	ActionBuy:            "buy",
	ActionSell:           "sell",
	ActionCraft:          "craft",
	ActionBattlePvE:      "battle_pve",
	ActionBattlePvP:      "battle_pvp",
	ActionTrainAutoMon:   "train_automon",
	ActionHealAutoMon:    "heal_automon",
	ActionTravel:         "travel",
	ActionExplore:        "explore",
	ActionCatchAutoMon:   "catch_automon",
	ActionUseItem:        "use_item",
	ActionReleaseAutoMon: "release_automon",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "idle"
}

// ParseAction maps an action name to its kind. Unknown names map to
// ActionIdle with ok=false.
func ParseAction(name string) (ActionKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range actionNames {
		if n == name {
			return ActionKind(k), true
		}
	}
	return ActionIdle, false
}

// Decision is the action a policy chose for a trainer.
type Decision struct {
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Reasoning string `json:"reasoning"`
}

// Clock is the shared calendar as seen by a trainer.
type Clock struct {
	Tick      uint64 `json:"tick"`
	Day       int    `json:"day"`
	TimeOfDay string `json:"time_of_day"`
	Weather   string `json:"weather"`
}

// LocationView describes where the trainer is.
type LocationView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Biome  string `json:"biome"`
	Danger int    `json:"danger"`
}

// NearbyTrainer is another trainer at the same location.
type NearbyTrainer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Elo       int    `json:"elo"`
	LeadLevel int    `json:"lead_level"`
	Busy      bool   `json:"busy"`
}

// Quote is a market price as seen by a trainer.
type Quote struct {
	Price int    `json:"price"`
	Trend string `json:"trend"`
}

// Context is everything a decision policy may look at for one trainer.
type Context struct {
	Trainer      *Trainer             `json:"trainer"`
	Location     LocationView         `json:"location"`
	LegalActions []string             `json:"legal_actions"`
	Connections  []catalog.Connection `json:"connections"`
	Nearby       []NearbyTrainer      `json:"nearby"`
	Market       map[string]Quote     `json:"market"`
	RecentEvents []string             `json:"recent_events"`
	Clock        Clock                `json:"clock"`
}

// Legal reports whether action is legal at the trainer's location.
func (c *Context) Legal(action ActionKind) bool {
	name := action.String()
	for _, a := range c.LegalActions {
		if a == name {
			return true
		}
	}
	return false
}

// Price returns the quoted price for an item, falling back to its catalog price.
func (c *Context) Price(cat *catalog.Catalog, item string) int {
	if q, ok := c.Market[item]; ok {
		return q.Price
	}
	if def, ok := cat.Items[item]; ok {
		return def.Price
	}
	return 0
}
