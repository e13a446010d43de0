// Package catalog holds the static reference tables: species, abilities, items,
// recipes, locations and the starting roster. Tables are loaded once from YAML
// and never mutated afterwards.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// StartLocation is where new and rescued trainers are placed.
const StartLocation = "starter_town"

// Element is an elemental affinity shared by species and abilities.
type Element string

const (
	ElementFire     Element = "fire"
	ElementWater    Element = "water"
	ElementEarth    Element = "earth"
	ElementElectric Element = "electric"
	ElementLight    Element = "light"
	ElementShadow   Element = "shadow"
	ElementNeutral  Element = "neutral"
)

// advantages maps an attacking element to the element it is strong against.
var advantages = map[Element]Element{
	ElementFire:     ElementEarth,
	ElementEarth:    ElementElectric,
	ElementElectric: ElementWater,
	ElementWater:    ElementFire,
	ElementLight:    ElementShadow,
	ElementShadow:   ElementLight,
}

// Multiplier returns the damage multiplier for an attack of element atk against
// a defender of element def.
func Multiplier(atk, def Element) float64 {
	if target, ok := advantages[atk]; ok && target == def {
		return 1.5
	}
	return 1.0
}

// ItemType classifies items for handlers and the fallback ladder.
type ItemType string

const (
	ItemFood     ItemType = "food"
	ItemChow     ItemType = "chow"
	ItemBait     ItemType = "bait"
	ItemTrap     ItemType = "trap"
	ItemMedicine ItemType = "medicine"
	ItemSeed     ItemType = "seed"
	ItemMaterial ItemType = "material"
	ItemTreasure ItemType = "treasure"
)

// BaseStats are the species-level combat stats at level 1.
type BaseStats struct {
	Health  int `yaml:"health" json:"health"`
	Attack  int `yaml:"attack" json:"attack"`
	Defense int `yaml:"defense" json:"defense"`
	Speed   int `yaml:"speed" json:"speed"`
	Stamina int `yaml:"stamina" json:"stamina"`
}

// SpeciesDef describes one creature species.
type SpeciesDef struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Element       Element   `yaml:"element" json:"element"`
	Rarity        string    `yaml:"rarity" json:"rarity"`
	Base          BaseStats `yaml:"base" json:"base"`
	EvolvesTo     string    `yaml:"evolves_to,omitempty" json:"evolves_to,omitempty"`
	EvolveLevel   int       `yaml:"evolve_level,omitempty" json:"evolve_level,omitempty"`
	BaseAbilities []string  `yaml:"base_abilities" json:"base_abilities"`
	Learnset      []string  `yaml:"learnset" json:"learnset"`
	Habitats      []string  `yaml:"habitats" json:"habitats"`
}

// AbilityDef describes one combat ability.
type AbilityDef struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Element     Element `yaml:"element" json:"element"`
	Power       int     `yaml:"power" json:"power"`
	StaminaCost int     `yaml:"stamina_cost" json:"stamina_cost"`
	UnlockLevel int     `yaml:"unlock_level" json:"unlock_level"`
}

// Effect holds the deltas an item applies when consumed.
type Effect struct {
	Hunger    int `yaml:"hunger,omitempty" json:"hunger,omitempty"`
	Energy    int `yaml:"energy,omitempty" json:"energy,omitempty"`
	Health    int `yaml:"health,omitempty" json:"health,omitempty"`
	MonHealth int `yaml:"mon_health,omitempty" json:"mon_health,omitempty"`
	MonHunger int `yaml:"mon_hunger,omitempty" json:"mon_hunger,omitempty"`
	Loyalty   int `yaml:"loyalty,omitempty" json:"loyalty,omitempty"`
}

// ItemDef describes one item.
type ItemDef struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Type      ItemType `yaml:"type" json:"type"`
	Price     int      `yaml:"price" json:"price"`
	Effect    Effect   `yaml:"effect,omitempty" json:"effect,omitempty"`
	TrapBonus float64  `yaml:"trap_bonus,omitempty" json:"trap_bonus,omitempty"`
}

// RecipeDef turns input items into an output item.
type RecipeDef struct {
	ID     string         `yaml:"id" json:"id"`
	Inputs map[string]int `yaml:"inputs" json:"inputs"`
	Output string         `yaml:"output" json:"output"`
	Count  int            `yaml:"count" json:"count"`
	Energy int            `yaml:"energy" json:"energy"`
}

// Connection is a weighted edge in the location graph.
type Connection struct {
	To          string `yaml:"to" json:"to"`
	TravelTicks int    `yaml:"travel_ticks" json:"travel_ticks"`
}

// Spawn is one weighted row of a location's spawn table.
type Spawn struct {
	Species  string `yaml:"species" json:"species"`
	Weight   int    `yaml:"weight" json:"weight"`
	MinLevel int    `yaml:"min_level" json:"min_level"`
	MaxLevel int    `yaml:"max_level" json:"max_level"`
}

// LocationDef describes a place trainers can be.
type LocationDef struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Biome       string       `yaml:"biome" json:"biome"`
	Danger      int          `yaml:"danger" json:"danger"`
	Actions     []string     `yaml:"actions" json:"actions"`
	Connections []Connection `yaml:"connections" json:"connections"`
	Spawns      []Spawn      `yaml:"spawns" json:"spawns"`
}

// Allows reports whether action is legal at the location.
func (l *LocationDef) Allows(action string) bool {
	for _, a := range l.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Edge returns the connection to the given location, if any.
func (l *LocationDef) Edge(to string) (Connection, bool) {
	for _, c := range l.Connections {
		if c.To == to {
			return c, true
		}
	}
	return Connection{}, false
}

// RosterEntry seeds one trainer at world creation.
type RosterEntry struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Starter string `yaml:"starter" json:"starter"`
}

// Catalog is the full set of reference tables, indexed by id.
type Catalog struct {
	Species   map[string]*SpeciesDef  `json:"species"`
	Abilities map[string]*AbilityDef  `json:"abilities"`
	Items     map[string]*ItemDef     `json:"items"`
	Recipes   map[string]*RecipeDef   `json:"recipes"`
	Locations map[string]*LocationDef `json:"locations"`
	Roster    []RosterEntry           `json:"roster"`

	itemOrder     []string
	locationOrder []string
	recipeOrder   []string
}

// KnownActions is the closed set of action names a location may list.
var KnownActions = []string{
	"rest", "sleep", "eat", "feed_automon", "fish", "plant", "water", "harvest",
	"gather", "mine", "buy", "sell", "craft", "battle_pve", "battle_pvp",
	"train_automon", "heal_automon", "travel", "explore", "catch_automon",
	"use_item", "release_automon",
}

// Default returns the embedded catalog. It panics if the embedded data is
// inconsistent, which is a build defect rather than a runtime condition.
func Default() *Catalog {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err)
	}
	c, err := Load(sub)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads species.yaml, abilities.yaml, items.yaml, recipes.yaml,
// locations.yaml and roster.yaml from fsys and validates cross references.
func Load(fsys fs.FS) (*Catalog, error) {
	var (
		species   []*SpeciesDef
		abilities []*AbilityDef
		items     []*ItemDef
		recipes   []*RecipeDef
		locations []*LocationDef
		roster    []RosterEntry
	)
	files := []struct {
		name string
		out  any
	}{
		{"species.yaml", &species},
		{"abilities.yaml", &abilities},
		{"items.yaml", &items},
		{"recipes.yaml", &recipes},
		{"locations.yaml", &locations},
		{"roster.yaml", &roster},
	}
	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := yaml.Unmarshal(raw, f.out); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	c := &Catalog{
		Species:   make(map[string]*SpeciesDef, len(species)),
		Abilities: make(map[string]*AbilityDef, len(abilities)),
		Items:     make(map[string]*ItemDef, len(items)),
		Recipes:   make(map[string]*RecipeDef, len(recipes)),
		Locations: make(map[string]*LocationDef, len(locations)),
		Roster:    roster,
	}
	for _, s := range species {
		c.Species[s.ID] = s
	}
	for _, a := range abilities {
		c.Abilities[a.ID] = a
	}
	for _, it := range items {
		c.Items[it.ID] = it
		c.itemOrder = append(c.itemOrder, it.ID)
	}
	for _, r := range recipes {
		c.Recipes[r.ID] = r
		c.recipeOrder = append(c.recipeOrder, r.ID)
	}
	for _, l := range locations {
		c.Locations[l.ID] = l
		c.locationOrder = append(c.locationOrder, l.ID)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	known := make(map[string]bool, len(KnownActions))
	for _, a := range KnownActions {
		known[a] = true
	}

	for _, s := range c.Species {
		if s.EvolvesTo != "" {
			if _, ok := c.Species[s.EvolvesTo]; !ok {
				return fmt.Errorf("species %s evolves to unknown species %s", s.ID, s.EvolvesTo)
			}
			if s.EvolveLevel <= 0 {
				return fmt.Errorf("species %s has evolution without a level", s.ID)
			}
		}
		if len(s.BaseAbilities) == 0 {
			return fmt.Errorf("species %s has no base abilities", s.ID)
		}
		for _, list := range [][]string{s.BaseAbilities, s.Learnset} {
			for _, a := range list {
				if _, ok := c.Abilities[a]; !ok {
					return fmt.Errorf("species %s references unknown ability %s", s.ID, a)
				}
			}
		}
	}
	for _, r := range c.Recipes {
		if _, ok := c.Items[r.Output]; !ok {
			return fmt.Errorf("recipe %s outputs unknown item %s", r.ID, r.Output)
		}
		for in := range r.Inputs {
			if _, ok := c.Items[in]; !ok {
				return fmt.Errorf("recipe %s consumes unknown item %s", r.ID, in)
			}
		}
	}
	if _, ok := c.Locations[StartLocation]; !ok {
		return fmt.Errorf("start location %s missing", StartLocation)
	}
	for _, l := range c.Locations {
		for _, a := range l.Actions {
			if !known[a] {
				return fmt.Errorf("location %s lists unknown action %s", l.ID, a)
			}
		}
		for _, e := range l.Connections {
			if _, ok := c.Locations[e.To]; !ok {
				return fmt.Errorf("location %s connects to unknown location %s", l.ID, e.To)
			}
			if e.TravelTicks <= 0 {
				return fmt.Errorf("location %s edge to %s has no travel cost", l.ID, e.To)
			}
		}
		for _, sp := range l.Spawns {
			if _, ok := c.Species[sp.Species]; !ok {
				return fmt.Errorf("location %s spawns unknown species %s", l.ID, sp.Species)
			}
			if sp.MinLevel <= 0 || sp.MaxLevel < sp.MinLevel {
				return fmt.Errorf("location %s spawn %s has bad level range", l.ID, sp.Species)
			}
		}
	}
	if len(c.Roster) == 0 {
		return fmt.Errorf("roster is empty")
	}
	for _, r := range c.Roster {
		if _, ok := c.Species[r.Starter]; !ok {
			return fmt.Errorf("roster entry %s has unknown starter %s", r.ID, r.Starter)
		}
	}
	return nil
}

// ItemIDs returns item ids in file order.
func (c *Catalog) ItemIDs() []string { return c.itemOrder }

// LocationIDs returns location ids in file order.
func (c *Catalog) LocationIDs() []string { return c.locationOrder }

// RecipeIDs returns recipe ids in file order.
func (c *Catalog) RecipeIDs() []string { return c.recipeOrder }

// ItemsOfType returns the ids of every item of type t, sorted by id.
func (c *Catalog) ItemsOfType(t ItemType) []string {
	var ids []string
	for id, it := range c.Items {
		if it.Type == t {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LocationIndex returns the position of a location in file order, or -1.
func (c *Catalog) LocationIndex(id string) int {
	for i, l := range c.locationOrder {
		if l == id {
			return i
		}
	}
	return -1
}
