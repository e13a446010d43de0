// Action handlers. Every handler checks its own preconditions and logs a
// noop event instead of failing; none of them return errors.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/automon-world/internal/agents"
	"github.com/talgya/automon-world/internal/battle"
	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/entropy"
	"github.com/talgya/automon-world/internal/world"
)

// Action costs and effects.
const (
	restEnergy       = 20
	restHealth       = 5
	sleepTicks       = 6
	fishEnergy       = 8
	fishGold         = 6
	cropTicks        = 12
	gatherEnergy     = 5
	mineEnergy       = 8
	crystalChance    = 0.2
	sellBatch        = 5
	battleEnergy     = 10
	trainEnergy      = 10
	trainGold        = 5
	trainXP          = 12
	trainLoyalty     = 2
	healTrainer      = 25
	travelEnergy     = 5
	exploreEnergy    = 6
	exploreItemShare = 0.6
	exploreGoldShare = 0.2
)

// Fishing odds.
const (
	fishBase      = 0.58
	fishRiverBoon = 0.12
	fishRainBoon  = 0.10
	fishStormBane = 0.15
	riverBiome    = "river_delta"
)

// Catch odds.
const (
	catchBase       = 0.25
	catchLevelSlope = 0.03
	catchMin        = 0.05
	catchMax        = 0.9
	wildHealthMin   = 30
	wildHealthMax   = 100
)

var (
	fishRewards  = []string{"raw_fish", "raw_fish", "golden_carp"}
	exploreFinds = []string{"herb", "berry_bundle", "raw_fish", "ore", "crystal_shard"}
)

type handler func(s *Simulation, run *tickRun, t *agents.Trainer, target string)

var handlers = [...]handler{
	agents.ActionIdle:           (*Simulation).idle,
	agents.ActionRest:           (*Simulation).rest,
	agents.ActionSleep:          (*Simulation).sleep,
	agents.ActionEat:            (*Simulation).eat,
	agents.ActionFeedAutoMon:    (*Simulation).feedAutoMon,
	agents.ActionFish:           (*Simulation).fish,
	agents.ActionPlant:          (*Simulation).plant,
	agents.ActionWater:          (*Simulation).water,
	agents.ActionHarvest:        (*Simulation).harvest,
	agents.ActionGather:         (*Simulation).gather,
	agents.ActionMine:           (*Simulation).mine,
	agents.ActionBuy:            (*Simulation).buy,
	agents.ActionSell:           (*Simulation).sell,
	agents.ActionCraft:          (*Simulation).craft,
	agents.ActionBattlePvE:      (*Simulation).battlePvE,
	agents.ActionBattlePvP:      (*Simulation).battlePvP,
	agents.ActionTrainAutoMon:   (*Simulation).trainAutoMon,
	agents.ActionHealAutoMon:    (*Simulation).healAutoMon,
	agents.ActionTravel:         (*Simulation).travel,
	agents.ActionExplore:        (*Simulation).explore,
	agents.ActionCatchAutoMon:   (*Simulation).catchAutoMon,
	agents.ActionUseItem:        (*Simulation).useItem,
	agents.ActionReleaseAutoMon: (*Simulation).releaseAutoMon,
}

// CatchChance is the probability a catch attempt succeeds, always within
// [0.05, 0.9].
func CatchChance(trapBonus, wildHealthFraction float64, wildLevel, ownLevel int) float64 {
	p := catchBase + trapBonus + (1 - wildHealthFraction) - catchLevelSlope*float64(max(0, wildLevel-ownLevel))
	return entropy.Clamp(p, catchMin, catchMax)
}

// FishChance is the probability a cast lands something.
func FishChance(biome, weather string) float64 {
	p := fishBase
	if biome == riverBiome {
		p += fishRiverBoon
	}
	switch weather {
	case world.WeatherRain:
		p += fishRainBoon
	case world.WeatherStorm:
		p -= fishStormBane
	}
	return p
}

func (s *Simulation) noop(st *world.GameState, t *agents.Trainer, format string, args ...any) {
	st.Log(world.CategoryNoop, t.ID, "%s: %s", t.Name, fmt.Sprintf(format, args...))
}

func (s *Simulation) location(t *agents.Trainer) *catalog.LocationDef {
	return s.cat.Locations[t.LocationID]
}

func (s *Simulation) idle(run *tickRun, t *agents.Trainer, _ string) {
	slog.Debug("trainer idle", "tick", run.st.Tick, "trainer", t.ID)
}

func (s *Simulation) rest(run *tickRun, t *agents.Trainer, _ string) {
	agents.AdjustGauges(t, restHealth, restEnergy, 0)
	run.st.Log(world.CategoryAction, t.ID, "%s rested (energy %d)", t.Name, t.Energy)
}

func (s *Simulation) sleep(run *tickRun, t *agents.Trainer, _ string) {
	t.BusyAction = agents.BusySleep
	t.BusyUntilTick = run.st.Tick + sleepTicks
	run.st.Log(world.CategoryAction, t.ID, "%s went to sleep", t.Name)
}

func (s *Simulation) eat(run *tickRun, t *agents.Trainer, target string) {
	item := target
	if item == "" {
		item = agents.BestFood(s.cat, t)
	}
	def, ok := s.cat.Items[item]
	if !ok || def.Type != catalog.ItemFood {
		s.noop(run.st, t, "has nothing to eat")
		return
	}
	if !t.Inventory.Remove(item, 1) {
		s.noop(run.st, t, "has no %s", def.Name)
		return
	}
	agents.AdjustGauges(t, def.Effect.Health, def.Effect.Energy, def.Effect.Hunger)
	run.st.Log(world.CategoryAction, t.ID, "%s ate %s (hunger %d)", t.Name, def.Name, t.Hunger)
}

func (s *Simulation) feedAutoMon(run *tickRun, t *agents.Trainer, target string) {
	m := t.FindAutoMon(target)
	if m == nil {
		m = agents.HungriestMon(t)
	}
	if m == nil {
		s.noop(run.st, t, "has no creature to feed")
		return
	}
	chow := agents.FirstOwned(s.cat, t, catalog.ItemChow, nil)
	if chow == "" {
		s.noop(run.st, t, "has no chow for %s", m.Nickname)
		return
	}
	t.Inventory.Remove(chow, 1)
	eff := s.cat.Items[chow].Effect
	agents.FeedMon(m, eff.MonHunger)
	agents.AdjustLoyalty(m, eff.Loyalty)
	run.st.Log(world.CategoryAction, t.ID, "%s fed %s (hunger %d, loyalty %d)", t.Name, m.Nickname, m.Hunger, m.Loyalty)
}

func (s *Simulation) fish(run *tickRun, t *agents.Trainer, _ string) {
	bait := agents.FirstOwned(s.cat, t, catalog.ItemBait, nil)
	if bait == "" {
		s.noop(run.st, t, "has no bait")
		return
	}
	if t.Energy < fishEnergy {
		s.noop(run.st, t, "is too tired to fish")
		return
	}
	t.Inventory.Remove(bait, 1)
	agents.AdjustGauges(t, 0, -fishEnergy, 0)

	biome := ""
	if loc := s.location(t); loc != nil {
		biome = loc.Biome
	}
	if !s.rng.Chance(FishChance(biome, run.st.Weather)) {
		run.st.Log(world.CategoryAction, t.ID, "%s fished but caught nothing", t.Name)
		return
	}
	reward, _ := entropy.Choice(s.rng, fishRewards)
	t.Inventory.Add(reward, 1)
	t.Gold += fishGold
	run.st.Log(world.CategoryAction, t.ID, "%s caught %s and earned %d gold", t.Name, s.itemName(reward), fishGold)
}

func (s *Simulation) plant(run *tickRun, t *agents.Trainer, _ string) {
	if !t.Inventory.Remove("seed_packet", 1) {
		s.noop(run.st, t, "has no seeds to plant")
		return
	}
	t.Crops = append(t.Crops, agents.Crop{
		ItemID:      "wheat",
		LocationID:  t.LocationID,
		PlantedTick: run.st.Tick,
		ReadyTick:   run.st.Tick + cropTicks,
	})
	run.st.Log(world.CategoryAction, t.ID, "%s planted wheat at %s", t.Name, s.locationName(t.LocationID))
}

func (s *Simulation) water(run *tickRun, t *agents.Trainer, _ string) {
	n := 0
	for i := range t.Crops {
		c := &t.Crops[i]
		if c.LocationID == t.LocationID && !c.Watered {
			c.Watered = true
			n++
		}
	}
	if n == 0 {
		s.noop(run.st, t, "has no dry crops here")
		return
	}
	run.st.Log(world.CategoryAction, t.ID, "%s watered %d crop(s)", t.Name, n)
}

func (s *Simulation) harvest(run *tickRun, t *agents.Trainer, _ string) {
	kept := t.Crops[:0]
	got := 0
	for _, c := range t.Crops {
		if c.LocationID != t.LocationID || run.st.Tick < c.ReadyTick {
			kept = append(kept, c)
			continue
		}
		n := 1
		if c.Watered {
			n = 2
		}
		t.Inventory.Add(c.ItemID, n)
		got += n
	}
	t.Crops = kept
	if got == 0 {
		s.noop(run.st, t, "has nothing ready to harvest")
		return
	}
	run.st.Log(world.CategoryAction, t.ID, "%s harvested %d wheat", t.Name, got)
}

func (s *Simulation) gather(run *tickRun, t *agents.Trainer, _ string) {
	if t.Energy < gatherEnergy {
		s.noop(run.st, t, "is too tired to gather")
		return
	}
	agents.AdjustGauges(t, 0, -gatherEnergy, 0)
	n := s.abundance.Yield(s.cat.LocationIndex(t.LocationID), run.st.Tick, 1)
	t.Inventory.Add("herb", n)
	run.st.Log(world.CategoryAction, t.ID, "%s gathered %d herb(s)", t.Name, n)
}

func (s *Simulation) mine(run *tickRun, t *agents.Trainer, _ string) {
	if t.Energy < mineEnergy {
		s.noop(run.st, t, "is too tired to mine")
		return
	}
	agents.AdjustGauges(t, 0, -mineEnergy, 0)
	n := s.abundance.Yield(s.cat.LocationIndex(t.LocationID), run.st.Tick, 1)
	t.Inventory.Add("ore", n)
	if s.rng.Chance(crystalChance) {
		t.Inventory.Add("crystal_shard", 1)
		run.st.Log(world.CategoryAction, t.ID, "%s mined %d ore and a crystal shard", t.Name, n)
		return
	}
	run.st.Log(world.CategoryAction, t.ID, "%s mined %d ore", t.Name, n)
}

func (s *Simulation) buy(run *tickRun, t *agents.Trainer, target string) {
	price, ok := run.st.BuyPrice(target)
	if !ok {
		s.noop(run.st, t, "cannot buy %q", target)
		return
	}
	if t.Gold < price {
		s.noop(run.st, t, "cannot afford %s (%d gold)", s.itemName(target), price)
		return
	}
	t.Gold -= price
	t.Inventory.Add(target, 1)
	run.st.Log(world.CategoryEconomy, t.ID, "%s bought %s for %d gold", t.Name, s.itemName(target), price)
}

func (s *Simulation) sell(run *tickRun, t *agents.Trainer, target string) {
	held := t.Inventory.Count(target)
	price, ok := run.st.SellPrice(target)
	if !ok || held == 0 {
		s.noop(run.st, t, "has no %q to sell", target)
		return
	}
	n := min(held, sellBatch)
	t.Inventory.Remove(target, n)
	t.Gold += n * price
	run.st.Log(world.CategoryEconomy, t.ID, "%s sold %d %s for %d gold", t.Name, n, s.itemName(target), n*price)
}

func (s *Simulation) craft(run *tickRun, t *agents.Trainer, target string) {
	r := s.recipeFor(t, target)
	if r == nil {
		s.noop(run.st, t, "has no recipe to craft %q", target)
		return
	}
	for in, n := range r.Inputs {
		if t.Inventory.Count(in) < n {
			s.noop(run.st, t, "lacks %s for %s", s.itemName(in), r.ID)
			return
		}
	}
	if t.Energy < r.Energy {
		s.noop(run.st, t, "is too tired to craft")
		return
	}
	for in, n := range r.Inputs {
		t.Inventory.Remove(in, n)
	}
	t.Inventory.Add(r.Output, r.Count)
	agents.AdjustGauges(t, 0, -r.Energy, 0)
	run.st.Log(world.CategoryAction, t.ID, "%s crafted %d %s", t.Name, r.Count, s.itemName(r.Output))
}

// recipeFor resolves a craft target given as a recipe id or an output item
// id. An empty target picks the first recipe whose inputs are held.
func (s *Simulation) recipeFor(t *agents.Trainer, target string) *catalog.RecipeDef {
	if r, ok := s.cat.Recipes[target]; ok {
		return r
	}
	for _, id := range s.cat.RecipeIDs() {
		r := s.cat.Recipes[id]
		if target != "" {
			if r.Output == target {
				return r
			}
			continue
		}
		ready := true
		for in, n := range r.Inputs {
			if t.Inventory.Count(in) < n {
				ready = false
				break
			}
		}
		if ready {
			return r
		}
	}
	return nil
}

// spawnWild draws a wild creature from the location's spawn table. The
// creature has no id until it joins a roster.
func (s *Simulation) spawnWild(loc *catalog.LocationDef) *agents.AutoMon {
	if loc == nil || len(loc.Spawns) == 0 {
		return nil
	}
	sp, _ := entropy.Weighted(s.rng, loc.Spawns, func(sp catalog.Spawn) int { return sp.Weight })
	return agents.NewAutoMon(s.cat, "", sp.Species, s.rng.Range(sp.MinLevel, sp.MaxLevel))
}

func (s *Simulation) battlePvE(run *tickRun, t *agents.Trainer, _ string) {
	if t.Energy < battleEnergy {
		s.noop(run.st, t, "is too tired to battle")
		return
	}
	if t.Lead() == nil {
		s.noop(run.st, t, "has no creature able to battle")
		return
	}
	wild := s.spawnWild(s.location(t))
	if wild == nil {
		s.noop(run.st, t, "found no wild creatures")
		return
	}
	wild.ID = wild.SpeciesID
	agents.AdjustGauges(t, 0, -battleEnergy, 0)

	res := s.resolver.Resolve(battle.TrainerSide(t), battle.WildSide(wild))
	s.recordBattle(run.st, "pve", t, res)
}

func (s *Simulation) battlePvP(run *tickRun, t *agents.Trainer, target string) {
	if run.fought[t.ID] {
		s.noop(run.st, t, "already battled this tick")
		return
	}
	if t.Energy < battleEnergy {
		s.noop(run.st, t, "is too tired to battle")
		return
	}
	if t.Lead() == nil {
		s.noop(run.st, t, "has no creature able to battle")
		return
	}
	opp := s.opponent(run, t, target)
	if opp == nil {
		s.noop(run.st, t, "found no one to battle")
		return
	}
	agents.AdjustGauges(t, 0, -battleEnergy, 0)
	run.fought[t.ID], run.fought[opp.ID] = true, true

	res := s.resolver.Resolve(battle.TrainerSide(t), battle.TrainerSide(opp))
	s.recordBattle(run.st, "pvp", t, res)
}

// opponent picks the requested trainer when eligible, otherwise the first
// eligible trainer at the same location.
func (s *Simulation) opponent(run *tickRun, t *agents.Trainer, target string) *agents.Trainer {
	eligible := func(o *agents.Trainer) bool {
		return o.ID != t.ID && o.LocationID == t.LocationID && !o.IsBusy(run.st.Tick) &&
			!run.fought[o.ID] && o.Lead() != nil
	}
	if target != "" {
		for _, o := range run.st.Trainers {
			if (o.ID == target || o.Name == target) && eligible(o) {
				return o
			}
		}
	}
	for _, o := range run.st.TrainersAt(t.LocationID) {
		if eligible(o) {
			return o
		}
	}
	return nil
}

func (s *Simulation) recordBattle(st *world.GameState, kind string, t *agents.Trainer, res *battle.Result) {
	if res == nil {
		s.noop(st, t, "could not start a battle")
		return
	}
	for _, line := range res.Log {
		slog.Debug("battle", "tick", st.Tick, "kind", kind, "line", line)
	}
	won := res.WinnerID == t.ID
	s.metrics.BattleResolved(kind, won)

	how := "in"
	if res.Stalemate {
		how = "on health after"
	}
	st.Log(world.CategoryBattle, t.ID, "%s defeated %s %s %d turns (+%d gold, +%d XP)",
		res.WinnerName, res.LoserName, how, res.Turns, res.WinnerGold, res.XPGained)
	if res.EloDelta != 0 {
		st.Log(world.CategoryBattle, res.WinnerID, "%s gained %d Elo from %s", res.WinnerName, res.EloDelta, res.LoserName)
	}
	if winner := st.Trainer(res.WinnerID); winner != nil {
		s.logGrowth(st, winner, res.Growth)
	}
}

func (s *Simulation) logGrowth(st *world.GameState, t *agents.Trainer, g agents.GrowthReport) {
	if g.LevelsGained > 0 {
		st.Log(world.CategoryGrowth, t.ID, "%s's creature gained %d level(s)", t.Name, g.LevelsGained)
	}
	for _, a := range g.Unlocked {
		st.Log(world.CategoryGrowth, t.ID, "%s's creature learned %s", t.Name, s.abilityName(a))
	}
	if g.Evolved {
		st.Log(world.CategoryGrowth, t.ID, "%s's %s evolved into %s",
			t.Name, s.speciesName(g.EvolvedFrom), s.speciesName(g.EvolvedTo))
	}
}

func (s *Simulation) trainAutoMon(run *tickRun, t *agents.Trainer, target string) {
	m := t.FindAutoMon(target)
	if m == nil {
		m = t.Lead()
	}
	switch {
	case m == nil:
		s.noop(run.st, t, "has no creature to train")
		return
	case t.Energy < trainEnergy:
		s.noop(run.st, t, "is too tired to train")
		return
	case t.Gold < trainGold:
		s.noop(run.st, t, "cannot pay %d gold for training", trainGold)
		return
	}
	agents.AdjustGauges(t, 0, -trainEnergy, 0)
	t.Gold -= trainGold
	g := agents.GainXP(s.cat, m, trainXP)
	agents.AdjustLoyalty(m, trainLoyalty)
	run.st.Log(world.CategoryAction, t.ID, "%s trained %s (+%d XP)", t.Name, m.Nickname, trainXP)
	s.logGrowth(run.st, t, g)
}

func (s *Simulation) healAutoMon(run *tickRun, t *agents.Trainer, _ string) {
	if t.Gold < agents.HealCost {
		s.noop(run.st, t, "cannot pay %d gold for healing", agents.HealCost)
		return
	}
	t.Gold -= agents.HealCost
	for _, m := range t.AutoMons {
		m.Health = m.MaxHealth
		m.StaminaCurrent = agents.MaxStamina(m)
		agents.RefreshStatus(m)
	}
	agents.AdjustGauges(t, healTrainer, 0, 0)
	run.st.Log(world.CategoryAction, t.ID, "%s healed their roster for %d gold", t.Name, agents.HealCost)
}

func (s *Simulation) travel(run *tickRun, t *agents.Trainer, target string) {
	loc := s.location(t)
	if loc == nil {
		s.noop(run.st, t, "is nowhere")
		return
	}
	edge, ok := loc.Edge(target)
	if !ok {
		s.noop(run.st, t, "has no road to %q", target)
		return
	}
	if t.Energy < travelEnergy {
		s.noop(run.st, t, "is too tired to travel")
		return
	}
	agents.AdjustGauges(t, 0, -travelEnergy, 0)
	t.BusyAction = agents.BusyTravel
	t.BusyUntilTick = run.st.Tick + uint64(edge.TravelTicks)
	t.PendingTravelTo = edge.To
	run.st.Log(world.CategoryTravel, t.ID, "%s set out for %s (%d ticks)", t.Name, s.locationName(edge.To), edge.TravelTicks)
}

func (s *Simulation) explore(run *tickRun, t *agents.Trainer, _ string) {
	if t.Energy < exploreEnergy {
		s.noop(run.st, t, "is too tired to explore")
		return
	}
	agents.AdjustGauges(t, 0, -exploreEnergy, 0)

	a := s.abundance.At(s.cat.LocationIndex(t.LocationID), run.st.Tick)
	roll := s.rng.Float()
	switch {
	case roll < a*exploreItemShare:
		item, _ := entropy.Choice(s.rng, exploreFinds)
		t.Inventory.Add(item, 1)
		run.st.Log(world.CategoryAction, t.ID, "%s explored and found %s", t.Name, s.itemName(item))
	case roll < a*exploreItemShare+exploreGoldShare:
		gold := s.rng.Range(2, 8)
		t.Gold += gold
		run.st.Log(world.CategoryAction, t.ID, "%s explored and found %d gold", t.Name, gold)
	default:
		run.st.Log(world.CategoryAction, t.ID, "%s explored but found nothing", t.Name)
	}
}

func (s *Simulation) catchAutoMon(run *tickRun, t *agents.Trainer, _ string) {
	trap := s.bestTrap(t)
	if trap == nil {
		s.noop(run.st, t, "has no trap")
		return
	}
	if t.RosterFull() {
		s.noop(run.st, t, "has no room in the stable")
		return
	}
	wild := s.spawnWild(s.location(t))
	if wild == nil {
		s.noop(run.st, t, "found no wild creatures")
		return
	}
	frac := float64(s.rng.Range(wildHealthMin, wildHealthMax)) / 100
	wild.Health = max(1, int(float64(wild.MaxHealth)*frac))
	agents.RefreshStatus(wild)

	own := 1
	if lead := t.Lead(); lead != nil {
		own = lead.Level
	}
	p := CatchChance(trap.TrapBonus, frac, wild.Level, own)
	t.Inventory.Remove(trap.ID, 1)

	if !s.rng.Chance(p) {
		run.st.Log(world.CategoryCatch, t.ID, "a wild %s broke free from %s's %s", wild.Nickname, t.Name, trap.Name)
		return
	}
	wild.ID = run.st.NewMonID()
	t.AutoMons = append(t.AutoMons, wild)
	run.st.Log(world.CategoryCatch, t.ID, "%s caught a Lv%d %s", t.Name, wild.Level, wild.Nickname)
}

// bestTrap returns the held trap with the highest bonus.
func (s *Simulation) bestTrap(t *agents.Trainer) *catalog.ItemDef {
	var best *catalog.ItemDef
	for _, id := range t.Inventory.Sorted() {
		def, ok := s.cat.Items[id]
		if !ok || def.Type != catalog.ItemTrap {
			continue
		}
		if best == nil || def.TrapBonus > best.TrapBonus {
			best = def
		}
	}
	return best
}

func (s *Simulation) useItem(run *tickRun, t *agents.Trainer, target string) {
	item := target
	if item == "" {
		item = agents.FirstOwned(s.cat, t, catalog.ItemMedicine, nil)
	}
	def, ok := s.cat.Items[item]
	if !ok || def.Type != catalog.ItemMedicine || t.Inventory.Count(item) == 0 {
		s.noop(run.st, t, "has no medicine %q", target)
		return
	}
	var m *agents.AutoMon
	if def.Effect.MonHealth > 0 {
		if m = agents.WeakestMon(t); m == nil {
			s.noop(run.st, t, "has no creature to treat")
			return
		}
	}
	t.Inventory.Remove(item, 1)
	agents.AdjustGauges(t, def.Effect.Health, def.Effect.Energy, def.Effect.Hunger)
	if m != nil {
		agents.HealMon(m, def.Effect.MonHealth)
		run.st.Log(world.CategoryAction, t.ID, "%s used %s on %s (%d/%d)", t.Name, def.Name, m.Nickname, m.Health, m.MaxHealth)
		return
	}
	run.st.Log(world.CategoryAction, t.ID, "%s used %s", t.Name, def.Name)
}

func (s *Simulation) releaseAutoMon(run *tickRun, t *agents.Trainer, target string) {
	if len(t.AutoMons) <= 1 {
		s.noop(run.st, t, "will not release their last creature")
		return
	}
	m := t.FindAutoMon(target)
	if m == nil {
		s.noop(run.st, t, "has no creature %q", target)
		return
	}
	t.RemoveAutoMon(m.ID)
	run.st.Log(world.CategoryAction, t.ID, "%s released %s", t.Name, m.Nickname)
}

func (s *Simulation) itemName(id string) string {
	if def, ok := s.cat.Items[id]; ok {
		return def.Name
	}
	return id
}

func (s *Simulation) speciesName(id string) string {
	if sp, ok := s.cat.Species[id]; ok {
		return sp.Name
	}
	return id
}

func (s *Simulation) abilityName(id string) string {
	if ab, ok := s.cat.Abilities[id]; ok {
		return ab.Name
	}
	return id
}
