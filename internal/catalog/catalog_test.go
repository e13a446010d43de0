package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()

	require.NotEmpty(t, c.Species)
	require.NotEmpty(t, c.Roster)
	assert.Contains(t, c.Locations, StartLocation)
	assert.Equal(t, ItemFood, c.Items["trail_ration"].Type)
	assert.Equal(t, 25, c.Items["trail_ration"].Effect.Hunger)
	assert.Equal(t, "river_delta", c.Locations["river_delta"].Biome)
}

func TestMultiplier(t *testing.T) {
	tests := []struct {
		atk, def Element
		want     float64
	}{
		{ElementFire, ElementEarth, 1.5},
		{ElementEarth, ElementElectric, 1.5},
		{ElementElectric, ElementWater, 1.5},
		{ElementWater, ElementFire, 1.5},
		{ElementLight, ElementShadow, 1.5},
		{ElementShadow, ElementLight, 1.5},
		{ElementEarth, ElementFire, 1.0},
		{ElementFire, ElementWater, 1.0},
		{ElementNeutral, ElementFire, 1.0},
		{ElementFire, ElementFire, 1.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.atk)+"_vs_"+string(tt.def), func(t *testing.T) {
			assert.InDelta(t, tt.want, Multiplier(tt.atk, tt.def), 1e-9)
		})
	}
}

func TestLocationHelpers(t *testing.T) {
	c := Default()
	town := c.Locations[StartLocation]

	assert.True(t, town.Allows("buy"))
	assert.False(t, town.Allows("fish"))

	edge, ok := town.Edge("whisper_forest")
	require.True(t, ok)
	assert.Equal(t, 2, edge.TravelTicks)

	_, ok = town.Edge("ember_crater")
	assert.False(t, ok)
}

func TestLoadRejectsBrokenReferences(t *testing.T) {
	base := map[string]string{
		"species.yaml": `
- id: a
  name: A
  element: fire
  base: {health: 10, attack: 1, defense: 1, speed: 1, stamina: 1}
  base_abilities: [hit]
  learnset: []
`,
		"abilities.yaml": `- {id: hit, name: Hit, element: neutral, power: 5, stamina_cost: 1, unlock_level: 1}`,
		"items.yaml":     `- {id: food, name: Food, type: food, price: 2}`,
		"recipes.yaml":   `[]`,
		"locations.yaml": `
- id: starter_town
  name: Town
  actions: [rest]
  connections: []
  spawns: []
`,
		"roster.yaml": `- {id: t1, name: T, starter: a}`,
	}

	build := func(over map[string]string) fstest.MapFS {
		fsys := fstest.MapFS{}
		for k, v := range base {
			fsys[k] = &fstest.MapFile{Data: []byte(v)}
		}
		for k, v := range over {
			fsys[k] = &fstest.MapFile{Data: []byte(v)}
		}
		return fsys
	}

	_, err := Load(build(nil))
	require.NoError(t, err)

	tests := []struct {
		name string
		over map[string]string
		want string
	}{
		{
			name: "unknown starter",
			over: map[string]string{"roster.yaml": `- {id: t1, name: T, starter: nope}`},
			want: "unknown starter",
		},
		{
			name: "unknown action",
			over: map[string]string{"locations.yaml": `
- id: starter_town
  name: Town
  actions: [dance]
`},
			want: "unknown action",
		},
		{
			name: "dangling connection",
			over: map[string]string{"locations.yaml": `
- id: starter_town
  name: Town
  actions: [travel]
  connections: [{to: nowhere, travel_ticks: 2}]
`},
			want: "unknown location",
		},
		{
			name: "missing start location",
			over: map[string]string{"locations.yaml": `
- id: elsewhere
  name: Elsewhere
  actions: [rest]
`},
			want: "start location",
		},
		{
			name: "unknown ability",
			over: map[string]string{"abilities.yaml": `- {id: other, name: O, element: neutral, power: 5, stamina_cost: 1, unlock_level: 1}`},
			want: "unknown ability",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(build(tt.over))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
