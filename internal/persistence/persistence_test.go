package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/automon-world/internal/catalog"
	"github.com/talgya/automon-world/internal/world"
)

func newWorld(t *testing.T) *world.GameState {
	t.Helper()
	cfg := world.DefaultGenConfig()
	cfg.Seed = 99
	return world.New(catalog.Default(), cfg)
}

func openDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return openDB(t) },
		"memory": func(*testing.T) Store { return NewMemory() },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)

			got, err := st.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got, "empty slot loads as nil")

			s := newWorld(t)
			s.Tick = 41
			s.Trainers[0].Gold = 7
			require.NoError(t, st.Save(ctx, s))

			got, err = st.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, s.WorldID, got.WorldID)
			assert.Equal(t, uint64(41), got.Tick)
			assert.Equal(t, 7, got.Trainers[0].Gold)
			assert.Equal(t, s.Trainers[0].AutoMons[0].Abilities, got.Trainers[0].AutoMons[0].Abilities)
			assert.Equal(t, len(s.Events), len(got.Events))

			// Later saves replace the slot.
			s.Tick = 42
			require.NoError(t, st.Save(ctx, s))
			got, err = st.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(42), got.Tick)

			// A new world in the same slot replaces the old one.
			fresh := newWorld(t)
			require.NoError(t, st.Save(ctx, fresh))
			got, err = st.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, fresh.WorldID, got.WorldID)
			assert.Equal(t, uint64(0), got.Tick)
		})
	}
}

func TestMemoryKeepsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := newWorld(t)
	require.NoError(t, m.Save(ctx, s))

	s.Trainers[0].Gold = 1
	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Trainers[0].Gold)

	got.Trainers[0].Gold = 2
	again, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, again.Trainers[0].Gold)
	assert.Equal(t, 1, m.Saves())
}

func TestDBArchivesEventsBeyondRing(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s := newWorld(t)
	s.MaxEvents = 3

	for i := 0; i < 4; i++ {
		s.Log(world.CategoryAction, "", "batch %d", i)
		require.NoError(t, db.Save(ctx, s))
	}
	assert.Len(t, s.Events, 3)

	events, err := db.RecentEvents(ctx, s.WorldID, 10)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, "batch 3", events[0].Message)
	assert.Equal(t, world.CategorySystem, events[4].Category)

	tick, err := db.GetMeta(ctx, "last_tick")
	require.NoError(t, err)
	assert.Equal(t, "0", tick)
	id, err := db.GetMeta(ctx, "world_id")
	require.NoError(t, err)
	assert.Equal(t, s.WorldID, id)

	missing, err := db.GetMeta(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestDBPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.db")

	db, err := Open(path)
	require.NoError(t, err)
	s := newWorld(t)
	require.NoError(t, db.Save(ctx, s))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.WorldID, got.WorldID)
	assert.Equal(t, s.Seed, got.Seed)
}

func TestDBSaveOfNewWorldReplacesArchive(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	old := newWorld(t)
	old.Log(world.CategoryAction, "", "old news")
	require.NoError(t, db.Save(ctx, old))

	fresh := newWorld(t)
	require.NoError(t, db.Save(ctx, fresh))

	stale, err := db.RecentEvents(ctx, old.WorldID, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
	kept, err := db.RecentEvents(ctx, fresh.WorldID, 10)
	require.NoError(t, err)
	assert.Len(t, kept, len(fresh.Events))

	id, err := db.GetMeta(ctx, "world_id")
	require.NoError(t, err)
	assert.Equal(t, fresh.WorldID, id)
}
