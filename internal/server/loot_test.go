package server

import (
	"context"
	"testing"

	"github.com/gravitas-games/lanternbound/internal/config"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(c *inventory.Container) []inventory.ItemID {
	out := []inventory.ItemID{}
	for _, inst := range c.Instances() {
		out = append(out, inst.Item())
	}
	return out
}

// seedLoot stores a loot source holding the given items, placed first fit.
func seedLoot(t *testing.T, store savestore.Store, source string, contents ...inventory.ItemID) {
	t.Helper()
	ctx := context.Background()
	ws, err := NewWorkspace("seeder", config.Default(), inventory.SampleRegistry(), store)
	require.NoError(t, err)
	_, err = ws.OpenLoot(ctx, source, false)
	require.NoError(t, err)
	for _, item := range contents {
		_, v, err := ws.AutoPlace(ws.LootContainer(), item, inventory.Rot0)
		require.NoError(t, err)
		require.True(t, v.OK(), "seed %s: %s", item, v)
	}
	_, err = ws.CommitLoot(ctx)
	require.NoError(t, err)
}

func TestWorkspaceLootCommit(t *testing.T) {
	ctx := context.Background()
	store := savestore.NewMemory()
	ws := newTestWorkspace(t, store)
	assert.Equal(t, "ground", ws.LootContainer())
	mustPlace(t, ws, "ground", "charcoal", inventory.Rot0, at(0, 0))

	report, err := ws.OpenLoot(ctx, "crate-1", false)
	require.NoError(t, err)
	assert.Zero(t, report.Restored)
	src, ok := ws.LootSource()
	require.True(t, ok)
	assert.Equal(t, "crate-1", src)

	ground, _ := ws.Container("ground")
	assert.Zero(t, ground.Len())
	mustPlace(t, ws, "ground", "hand-axe", inventory.Rot0, at(3, 0))

	// saving while the source is open writes the source, not the player
	_, err = ws.Save(ctx, "ground")
	require.NoError(t, err)
	ok, err = store.Exists(ctx, savestore.LootKey("crate-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := ws.CommitLoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "crate-1", res.Source)
	assert.Equal(t, 1, res.Items)
	assert.False(t, res.Destroyed)
	_, ok = ws.LootSource()
	assert.False(t, ok)

	// the player's own ground is back
	assert.Equal(t, []inventory.ItemID{"charcoal"}, items(ground))

	// another player sees the committed contents
	other, err := NewWorkspace("p2", config.Default(), inventory.SampleRegistry(), store)
	require.NoError(t, err)
	report, err = other.OpenLoot(ctx, "crate-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Restored)
	otherGround, _ := other.Container("ground")
	axe, ok := otherGround.InstanceAt(3, 0)
	require.True(t, ok)
	assert.Equal(t, inventory.ItemID("hand-axe"), axe.Item())

	_, err = ws.CommitLoot(ctx)
	assert.ErrorIs(t, err, ErrLootNotOpen)
}

func TestWorkspaceLootDestroyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := savestore.NewMemory()
	seedLoot(t, store, "corpse", "charcoal")
	seedLoot(t, store, "chest", "charcoal")

	ws := newTestWorkspace(t, store)
	_, err := ws.OpenLoot(ctx, "corpse", true)
	require.NoError(t, err)
	ground, _ := ws.Container("ground")
	require.Equal(t, 1, ground.Len())
	_, ok := ground.RemoveAt(0, 0)
	require.True(t, ok)

	res, err := ws.CommitLoot(ctx)
	require.NoError(t, err)
	assert.True(t, res.Destroyed)
	assert.Zero(t, res.Items)
	ok, err = store.Exists(ctx, savestore.LootKey("corpse"))
	require.NoError(t, err)
	assert.False(t, ok)

	// a source without the flag survives being emptied
	_, err = ws.OpenLoot(ctx, "chest", false)
	require.NoError(t, err)
	ground.Clear()
	res, err = ws.CommitLoot(ctx)
	require.NoError(t, err)
	assert.False(t, res.Destroyed)
	ok, err = store.Exists(ctx, savestore.LootKey("chest"))
	require.NoError(t, err)
	assert.True(t, ok)

	// a non-empty source is kept even with the flag
	seedLoot(t, store, "barrel", "whetstone")
	_, err = ws.OpenLoot(ctx, "barrel", true)
	require.NoError(t, err)
	res, err = ws.CommitLoot(ctx)
	require.NoError(t, err)
	assert.False(t, res.Destroyed)
	assert.Equal(t, 1, res.Items)
}

func TestWorkspaceOpenLootSwitchesSources(t *testing.T) {
	ctx := context.Background()
	store := savestore.NewMemory()
	seedLoot(t, store, "a", "charcoal")
	seedLoot(t, store, "b", "whetstone", "whetstone")

	ws := newTestWorkspace(t, store)
	mustPlace(t, ws, "ground", "oil-flask", inventory.Rot0, at(8, 0))
	_, err := ws.OpenLoot(ctx, "a", false)
	require.NoError(t, err)
	mustPlace(t, ws, "ground", "hand-axe", inventory.Rot0, at(4, 0))

	report, err := ws.OpenLoot(ctx, "b", false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Restored)
	ground, _ := ws.Container("ground")
	assert.Equal(t, []inventory.ItemID{"whetstone", "whetstone"}, items(ground))

	_, err = ws.CommitLoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []inventory.ItemID{"oil-flask"}, items(ground))

	// the switch committed a
	_, err = ws.OpenLoot(ctx, "a", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []inventory.ItemID{"charcoal", "hand-axe"}, items(ground))

	_, err = ws.OpenLoot(ctx, "", false)
	assert.ErrorIs(t, err, ErrNoLootSource)
}

func TestWorkspaceMergeLoot(t *testing.T) {
	ctx := context.Background()
	store := savestore.NewMemory()
	seedLoot(t, store, "crate", "charcoal")

	ws := newTestWorkspace(t, store)
	mustPlace(t, ws, "loadout", "whetstone", inventory.Rot0, at(0, 0))
	mustPlace(t, ws, "loadout", "firestarter-soles", inventory.Rot0, at(3, 0))

	res, err := ws.MergeLoot(ctx, "loadout", "crate")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 2, res.Merged)
	assert.Equal(t, 1, res.Relocated)
	loadout, _ := ws.Container("loadout")
	assert.Zero(t, loadout.Len())

	// the crate kept its charcoal; the whetstone found the next free cell
	_, err = ws.OpenLoot(ctx, "crate", false)
	require.NoError(t, err)
	ground, _ := ws.Container("ground")
	assert.Equal(t, 3, ground.Len())
	coal, ok := ground.InstanceAt(0, 0)
	require.True(t, ok)
	assert.Equal(t, inventory.ItemID("charcoal"), coal.Item())
	stone, ok := ground.InstanceAt(1, 0)
	require.True(t, ok)
	assert.Equal(t, inventory.ItemID("whetstone"), stone.Item())
	soles, ok := ground.InstanceAt(3, 0)
	require.True(t, ok)
	assert.Equal(t, grid.Point{X: 3, Y: 0}, soles.Anchor())

	// merging into the open source is refused
	mustPlace(t, ws, "loadout", "whetstone", inventory.Rot0, at(0, 0))
	_, err = ws.MergeLoot(ctx, "loadout", "crate")
	assert.ErrorIs(t, err, ErrLootOpen)
	_, err = ws.CommitLoot(ctx)
	require.NoError(t, err)

	// a new target is created
	res, err = ws.MergeLoot(ctx, "loadout", "pile")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.Merged)
	ok, err = store.Exists(ctx, savestore.LootKey("pile"))
	require.NoError(t, err)
	assert.True(t, ok)

	// nothing to drop is a no-op
	res, err = ws.MergeLoot(ctx, "loadout", "empty")
	require.NoError(t, err)
	assert.Zero(t, res.Merged)
	ok, err = store.Exists(ctx, savestore.LootKey("empty"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ws.MergeLoot(ctx, "attic", "pile")
	assert.ErrorIs(t, err, ErrUnknownContainer)
	_, err = ws.MergeLoot(ctx, "loadout", "")
	assert.ErrorIs(t, err, ErrNoLootSource)
}

func TestWorkspaceMergeLootFull(t *testing.T) {
	ctx := context.Background()
	store := savestore.NewMemory()
	full := make([]inventory.ItemID, 9*3)
	for i := range full {
		full[i] = "charcoal"
	}
	seedLoot(t, store, "crate", full...)
	before, err := store.Load(ctx, savestore.LootKey("crate"))
	require.NoError(t, err)

	ws := newTestWorkspace(t, store)
	mustPlace(t, ws, "loadout", "whetstone", inventory.Rot0, at(2, 0))

	_, err = ws.MergeLoot(ctx, "loadout", "crate")
	assert.ErrorIs(t, err, ErrLootFull)

	loadout, _ := ws.Container("loadout")
	assert.Equal(t, 1, loadout.Len())
	after, err := store.Load(ctx, savestore.LootKey("crate"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWorkspaceLootDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Inventory.LootContainer = ""
	ws, err := NewWorkspace("p1", cfg, inventory.SampleRegistry(), savestore.NewMemory())
	require.NoError(t, err)

	_, err = ws.OpenLoot(context.Background(), "crate", false)
	assert.ErrorIs(t, err, ErrLootDisabled)
	_, err = ws.MergeLoot(context.Background(), "loadout", "crate")
	assert.ErrorIs(t, err, ErrLootDisabled)

	cfg.Inventory.LootContainer = "attic"
	_, err = NewWorkspace("p1", cfg, inventory.SampleRegistry(), savestore.NewMemory())
	assert.ErrorIs(t, err, ErrUnknownContainer)
}
