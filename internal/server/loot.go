package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gravitas-games/lanternbound/internal/network"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
)

var (
	ErrLootDisabled = errors.New("no loot container configured")
	ErrNoLootSource = errors.New("loot source id required")
	ErrLootNotOpen  = errors.New("no loot source open")
	ErrLootOpen     = errors.New("loot source is open")
	ErrLootBusy     = errors.New("loot source in use by another player")
	ErrLootFull     = errors.New("loot source has no room")
)

// lootView is an external source currently shown in the loot container.
type lootView struct {
	source           string
	destroyWhenEmpty bool
}

// LootSource returns the open loot source, if any.
func (w *Workspace) LootSource() (string, bool) {
	if w.loot == nil {
		return "", false
	}
	return w.loot.source, true
}

// LootContainer returns the id of the container that shows loot sources.
func (w *Workspace) LootContainer() string { return w.lootSpec.ID }

// OpenLoot shows source in the loot container. A source that was never saved
// opens empty. Whatever was open before is committed first; otherwise the
// player's own contents of the loot container are saved and come back on
// commit.
func (w *Workspace) OpenLoot(ctx context.Context, source string, destroyWhenEmpty bool) (inventory.LoadReport, error) {
	if w.lootSpec.ID == "" {
		return inventory.LoadReport{}, ErrLootDisabled
	}
	if source == "" {
		return inventory.LoadReport{}, ErrNoLootSource
	}
	if w.loot != nil {
		if _, err := w.CommitLoot(ctx); err != nil {
			return inventory.LoadReport{}, err
		}
	} else if _, err := w.Save(ctx, w.lootSpec.ID); err != nil {
		return inventory.LoadReport{}, fmt.Errorf("stash %s: %w", w.lootSpec.ID, err)
	}

	c := w.containers[w.lootSpec.ID]
	data, err := w.store.Load(ctx, savestore.LootKey(source))
	var report inventory.LoadReport
	switch {
	case errors.Is(err, savestore.ErrNotFound):
		c.Clear()
	case err != nil:
		return report, err
	default:
		if report, err = c.DeserializeFromStorage(data); err != nil {
			return report, fmt.Errorf("loot %s: %w", source, err)
		}
	}
	w.loot = &lootView{source: source, destroyWhenEmpty: destroyWhenEmpty}
	return report, nil
}

// CommitLoot writes the loot container back to the open source and restores
// the player's own contents. An emptied source that was opened with
// destroyWhenEmpty is deleted instead.
func (w *Workspace) CommitLoot(ctx context.Context) (network.LootCommittedPayload, error) {
	if w.loot == nil {
		return network.LootCommittedPayload{}, ErrLootNotOpen
	}
	c := w.containers[w.lootSpec.ID]
	res := network.LootCommittedPayload{Source: w.loot.source, Items: c.Len()}
	if res.Items == 0 && w.loot.destroyWhenEmpty {
		if err := w.store.Delete(ctx, savestore.LootKey(w.loot.source)); err != nil {
			return res, err
		}
		res.Destroyed = true
	} else if _, err := w.Save(ctx, w.lootSpec.ID); err != nil {
		return res, err
	}
	w.loot = nil

	data, err := w.store.Load(ctx, w.key(w.lootSpec.ID))
	switch {
	case errors.Is(err, savestore.ErrNotFound):
		c.Clear()
	case err != nil:
		return res, fmt.Errorf("restore %s: %w", w.lootSpec.ID, err)
	default:
		if _, err := c.DeserializeFromStorage(data); err != nil {
			return res, fmt.Errorf("restore %s: %w", w.lootSpec.ID, err)
		}
	}
	return res, nil
}

// MergeLoot drops everything in container from into loot source target. A
// target that does not exist yet is created. An existing target keeps its
// contents: each dropped item goes to its current spot when free and is
// auto-placed otherwise. When anything does not fit, nothing changes and the
// error is ErrLootFull.
func (w *Workspace) MergeLoot(ctx context.Context, from, target string) (network.LootMergedPayload, error) {
	res := network.LootMergedPayload{From: from, Target: target}
	if w.lootSpec.ID == "" {
		return res, ErrLootDisabled
	}
	if target == "" {
		return res, ErrNoLootSource
	}
	if src, ok := w.LootSource(); ok && src == target {
		return res, fmt.Errorf("%w: %s", ErrLootOpen, target)
	}
	src, err := w.Container(from)
	if err != nil {
		return res, err
	}
	if src.Len() == 0 {
		return res, nil
	}

	box, err := w.build(w.lootSpec)
	if err != nil {
		return res, err
	}
	key := savestore.LootKey(target)
	data, err := w.store.Load(ctx, key)
	switch {
	case errors.Is(err, savestore.ErrNotFound):
		res.Created = true
	case err != nil:
		return res, err
	default:
		if _, err := box.DeserializeFromStorage(data); err != nil {
			return res, fmt.Errorf("loot %s: %w", target, err)
		}
	}

	report, err := box.Merge(src.Save())
	if err != nil {
		return res, err
	}
	res.Merged, res.Relocated = report.Restored, report.Relocated
	if len(report.Skipped) > 0 {
		return res, fmt.Errorf("%w: %s rejected %d of %d items", ErrLootFull, target, len(report.Skipped), src.Len())
	}
	if data, err = box.SerializeForStorage(); err != nil {
		return res, err
	}
	if err := w.store.Save(ctx, key, data); err != nil {
		return res, err
	}
	src.Clear()
	return res, nil
}
