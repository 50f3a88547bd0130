package inventory

import (
	"encoding/json"
	"fmt"

	"github.com/gravitas-games/lanternbound/pkg/grid"
)

// SaveEntry is the persisted form of one placed instance.
type SaveEntry struct {
	Item        ItemID      `json:"item"`
	Anchor      grid.Point  `json:"anchor"`
	Orientation Orientation `json:"orientation"`
}

// Snapshot is the ordered save list of a container: one entry per placed
// instance, in placement order.
type Snapshot struct {
	Container string      `json:"container,omitempty"`
	Entries   []SaveEntry `json:"entries"`
}

// StorageEntry replaces the ItemID with its numeric RegistryID.
type StorageEntry struct {
	Item        RegistryID  `json:"i"`
	Anchor      grid.Point  `json:"a"`
	Orientation Orientation `json:"o,omitempty"`
}

// StorageSnapshot is the compact storage form of a Snapshot.
type StorageSnapshot struct {
	Container string         `json:"c,omitempty"`
	Entries   []StorageEntry `json:"e"`
}

// Skipped records a save entry that Load could not restore.
type Skipped struct {
	Index      int       `json:"index"`
	Entry      SaveEntry `json:"entry"`
	Reason     string    `json:"reason"`
	Verdict    *Verdict  `json:"verdict,omitempty"`
	Suggestion ItemID    `json:"suggestion,omitempty"`
}

func (s Skipped) String() string {
	msg := fmt.Sprintf("entry %d (%s at %s rot %s): %s", s.Index, s.Entry.Item, s.Entry.Anchor, s.Entry.Orientation, s.Reason)
	if s.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s.Suggestion)
	}
	return msg
}

// LoadReport summarizes a best-effort Load.
type LoadReport struct {
	Restored  int       `json:"restored"`
	// Relocated counts restored entries that a merge had to auto-place away
	// from their saved spot.
	Relocated int       `json:"relocated,omitempty"`
	Skipped   []Skipped `json:"skipped,omitempty"`
}

// Save returns the container's ordered save list.
func (c *Container) Save() Snapshot {
	snap := Snapshot{Container: c.id, Entries: make([]SaveEntry, 0, len(c.order))}
	for _, inst := range c.Instances() {
		snap.Entries = append(snap.Entries, SaveEntry{
			Item:        inst.item,
			Anchor:      inst.anchor,
			Orientation: inst.orientation,
		})
	}
	return snap
}

// Load clears the container and replays snap in order. Entries whose item
// cannot be resolved or whose placement is no longer legal are skipped and
// reported; they never abort the load.
func (c *Container) Load(snap Snapshot) (LoadReport, error) {
	if c.registry == nil {
		return LoadReport{}, ErrNoRegistry
	}
	c.Clear()
	return c.replay(snap, false), nil
}

// Merge adds the entries of snap to the current contents without clearing.
// Each entry is tried at its saved anchor and orientation first; when that
// spot is taken it is auto-placed, preferring its saved orientation. Entries
// that fit nowhere are skipped.
func (c *Container) Merge(snap Snapshot) (LoadReport, error) {
	if c.registry == nil {
		return LoadReport{}, ErrNoRegistry
	}
	return c.replay(snap, true), nil
}

func (c *Container) replay(snap Snapshot, relocate bool) LoadReport {
	var report LoadReport
	for i, e := range snap.Entries {
		inst, err := c.NewItem(e.Item)
		if err != nil {
			sk := Skipped{Index: i, Entry: e, Reason: err.Error()}
			if s, ok := c.registry.Suggest(e.Item); ok {
				sk.Suggestion = s
			}
			report.Skipped = append(report.Skipped, sk)
			continue
		}
		v, err := c.Place(inst, e.Anchor, e.Orientation)
		if err == nil && !v.OK() && relocate {
			v, err = c.AutoPlace(inst, e.Orientation)
			if err == nil && v.OK() {
				report.Relocated++
			}
		}
		if err != nil {
			report.Skipped = append(report.Skipped, Skipped{Index: i, Entry: e, Reason: err.Error()})
			continue
		}
		if !v.OK() {
			verdict := v
			report.Skipped = append(report.Skipped, Skipped{Index: i, Entry: e, Reason: v.String(), Verdict: &verdict})
			continue
		}
		report.Restored++
	}
	return report
}

// MarshalSnapshot encodes a snapshot as JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	if s.Entries == nil {
		s.Entries = []SaveEntry{}
	}
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes JSON produced by MarshalSnapshot. Data that cannot
// be parsed at all is an error; the entries themselves are checked by Load.
func UnmarshalSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("inventory: corrupt save data: %w", err)
	}
	return s, nil
}

// Serialize encodes the container's save list as JSON.
func (c *Container) Serialize() ([]byte, error) {
	return MarshalSnapshot(c.Save())
}

// Deserialize replaces the container's contents with the JSON save list in b.
func (c *Container) Deserialize(b []byte) (LoadReport, error) {
	snap, err := UnmarshalSnapshot(b)
	if err != nil {
		return LoadReport{}, err
	}
	return c.Load(snap)
}

// SerializeForStorage encodes the save list using numeric RegistryIDs instead
// of ItemIDs. Requires a registry that knows every placed item.
func (c *Container) SerializeForStorage() ([]byte, error) {
	if c.registry == nil {
		return nil, ErrNoRegistry
	}
	snap := c.Save()
	ss := StorageSnapshot{Container: snap.Container, Entries: make([]StorageEntry, 0, len(snap.Entries))}
	for _, e := range snap.Entries {
		regID, ok := c.registry.GetRegistryID(e.Item)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, e.Item)
		}
		ss.Entries = append(ss.Entries, StorageEntry{Item: regID, Anchor: e.Anchor, Orientation: e.Orientation})
	}
	return json.Marshal(ss)
}

// DeserializeFromStorage is the inverse of SerializeForStorage. Unknown
// RegistryIDs are skipped like unknown ItemIDs.
func (c *Container) DeserializeFromStorage(b []byte) (LoadReport, error) {
	snap, err := c.fromStorage(b)
	if err != nil {
		return LoadReport{}, err
	}
	return c.Load(snap)
}

// MergeFromStorage merges storage-encoded data into the current contents.
func (c *Container) MergeFromStorage(b []byte) (LoadReport, error) {
	snap, err := c.fromStorage(b)
	if err != nil {
		return LoadReport{}, err
	}
	return c.Merge(snap)
}

func (c *Container) fromStorage(b []byte) (Snapshot, error) {
	if c.registry == nil {
		return Snapshot{}, ErrNoRegistry
	}
	var ss StorageSnapshot
	if err := json.Unmarshal(b, &ss); err != nil {
		return Snapshot{}, fmt.Errorf("inventory: corrupt storage data: %w", err)
	}
	snap := Snapshot{Container: ss.Container, Entries: make([]SaveEntry, 0, len(ss.Entries))}
	for _, e := range ss.Entries {
		item := ItemID(fmt.Sprintf("#%d", e.Item))
		if d, ok := c.registry.LookupByRegistryID(e.Item); ok {
			item = d.ID
		}
		snap.Entries = append(snap.Entries, SaveEntry{Item: item, Anchor: e.Anchor, Orientation: e.Orientation})
	}
	return snap, nil
}
