package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// ItemDetails captures the metadata of an item type: its canonical shape and
// the descriptive fields clients display.
type ItemDetails struct {
	ID          ItemID            `json:"id" yaml:"id"`
	NumericID   RegistryID        `json:"numericId,omitempty" yaml:"numeric_id,omitempty"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Category    string            `json:"category,omitempty" yaml:"category,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Weapon      bool              `json:"weapon,omitempty" yaml:"weapon,omitempty"`
	Shape       Shape             `json:"shape" yaml:"shape"`
	Attributes  map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// clone copies d deeply enough that the result shares no slice or map with
// the original.
func (d ItemDetails) clone() ItemDetails {
	d.Shape.Cells = append(d.Shape.Cells[:0:0], d.Shape.Cells...)
	if d.Attributes != nil {
		attrs := make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			attrs[k] = v
		}
		d.Attributes = attrs
	}
	return d
}

// Registry stores item details keyed by ItemID and provides numeric handles for
// compact storage. It is shared between containers and safe for concurrent reads.
type Registry struct {
	mu     sync.RWMutex
	items  map[ItemID]*ItemDetails
	byID   map[RegistryID]ItemID
	nextID RegistryID
}

// NewRegistry constructs a registry seeded with the given details.
// Invalid or conflicting seeds are ignored.
func NewRegistry(details ...ItemDetails) *Registry {
	r := &Registry{
		items: make(map[ItemID]*ItemDetails, len(details)),
		byID:  make(map[RegistryID]ItemID, len(details)),
	}
	for _, d := range details {
		_ = r.Register(d)
	}
	return r
}

// Register inserts or updates metadata for an item. The ID must be non-empty
// and the shape must not repeat cells.
func (r *Registry) Register(details ItemDetails) error {
	if details.ID == "" {
		return errors.New("inventory: item details missing id")
	}
	if err := ValidateShape(details.Shape); err != nil {
		return fmt.Errorf("item %s: %w", details.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.items[details.ID]
	if exists {
		if details.NumericID == 0 {
			details.NumericID = existing.NumericID
		} else if existing.NumericID != details.NumericID {
			return fmt.Errorf("inventory: numeric id mismatch for %s", details.ID)
		}
	}

	if details.NumericID == 0 {
		r.nextID++
		details.NumericID = r.nextID
	} else {
		if details.NumericID < 0 {
			return errors.New("inventory: numeric id must be positive")
		}
		if owner, collision := r.byID[details.NumericID]; collision && owner != details.ID {
			return fmt.Errorf("inventory: numeric id %d already assigned to %s", details.NumericID, owner)
		}
		if details.NumericID > r.nextID {
			r.nextID = details.NumericID
		}
	}

	// callers cannot reshape a registered item behind the registry's back
	details = details.clone()
	r.items[details.ID] = &details
	r.byID[details.NumericID] = details.ID
	return nil
}

// Lookup returns details for the provided ID, if present.
func (r *Registry) Lookup(id ItemID) (ItemDetails, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return ItemDetails{}, false
	}
	return d.clone(), true
}

// ShapeFor returns the canonical shape registered for id. Instances created
// from it share the pointer.
func (r *Registry) ShapeFor(id ItemID) (*Shape, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, false
	}
	return &d.Shape, true
}

// GetRegistryID returns the numeric registry identifier for the provided item.
func (r *Registry) GetRegistryID(id ItemID) (RegistryID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return 0, false
	}
	return d.NumericID, true
}

// LookupByRegistryID returns item details using the numeric registry ID.
func (r *Registry) LookupByRegistryID(id RegistryID) (ItemDetails, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byID[id]
	if !ok {
		return ItemDetails{}, false
	}
	d, exists := r.items[key]
	if !exists {
		return ItemDetails{}, false
	}
	return d.clone(), true
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Export copies registry contents into a slice sorted by numeric id.
func (r *Registry) Export() []ItemDetails {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return nil
	}
	out := make([]ItemDetails, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumericID < out[j].NumericID })
	return out
}

// Suggest returns the registered id closest to an unknown one, for "did you
// mean" diagnostics. The allowed edit distance grows with the id length.
func (r *Registry) Suggest(id ItemID) (ItemID, bool) {
	if r == nil || id == "" {
		return "", false
	}
	needle := strings.ToLower(string(id))
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best ItemID
	bestDist := -1
	for known := range r.items {
		cand := strings.ToLower(string(known))
		dist := levenshtein.ComputeDistance(needle, cand)
		if dist > suggestLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && known < best) {
			best, bestDist = known, dist
		}
	}
	return best, bestDist >= 0
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
