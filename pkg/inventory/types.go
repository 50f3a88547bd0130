package inventory

// Package inventory implements polyomino placement on fixed grids. It owns
// shape rotation, row masks for irregular container silhouettes, placement
// validation and the commit/remove bookkeeping for placed items. It has no
// knowledge of rendering, input or item effects.

import (
	"fmt"

	"github.com/gravitas-games/lanternbound/pkg/grid"
)

// ItemID represents an application-defined identifier for an item type.
// The inventory system does not interpret this value.
type ItemID string

// RegistryID is a numeric handle suitable for compact storage.
// IDs start at 1 and increment as new items are registered unless explicitly
// provided via ItemDetails.NumericID.
type RegistryID int64

// InstanceID identifies a placed instance within the container that created it.
// IDs are never reused by a container.
type InstanceID uint64

// Shape describes a footprint as a set of cell offsets relative to (0,0) in the
// base (unrotated) orientation. For rectangular items, Width x Height may be
// provided and Cells left empty. If Cells is non-empty it takes precedence.
type Shape struct {
	Width  int          `json:"width,omitempty" yaml:"width,omitempty"`
	Height int          `json:"height,omitempty" yaml:"height,omitempty"`
	Cells  []grid.Point `json:"cells,omitempty" yaml:"cells,omitempty"`
}

// Orientation is one of four 90 degree rotation steps.
type Orientation int

const (
	Rot0 Orientation = iota
	Rot90
	Rot180
	Rot270
)

// Normalize reduces o into the range [0,3].
func (o Orientation) Normalize() Orientation {
	n := o % 4
	if n < 0 {
		n += 4
	}
	return n
}

// Next returns the orientation one step clockwise.
func (o Orientation) Next() Orientation { return (o.Normalize() + 1) % 4 }

// Prev returns the orientation one step counter-clockwise.
func (o Orientation) Prev() Orientation { return (o.Normalize() + 3) % 4 }

func (o Orientation) String() string {
	switch o.Normalize() {
	case Rot90:
		return "90"
	case Rot180:
		return "180"
	case Rot270:
		return "270"
	default:
		return "0"
	}
}

// Reason classifies the outcome of a placement check.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonOutOfBounds
	ReasonMasked
	ReasonOccupied
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonOutOfBounds:
		return "out_of_bounds"
	case ReasonMasked:
		return "masked"
	case ReasonOccupied:
		return "occupied"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText decodes a reason name produced by MarshalText.
func (r *Reason) UnmarshalText(b []byte) error {
	for _, c := range []Reason{ReasonOK, ReasonOutOfBounds, ReasonMasked, ReasonOccupied} {
		if c.String() == string(b) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("inventory: unknown reason %q", b)
}

// Verdict is the result of validating a cell set. For a failure, Cell is the
// first offending cell and Blocker the instance occupying it (Occupied only).
type Verdict struct {
	Reason  Reason     `json:"reason"`
	Cell    grid.Point `json:"cell"`
	Blocker InstanceID `json:"blocker,omitempty"`
}

// OK reports whether the placement is legal.
func (v Verdict) OK() bool { return v.Reason == ReasonOK }

func (v Verdict) String() string {
	if v.OK() {
		return "ok"
	}
	if v.Reason == ReasonOccupied {
		return fmt.Sprintf("%s at %s by #%d", v.Reason, v.Cell, v.Blocker)
	}
	return fmt.Sprintf("%s at %s", v.Reason, v.Cell)
}

// State is the lifecycle state of a PlacedInstance.
type State int

const (
	Unplaced State = iota
	Placed
)

// PlacedInstance is one item occupying cells of a container. Its claimed
// cells are cached at placement time and are only replaced by a full
// Remove + Place cycle.
type PlacedInstance struct {
	id          InstanceID
	item        ItemID
	shape       *Shape
	owner       *Container
	state       State
	anchor      grid.Point
	orientation Orientation
	cells       []grid.Point
}

func (p *PlacedInstance) ID() InstanceID           { return p.id }
func (p *PlacedInstance) Item() ItemID             { return p.item }
func (p *PlacedInstance) Shape() *Shape            { return p.shape }
func (p *PlacedInstance) State() State             { return p.state }
func (p *PlacedInstance) Anchor() grid.Point       { return p.anchor }
func (p *PlacedInstance) Orientation() Orientation { return p.orientation }

// Cells returns a copy of the claimed cells, or nil when unplaced.
func (p *PlacedInstance) Cells() []grid.Point {
	if p.state != Placed {
		return nil
	}
	out := make([]grid.Point, len(p.cells))
	copy(out, p.cells)
	return out
}

// Cell is the per-cell payload stored in a container's grid.
type Cell struct {
	X, Y     int
	Usable   bool
	Occupant *PlacedInstance
}

// Free reports whether the cell is usable and unclaimed.
func (c *Cell) Free() bool { return c.Usable && c.Occupant == nil }
