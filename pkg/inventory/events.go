package inventory

import "github.com/gravitas-games/lanternbound/pkg/grid"

// ChangeType represents the kind of cell change.
type ChangeType int

const (
	// CellClaimed is emitted for each cell marked by a successful Place.
	CellClaimed ChangeType = iota
	// CellFreed is emitted for each cell cleared by Remove.
	CellFreed
)

// String returns a human-readable representation of the change type.
func (t ChangeType) String() string {
	switch t {
	case CellClaimed:
		return "claimed"
	case CellFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// CellChanged describes one cell whose occupant changed.
type CellChanged struct {
	Container string     `json:"container"`
	Type      ChangeType `json:"type"`
	Cell      grid.Point `json:"cell"`
	Instance  InstanceID `json:"instance"`
	Item      ItemID     `json:"item"`
}

// Observer receives cell change notifications synchronously, in commit order.
type Observer func(CellChanged)

type subscription struct {
	id uint64
	fn Observer
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Container) Subscribe(fn Observer) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.nextSubID++
	id := c.nextSubID
	c.observers = append(c.observers, subscription{id: id, fn: fn})
	return func() {
		for i, s := range c.observers {
			if s.id == id {
				c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// ChannelObserver forwards changes onto ch without blocking; changes are
// dropped when ch is full.
func ChannelObserver(ch chan<- CellChanged) Observer {
	return func(e CellChanged) {
		select {
		case ch <- e:
		default:
		}
	}
}

func (c *Container) emit(t ChangeType, p grid.Point, inst *PlacedInstance) {
	if len(c.observers) == 0 {
		return
	}
	e := CellChanged{Container: c.id, Type: t, Cell: p, Instance: inst.id, Item: inst.item}
	for _, s := range c.observers {
		s.fn(e)
	}
}
