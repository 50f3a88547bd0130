package inventory

import (
	"errors"
	"fmt"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/kamstrup/intmap"
	"github.com/zyedidia/generic/mapset"
)

// DefaultCellSize is the world-space edge length of a cell when none is configured.
const DefaultCellSize = 50.0

var (
	ErrNilInstance     = errors.New("inventory: nil instance")
	ErrNilShape        = errors.New("inventory: nil shape")
	ErrInvalidShape    = errors.New("inventory: invalid shape")
	ErrAlreadyPlaced   = errors.New("inventory: instance already placed")
	ErrNotPlaced       = errors.New("inventory: instance not placed")
	ErrForeignInstance = errors.New("inventory: instance belongs to another container")
	ErrUnknownItem     = errors.New("inventory: unknown item")
	ErrNoRegistry      = errors.New("inventory: registry required")
)

// Option configures container construction.
type Option func(*options)

type options struct {
	cellSize  float64
	origin    grid.Vec2
	mask      *Mask
	registry  *Registry
	observers []Observer
}

// WithCellSize sets the world-space size of one cell.
func WithCellSize(size float64) Option {
	return func(o *options) { o.cellSize = size }
}

// WithOrigin sets the world-space position of cell (0,0)'s lower-left corner.
func WithOrigin(origin grid.Vec2) Option {
	return func(o *options) { o.origin = origin }
}

// WithMask carves an irregular footprint out of the rectangular grid.
func WithMask(m *Mask) Option {
	return func(o *options) { o.mask = m }
}

// WithRegistry attaches an item registry used to resolve shapes by ItemID.
func WithRegistry(reg *Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithObserver subscribes fn to cell changes from construction on.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observers = append(o.observers, fn) }
}

// Container is one grid of cells together with the instances placed on it.
// A Container is not safe for concurrent use; each one is owned by a single
// coordinating goroutine.
type Container struct {
	id       string
	grid     *grid.Grid[*Cell]
	mask     *Mask
	registry *Registry

	// placed instances, keyed by id, and their placement order
	instances *intmap.Map[InstanceID, *PlacedInstance]
	order     []InstanceID
	nextID    InstanceID

	observers []subscription
	nextSubID uint64
}

// NewContainer creates a width x height container.
func NewContainer(id string, width, height int, opts ...Option) (*Container, error) {
	o := options{cellSize: DefaultCellSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	g, err := grid.New(width, height, o.cellSize, o.origin, func(_ *grid.Grid[*Cell], x, y int) *Cell {
		return &Cell{X: x, Y: y, Usable: o.mask.Usable(x, y)}
	})
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", id, err)
	}
	c := &Container{
		id:        id,
		grid:      g,
		mask:      o.mask,
		registry:  o.registry,
		instances: intmap.New[InstanceID, *PlacedInstance](width * height),
	}
	for _, fn := range o.observers {
		c.Subscribe(fn)
	}
	return c, nil
}

func (c *Container) ID() string                { return c.id }
func (c *Container) Grid() *grid.Grid[*Cell]   { return c.grid }
func (c *Container) Mask() *Mask               { return c.mask }
func (c *Container) Registry() *Registry       { return c.registry }
func (c *Container) SetRegistry(reg *Registry) { c.registry = reg }

// Len returns the number of placed instances.
func (c *Container) Len() int { return len(c.order) }

func (c *Container) cell(p grid.Point) *Cell {
	if !c.grid.InBounds(p.X, p.Y) {
		return nil
	}
	v, _ := c.grid.Get(p.X, p.Y)
	return v
}

// ValidateShape rejects shapes whose explicit cells repeat an offset.
func ValidateShape(s Shape) error {
	if len(s.Cells) == 0 {
		return nil
	}
	seen := mapset.New[grid.Point]()
	for _, p := range s.Cells {
		if seen.Has(p) {
			return fmt.Errorf("%w: duplicate cell %s", ErrInvalidShape, p)
		}
		seen.Put(p)
	}
	return nil
}

// NewInstance creates an unplaced instance of item with the given shape.
func (c *Container) NewInstance(item ItemID, shape *Shape) (*PlacedInstance, error) {
	if shape == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNilShape, item)
	}
	if err := ValidateShape(*shape); err != nil {
		return nil, fmt.Errorf("item %s: %w", item, err)
	}
	c.nextID++
	return &PlacedInstance{
		id:    c.nextID,
		item:  item,
		shape: shape,
		owner: c,
		state: Unplaced,
	}, nil
}

// NewItem creates an unplaced instance whose shape is resolved from the
// attached registry.
func (c *Container) NewItem(item ItemID) (*PlacedInstance, error) {
	if c.registry == nil {
		return nil, ErrNoRegistry
	}
	shape, ok := c.registry.ShapeFor(item)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}
	return c.NewInstance(item, shape)
}

// CanPlace reports whether cells may be claimed. Every cell must be in
// bounds, usable under the mask, and free or held by moving. The first
// failing cell, in list order, is reported. CanPlace never mutates state.
func (c *Container) CanPlace(cells []grid.Point, moving *PlacedInstance) Verdict {
	for _, p := range cells {
		cell := c.cell(p)
		if cell == nil {
			return Verdict{Reason: ReasonOutOfBounds, Cell: p}
		}
		if !cell.Usable {
			return Verdict{Reason: ReasonMasked, Cell: p}
		}
		if cell.Occupant != nil && cell.Occupant != moving {
			return Verdict{Reason: ReasonOccupied, Cell: p, Blocker: cell.Occupant.id}
		}
	}
	return Verdict{Reason: ReasonOK}
}

// Check validates placing inst at anchor/o without committing. A placed inst
// does not block itself, so a drag preview over its own cells is legal.
func (c *Container) Check(inst *PlacedInstance, anchor grid.Point, o Orientation) (Verdict, error) {
	if err := c.own(inst); err != nil {
		return Verdict{}, err
	}
	return c.CanPlace(Transform(*inst.shape, o, anchor), inst), nil
}

func (c *Container) own(inst *PlacedInstance) error {
	if inst == nil {
		return ErrNilInstance
	}
	if inst.owner != c {
		return fmt.Errorf("%w: #%d not from %s", ErrForeignInstance, inst.id, c.id)
	}
	if inst.shape == nil {
		return fmt.Errorf("%w: #%d", ErrNilShape, inst.id)
	}
	return nil
}

// Place claims the cells of inst rotated by o and anchored at anchor. The
// cells are validated immediately before mutation; on any failure no cell is
// touched and the verdict says why. On success each claimed cell is reported
// to observers in transform order. The returned error is only set for misuse.
func (c *Container) Place(inst *PlacedInstance, anchor grid.Point, o Orientation) (Verdict, error) {
	if err := c.own(inst); err != nil {
		return Verdict{}, err
	}
	if inst.state == Placed {
		return Verdict{}, fmt.Errorf("%w: #%d", ErrAlreadyPlaced, inst.id)
	}
	o = o.Normalize()
	cells := Transform(*inst.shape, o, anchor)
	if v := c.CanPlace(cells, nil); !v.OK() {
		return v, nil
	}
	for _, p := range cells {
		c.cell(p).Occupant = inst
	}
	inst.cells = cells
	inst.anchor = anchor
	inst.orientation = o
	inst.state = Placed
	c.instances.Put(inst.id, inst)
	c.order = append(c.order, inst.id)
	for _, p := range cells {
		c.emit(CellClaimed, p, inst)
	}
	return Verdict{Reason: ReasonOK}, nil
}

// Remove frees the cells inst claimed when it was placed. The stored cell
// list is used as-is, so later edits to the shape cannot misdirect the clear.
func (c *Container) Remove(inst *PlacedInstance) error {
	if inst == nil {
		return ErrNilInstance
	}
	if inst.owner != c {
		return fmt.Errorf("%w: #%d not from %s", ErrForeignInstance, inst.id, c.id)
	}
	if inst.state != Placed {
		return fmt.Errorf("%w: #%d", ErrNotPlaced, inst.id)
	}
	cells := inst.cells
	for _, p := range cells {
		if cell := c.cell(p); cell != nil && cell.Occupant == inst {
			cell.Occupant = nil
		}
	}
	inst.cells = nil
	inst.state = Unplaced
	c.instances.Del(inst.id)
	for i, id := range c.order {
		if id == inst.id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	for _, p := range cells {
		c.emit(CellFreed, p, inst)
	}
	return nil
}

// InstanceAt returns the instance occupying (x, y), if any.
func (c *Container) InstanceAt(x, y int) (*PlacedInstance, bool) {
	cell := c.cell(grid.Point{X: x, Y: y})
	if cell == nil || cell.Occupant == nil {
		return nil, false
	}
	return cell.Occupant, true
}

// RemoveAt removes whatever instance occupies (x, y).
func (c *Container) RemoveAt(x, y int) (*PlacedInstance, bool) {
	inst, ok := c.InstanceAt(x, y)
	if !ok {
		return nil, false
	}
	if err := c.Remove(inst); err != nil {
		return nil, false
	}
	return inst, true
}

// Instance looks up a placed instance by id.
func (c *Container) Instance(id InstanceID) (*PlacedInstance, bool) {
	return c.instances.Get(id)
}

// Instances returns the placed instances in placement order.
func (c *Container) Instances() []*PlacedInstance {
	out := make([]*PlacedInstance, 0, len(c.order))
	for _, id := range c.order {
		if inst, ok := c.instances.Get(id); ok {
			out = append(out, inst)
		}
	}
	return out
}

// Clear removes every placed instance, newest first.
func (c *Container) Clear() {
	for i := len(c.order) - 1; i >= 0; i-- {
		if inst, ok := c.instances.Get(c.order[i]); ok {
			_ = c.Remove(inst)
		}
	}
}

// FindFirstFit scans the grid row by row from the origin and returns the
// first anchor where shape fits at orientation o.
func (c *Container) FindFirstFit(shape Shape, o Orientation) (grid.Point, bool) {
	w, h := Bounds(shape, o)
	for y := 0; y <= c.grid.Height()-h; y++ {
		for x := 0; x <= c.grid.Width()-w; x++ {
			p := grid.Point{X: x, Y: y}
			if c.CanPlace(Transform(shape, o, p), nil).OK() {
				return p, true
			}
		}
	}
	return grid.Point{}, false
}

// AutoPlace places inst at the first fit, trying preferred first and then
// the remaining orientations clockwise from Rot0. The verdict is Occupied when
// no anchor in any orientation fits.
func (c *Container) AutoPlace(inst *PlacedInstance, preferred Orientation) (Verdict, error) {
	if err := c.own(inst); err != nil {
		return Verdict{}, err
	}
	for _, o := range orientationOrder(preferred) {
		if p, ok := c.FindFirstFit(*inst.shape, o); ok {
			return c.Place(inst, p, o)
		}
	}
	return Verdict{Reason: ReasonOccupied}, nil
}

func orientationOrder(preferred Orientation) []Orientation {
	preferred = preferred.Normalize()
	order := make([]Orientation, 0, 4)
	order = append(order, preferred)
	for o := Rot0; o <= Rot270; o++ {
		if o != preferred {
			order = append(order, o)
		}
	}
	return order
}

// Occupied returns the set of currently claimed cells.
func (c *Container) Occupied() mapset.Set[grid.Point] {
	set := mapset.New[grid.Point]()
	for _, inst := range c.Instances() {
		for _, p := range inst.cells {
			set.Put(p)
		}
	}
	return set
}

// FreeCells counts usable cells without an occupant.
func (c *Container) FreeCells() int {
	n := 0
	c.grid.Each(func(_, _ int, cell *Cell) {
		if cell.Free() {
			n++
		}
	})
	return n
}
