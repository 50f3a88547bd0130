package server

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gravitas-games/lanternbound/internal/config"
	"github.com/gravitas-games/lanternbound/internal/network"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
)

var (
	ErrUnknownContainer = errors.New("unknown container")
	ErrUnknownInstance  = errors.New("unknown instance")
	ErrNoTarget         = errors.New("placement needs an anchor or a world position")
)

// Workspace is one player's set of containers. It is not safe for concurrent
// use; the session loop is its only caller.
type Workspace struct {
	owner      string
	registry   *inventory.Registry
	store      savestore.Store
	bias       float64
	cellSize   float64
	containers map[string]*inventory.Container
	order      []string

	// the container that shows an opened loot source, and the open source
	lootSpec config.ContainerConfig
	loot     *lootView
}

// NewWorkspace builds the containers described by cfg for owner.
func NewWorkspace(owner string, cfg *config.Config, reg *inventory.Registry, store savestore.Store) (*Workspace, error) {
	ws := &Workspace{
		owner:      owner,
		registry:   reg,
		store:      store,
		bias:       cfg.Inventory.Bias(),
		cellSize:   cfg.Inventory.CellSize,
		containers: make(map[string]*inventory.Container, len(cfg.Inventory.Containers)),
	}
	if id := cfg.Inventory.LootContainer; id != "" {
		cc, ok := cfg.Inventory.Container(id)
		if !ok {
			return nil, fmt.Errorf("loot container: %w: %q", ErrUnknownContainer, id)
		}
		ws.lootSpec = cc
	}
	for _, cc := range cfg.Inventory.Containers {
		c, err := ws.build(cc)
		if err != nil {
			return nil, err
		}
		ws.containers[cc.ID] = c
		ws.order = append(ws.order, cc.ID)
	}
	return ws, nil
}

func (w *Workspace) build(cc config.ContainerConfig) (*inventory.Container, error) {
	width, height, err := cc.Size()
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", cc.ID, err)
	}
	mask, err := cc.Mask()
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", cc.ID, err)
	}
	return inventory.NewContainer(cc.ID, width, height,
		inventory.WithCellSize(w.cellSize),
		inventory.WithOrigin(cc.Origin),
		inventory.WithMask(mask),
		inventory.WithRegistry(w.registry),
	)
}

// Owner returns the id of the player the workspace belongs to.
func (w *Workspace) Owner() string { return w.owner }

// IDs returns the container ids in configuration order.
func (w *Workspace) IDs() []string {
	return append([]string(nil), w.order...)
}

// Container returns the container with the given id.
func (w *Workspace) Container(id string) (*inventory.Container, error) {
	c, ok := w.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContainer, id)
	}
	return c, nil
}

// snapAnchor converts a world position into the cell an item dropped there
// lands on. Positions within bias of the next cell boundary snap forward.
func snapAnchor[T any](g *grid.Grid[T], pos grid.Vec2, bias float64) grid.Point {
	o := g.Origin()
	s := g.CellSize()
	return grid.Point{
		X: int(math.Floor((pos.X-o.X)/s + bias)),
		Y: int(math.Floor((pos.Y-o.Y)/s + bias)),
	}
}

func (w *Workspace) resolve(c *inventory.Container, t network.Target) (grid.Point, error) {
	switch {
	case t.Anchor != nil:
		return *t.Anchor, nil
	case t.World != nil:
		return snapAnchor(c.Grid(), *t.World, w.bias), nil
	default:
		return grid.Point{}, ErrNoTarget
	}
}

// Place creates an instance of item and places it in container id. A
// non-OK verdict leaves the container untouched.
func (w *Workspace) Place(id string, item inventory.ItemID, o inventory.Orientation, t network.Target) (*inventory.PlacedInstance, inventory.Verdict, error) {
	c, err := w.Container(id)
	if err != nil {
		return nil, inventory.Verdict{}, err
	}
	anchor, err := w.resolve(c, t)
	if err != nil {
		return nil, inventory.Verdict{}, err
	}
	inst, err := c.NewItem(item)
	if err != nil {
		return nil, inventory.Verdict{}, w.unknownItem(item, err)
	}
	v, err := c.Place(inst, anchor, o)
	if err != nil {
		return nil, v, err
	}
	return inst, v, nil
}

// AutoPlace puts item at the first free spot of container id, trying
// orientation o before the others.
func (w *Workspace) AutoPlace(id string, item inventory.ItemID, o inventory.Orientation) (*inventory.PlacedInstance, inventory.Verdict, error) {
	c, err := w.Container(id)
	if err != nil {
		return nil, inventory.Verdict{}, err
	}
	inst, err := c.NewItem(item)
	if err != nil {
		return nil, inventory.Verdict{}, w.unknownItem(item, err)
	}
	v, err := c.AutoPlace(inst, o)
	if err != nil {
		return nil, v, err
	}
	return inst, v, nil
}

func (w *Workspace) unknownItem(item inventory.ItemID, err error) error {
	if s, ok := w.registry.Suggest(item); ok {
		return fmt.Errorf("%w (did you mean %q?)", err, s)
	}
	return err
}

// Move relocates instance id of container from to container to. Within one
// container the instance keeps its id; across containers the target creates
// a fresh instance of the same item. The destination is checked before
// anything is touched, and if the final placement still fails the instance
// is put back where it was.
func (w *Workspace) Move(from string, id inventory.InstanceID, to string, o inventory.Orientation, t network.Target) (*inventory.PlacedInstance, inventory.Verdict, error) {
	src, err := w.Container(from)
	if err != nil {
		return nil, inventory.Verdict{}, err
	}
	dst, err := w.Container(to)
	if err != nil {
		return nil, inventory.Verdict{}, err
	}
	inst, ok := src.Instance(id)
	if !ok {
		return nil, inventory.Verdict{}, fmt.Errorf("%w: #%d in %s", ErrUnknownInstance, id, from)
	}
	anchor, err := w.resolve(dst, t)
	if err != nil {
		return nil, inventory.Verdict{}, err
	}

	moved := inst
	if src == dst {
		v, err := src.Check(inst, anchor, o)
		if err != nil || !v.OK() {
			return nil, v, err
		}
	} else {
		if v := dst.CanPlace(inventory.Transform(*inst.Shape(), o, anchor), nil); !v.OK() {
			return nil, v, nil
		}
		moved, err = dst.NewInstance(inst.Item(), inst.Shape())
		if err != nil {
			return nil, inventory.Verdict{}, err
		}
	}

	prevAnchor, prevOrientation := inst.Anchor(), inst.Orientation()
	if err := src.Remove(inst); err != nil {
		return nil, inventory.Verdict{}, err
	}
	v, err := dst.Place(moved, anchor, o)
	if err == nil && v.OK() {
		return moved, v, nil
	}
	if _, rerr := src.Place(inst, prevAnchor, prevOrientation); rerr != nil {
		return nil, v, fmt.Errorf("restore #%d in %s: %w", inst.ID(), from, rerr)
	}
	return nil, v, err
}

// Remove takes instance id out of container id.
func (w *Workspace) Remove(container string, id inventory.InstanceID) (*inventory.PlacedInstance, error) {
	c, err := w.Container(container)
	if err != nil {
		return nil, err
	}
	inst, ok := c.Instance(id)
	if !ok {
		return nil, fmt.Errorf("%w: #%d in %s", ErrUnknownInstance, id, container)
	}
	if err := c.Remove(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Preview describes item's footprint at o. With a container and target it
// also validates the drop, ignoring the cells of the moving instance.
func (w *Workspace) Preview(p network.PreviewPayload) (network.PreviewResultPayload, error) {
	shape, ok := w.registry.ShapeFor(p.Item)
	if !ok {
		return network.PreviewResultPayload{}, w.unknownItem(p.Item, fmt.Errorf("%w: %s", inventory.ErrUnknownItem, p.Item))
	}
	o := p.Orientation.Normalize()
	width, height := inventory.Bounds(*shape, o)
	res := network.PreviewResultPayload{
		Item:        p.Item,
		Orientation: o,
		Width:       width,
		Height:      height,
		Cells:       inventory.Transform(*shape, o, grid.Point{}),
	}
	if p.Container == "" {
		return res, nil
	}
	c, err := w.Container(p.Container)
	if err != nil {
		return res, err
	}
	anchor, err := w.resolve(c, p.Target)
	if err != nil {
		return res, err
	}
	var moving *inventory.PlacedInstance
	if p.Moving != 0 {
		if moving, ok = c.Instance(p.Moving); !ok {
			return res, fmt.Errorf("%w: #%d in %s", ErrUnknownInstance, p.Moving, p.Container)
		}
	}
	res.Cells = inventory.Transform(*shape, o, anchor)
	v := c.CanPlace(res.Cells, moving)
	res.Verdict = &v
	return res, nil
}

// key is where container id is saved. While a loot source is open the loot
// container saves to the source instead of the player.
func (w *Workspace) key(id string) savestore.Key {
	if w.loot != nil && id == w.lootSpec.ID {
		return savestore.LootKey(w.loot.source)
	}
	return savestore.Key{Player: w.owner, Container: id}
}

// Save writes container id to the store.
func (w *Workspace) Save(ctx context.Context, id string) (int, error) {
	c, err := w.Container(id)
	if err != nil {
		return 0, err
	}
	data, err := c.SerializeForStorage()
	if err != nil {
		return 0, err
	}
	if err := w.store.Save(ctx, w.key(id), data); err != nil {
		return 0, err
	}
	return c.Len(), nil
}

// Load replaces container id with its stored save.
func (w *Workspace) Load(ctx context.Context, id string) (inventory.LoadReport, error) {
	c, err := w.Container(id)
	if err != nil {
		return inventory.LoadReport{}, err
	}
	data, err := w.store.Load(ctx, w.key(id))
	if err != nil {
		return inventory.LoadReport{}, err
	}
	return c.DeserializeFromStorage(data)
}

// SaveAll saves every container, stopping at the first error.
func (w *Workspace) SaveAll(ctx context.Context) error {
	for _, id := range w.order {
		if _, err := w.Save(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll restores every container that has a save. Containers without one
// are left as they are.
func (w *Workspace) LoadAll(ctx context.Context) (map[string]inventory.LoadReport, error) {
	reports := make(map[string]inventory.LoadReport)
	for _, id := range w.order {
		r, err := w.Load(ctx, id)
		if errors.Is(err, savestore.ErrNotFound) {
			continue
		}
		if err != nil {
			return reports, err
		}
		reports[id] = r
	}
	return reports, nil
}

// Subscribe attaches fn to every container and returns a function that
// detaches it again.
func (w *Workspace) Subscribe(fn inventory.Observer) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(w.order))
	for _, id := range w.order {
		unsubs = append(unsubs, w.containers[id].Subscribe(fn))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func containerInfo(c *inventory.Container) network.ContainerInfo {
	g := c.Grid()
	return network.ContainerInfo{
		ID:       c.ID(),
		Width:    g.Width(),
		Height:   g.Height(),
		CellSize: g.CellSize(),
		Origin:   g.Origin(),
		Rows:     c.Mask().Spans(),
	}
}

func instanceInfo(inst *inventory.PlacedInstance) network.InstanceInfo {
	return network.InstanceInfo{
		ID:          inst.ID(),
		Item:        inst.Item(),
		Anchor:      inst.Anchor(),
		Orientation: inst.Orientation(),
		Cells:       inst.Cells(),
	}
}

// Infos describes every container in configuration order.
func (w *Workspace) Infos() []network.ContainerInfo {
	out := make([]network.ContainerInfo, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, containerInfo(w.containers[id]))
	}
	return out
}

// Snapshot returns the full state of container id.
func (w *Workspace) Snapshot(id string) (network.SnapshotPayload, error) {
	c, err := w.Container(id)
	if err != nil {
		return network.SnapshotPayload{}, err
	}
	snap := network.SnapshotPayload{Container: containerInfo(c), Instances: []network.InstanceInfo{}}
	for _, inst := range c.Instances() {
		snap.Instances = append(snap.Instances, instanceInfo(inst))
	}
	return snap, nil
}
