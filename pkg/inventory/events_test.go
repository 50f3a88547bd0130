package inventory_test

import (
	"testing"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserversSeeEveryCellInOrder(t *testing.T) {
	var got []inventory.CellChanged
	c := newContainer(t, 5, 5, inventory.WithObserver(func(e inventory.CellChanged) {
		got = append(got, e)
	}))
	l := &inventory.Shape{Cells: []grid.Point{pt(0, 0), pt(0, 1), pt(1, 1)}}

	inst := place(t, c, l, pt(1, 1), inventory.Rot90)
	require.Len(t, got, 3)
	for i, p := range inst.Cells() {
		assert.Equal(t, inventory.CellClaimed, got[i].Type)
		assert.Equal(t, p, got[i].Cell)
		assert.Equal(t, inst.ID(), got[i].Instance)
		assert.Equal(t, "test", got[i].Container)
	}

	cells := inst.Cells()
	got = nil
	require.NoError(t, c.Remove(inst))
	require.Len(t, got, 3)
	for i, p := range cells {
		assert.Equal(t, inventory.CellFreed, got[i].Type)
		assert.Equal(t, p, got[i].Cell)
	}
}

func TestRejectedPlacementEmitsNothing(t *testing.T) {
	calls := 0
	c := newContainer(t, 2, 2)
	c.Subscribe(func(inventory.CellChanged) { calls++ })

	inst, err := c.NewInstance("bar", &inventory.Shape{Width: 3, Height: 1})
	require.NoError(t, err)
	v, err := c.Place(inst, pt(0, 0), inventory.Rot0)
	require.NoError(t, err)
	assert.False(t, v.OK())
	assert.Zero(t, calls)
}

func TestUnsubscribe(t *testing.T) {
	c := newContainer(t, 3, 3)
	var a, b int
	unsubA := c.Subscribe(func(inventory.CellChanged) { a++ })
	c.Subscribe(func(inventory.CellChanged) { b++ })

	place(t, c, &inventory.Shape{}, pt(0, 0), inventory.Rot0)
	unsubA()
	unsubA()
	place(t, c, &inventory.Shape{}, pt(1, 0), inventory.Rot0)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	noop := c.Subscribe(nil)
	noop()
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	ch := make(chan inventory.CellChanged, 1)
	c := newContainer(t, 3, 3, inventory.WithObserver(inventory.ChannelObserver(ch)))

	place(t, c, &inventory.Shape{Width: 2, Height: 1}, pt(0, 0), inventory.Rot0)
	require.Len(t, ch, 1)
	e := <-ch
	assert.Equal(t, pt(0, 0), e.Cell)
	assert.Equal(t, "claimed", e.Type.String())
}
