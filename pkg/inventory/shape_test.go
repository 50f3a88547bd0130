package inventory_test

import (
	"fmt"
	"testing"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"github.com/stretchr/testify/assert"
)

var testShapes = map[string]inventory.Shape{
	"single":   {},
	"vertical": {Cells: []grid.Point{{X: 0, Y: 0}, {X: 0, Y: 1}}},
	"rect3x2":  {Width: 3, Height: 2},
	"L":        {Cells: []grid.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}, {X: 1, Y: 0}}},
	"S":        {Cells: []grid.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 1}}},
	// canonical cells need not start at the origin
	"offset": {Cells: []grid.Point{{X: -2, Y: 3}, {X: -1, Y: 3}, {X: -1, Y: 5}}},
}

var allOrientations = []inventory.Orientation{inventory.Rot0, inventory.Rot90, inventory.Rot180, inventory.Rot270}

func TestTransformNormalizesToAnchor(t *testing.T) {
	anchors := []grid.Point{{X: 0, Y: 0}, {X: 3, Y: 3}, {X: -4, Y: 7}}
	for name, s := range testShapes {
		for _, o := range allOrientations {
			for _, a := range anchors {
				t.Run(fmt.Sprintf("%s/%s/%s", name, o, a), func(t *testing.T) {
					cells := inventory.Transform(s, o, a)
					assert.NotEmpty(t, cells)
					minX, minY := cells[0].X, cells[0].Y
					for _, c := range cells {
						minX = min(minX, c.X)
						minY = min(minY, c.Y)
					}
					assert.Equal(t, a, grid.Point{X: minX, Y: minY})
				})
			}
		}
	}
}

func TestTransformIsDeterministic(t *testing.T) {
	s := testShapes["S"]
	for _, o := range allOrientations {
		first := inventory.Transform(s, o, grid.Point{X: 2, Y: 1})
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, inventory.Transform(s, o, grid.Point{X: 2, Y: 1}))
		}
	}
}

func TestTransformPreservesCellCountAndOrder(t *testing.T) {
	s := testShapes["L"]
	got := inventory.Transform(s, inventory.Rot180, grid.Point{})
	// 180: (-dx,-dy) then shift by (1,2)
	assert.Equal(t, []grid.Point{{X: 1, Y: 2}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 2}}, got)
}

func TestTransformScenarioVertical(t *testing.T) {
	s := testShapes["vertical"]
	anchor := grid.Point{X: 3, Y: 3}

	assert.Equal(t, []grid.Point{{X: 3, Y: 3}, {X: 3, Y: 4}}, inventory.Transform(s, inventory.Rot0, anchor))
	assert.Equal(t, []grid.Point{{X: 3, Y: 3}, {X: 4, Y: 3}}, inventory.Transform(s, inventory.Rot90, anchor))
	assert.Equal(t, []grid.Point{{X: 3, Y: 4}, {X: 3, Y: 3}}, inventory.Transform(s, inventory.Rot180, anchor))
	assert.Equal(t, []grid.Point{{X: 4, Y: 3}, {X: 3, Y: 3}}, inventory.Transform(s, inventory.Rot270, anchor))
}

func TestTransformDefaultsEmptyShape(t *testing.T) {
	assert.Equal(t, []grid.Point{{X: 5, Y: 6}}, inventory.Transform(inventory.Shape{}, inventory.Rot90, grid.Point{X: 5, Y: 6}))

	rect := inventory.Transform(inventory.Shape{Width: 2, Height: 3}, inventory.Rot0, grid.Point{})
	assert.Len(t, rect, 6)
}

func TestFourRotationsReturnToStart(t *testing.T) {
	for name, s := range testShapes {
		t.Run(name, func(t *testing.T) {
			base := inventory.Transform(s, inventory.Rot0, grid.Point{})
			o := inventory.Rot0
			for i := 0; i < 4; i++ {
				o = o.Next()
			}
			assert.Equal(t, inventory.Rot0, o)
			assert.Equal(t, base, inventory.Transform(s, o, grid.Point{}))
		})
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		shape string
		o     inventory.Orientation
		w, h  int
	}{
		{"single", inventory.Rot0, 1, 1},
		{"vertical", inventory.Rot0, 1, 2},
		{"vertical", inventory.Rot90, 2, 1},
		{"rect3x2", inventory.Rot0, 3, 2},
		{"rect3x2", inventory.Rot270, 2, 3},
		{"L", inventory.Rot90, 3, 2},
		{"offset", inventory.Rot0, 2, 3},
		{"offset", inventory.Rot90, 3, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.shape, tt.o), func(t *testing.T) {
			w, h := inventory.Bounds(testShapes[tt.shape], tt.o)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestOrientationCycling(t *testing.T) {
	assert.Equal(t, inventory.Rot90, inventory.Rot0.Next())
	assert.Equal(t, inventory.Rot0, inventory.Rot270.Next())
	assert.Equal(t, inventory.Rot270, inventory.Rot0.Prev())
	assert.Equal(t, inventory.Rot90, inventory.Orientation(5).Normalize())
	assert.Equal(t, inventory.Rot270, inventory.Orientation(-1).Normalize())
	assert.Equal(t, "180", inventory.Rot180.String())
}
