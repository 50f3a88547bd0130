package grid_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntGrid(t *testing.T, w, h int, size float64, origin grid.Vec2) *grid.Grid[int] {
	t.Helper()
	g, err := grid.New(w, h, size, origin, func(_ *grid.Grid[int], x, y int) int { return y*100 + x })
	require.NoError(t, err)
	return g
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	factory := func(_ *grid.Grid[int], x, y int) int { return 0 }

	tests := []struct {
		name   string
		w, h   int
		size   float64
		f      grid.Factory[int]
		expect error
	}{
		{"zero width", 0, 3, 1, factory, grid.ErrInvalidDimensions},
		{"negative height", 3, -1, 1, factory, grid.ErrInvalidDimensions},
		{"area overflows int", math.MaxInt, math.MaxInt, 1, factory, grid.ErrInvalidDimensions},
		{"area wraps", math.MaxInt / 2, 4, 1, factory, grid.ErrInvalidDimensions},
		{"too many cells", grid.MaxCells, 2, 1, factory, grid.ErrInvalidDimensions},
		{"zero cell size", 3, 3, 0, factory, grid.ErrInvalidCellSize},
		{"negative cell size", 3, 3, -5, factory, grid.ErrInvalidCellSize},
		{"nan cell size", 3, 3, math.NaN(), factory, grid.ErrInvalidCellSize},
		{"nil factory", 3, 3, 1, nil, grid.ErrNilFactory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := grid.New(tt.w, tt.h, tt.size, grid.Vec2{}, tt.f)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, tt.expect)
		})
	}
}

func TestFactoryInitializesEveryCell(t *testing.T) {
	g := newIntGrid(t, 4, 3, 1, grid.Vec2{})
	visited := 0
	g.Each(func(x, y int, v int) {
		visited++
		assert.Equal(t, y*100+x, v)
	})
	assert.Equal(t, 12, visited)
}

func TestWorldToCell(t *testing.T) {
	g := newIntGrid(t, 10, 10, 50, grid.Vec2{X: 100, Y: -20})

	tests := []struct {
		pos  grid.Vec2
		want grid.Point
	}{
		{grid.Vec2{X: 100, Y: -20}, grid.Point{X: 0, Y: 0}},
		{grid.Vec2{X: 149.9, Y: 29.9}, grid.Point{X: 0, Y: 0}},
		{grid.Vec2{X: 150, Y: 30}, grid.Point{X: 1, Y: 1}},
		{grid.Vec2{X: 99, Y: -21}, grid.Point{X: -1, Y: -1}},
		{grid.Vec2{X: 700, Y: 480}, grid.Point{X: 12, Y: 10}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.pos), func(t *testing.T) {
			assert.Equal(t, tt.want, g.WorldToCell(tt.pos))
		})
	}
}

func TestCellToWorld(t *testing.T) {
	g := newIntGrid(t, 10, 10, 50, grid.Vec2{X: 10, Y: 20})

	assert.Equal(t, grid.Vec2{X: 10, Y: 20}, g.CellToWorldCorner(0, 0))
	assert.Equal(t, grid.Vec2{X: 160, Y: 120}, g.CellToWorldCorner(3, 2))
	assert.Equal(t, grid.Vec2{X: 185, Y: 145}, g.CellToWorldCenter(3, 2))

	// corner -> cell round trip
	for _, p := range []grid.Point{{0, 0}, {3, 7}, {9, 9}} {
		assert.Equal(t, p, g.WorldToCell(g.CellToWorldCorner(p.X, p.Y)))
		assert.Equal(t, p, g.WorldToCell(g.CellToWorldCenter(p.X, p.Y)))
	}
}

func TestGetSetBounds(t *testing.T) {
	g := newIntGrid(t, 3, 2, 1, grid.Vec2{})

	assert.True(t, g.InBounds(0, 0))
	assert.True(t, g.InBounds(2, 1))
	assert.False(t, g.InBounds(3, 0))
	assert.False(t, g.InBounds(0, 2))
	assert.False(t, g.InBounds(-1, 0))

	require.NoError(t, g.Set(2, 1, 42))
	v, err := g.Get(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = g.Get(3, 0)
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
	assert.ErrorIs(t, g.Set(0, -1, 1), grid.ErrOutOfBounds)
}

func TestPointArithmetic(t *testing.T) {
	a := grid.Point{X: 2, Y: 3}
	b := grid.Point{X: -1, Y: 4}
	assert.Equal(t, grid.Point{X: 1, Y: 7}, a.Add(b))
	assert.Equal(t, grid.Point{X: 3, Y: -1}, a.Sub(b))
	assert.Equal(t, "(2,3)", a.String())
}
