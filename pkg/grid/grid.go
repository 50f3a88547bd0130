// Package grid provides a fixed-size, row-major 2D cell container with a
// mapping between continuous world positions and integer cell coordinates.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// MaxCells bounds width*height.
const MaxCells = 1 << 24

var (
	// ErrInvalidDimensions is returned when width or height is not positive
	// or the grid would hold more than MaxCells cells.
	ErrInvalidDimensions = errors.New("grid: invalid dimensions")
	// ErrInvalidCellSize is returned when the cell size is not a positive number.
	ErrInvalidCellSize = errors.New("grid: cell size must be positive")
	// ErrNilFactory is returned when no cell factory is supplied.
	ErrNilFactory = errors.New("grid: nil cell factory")
	// ErrOutOfBounds is returned by Get/Set for coordinates outside the grid.
	ErrOutOfBounds = errors.New("grid: coordinate out of bounds")
)

// Point is an integer cell coordinate. Y grows upward from the origin corner.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Vec2 is a continuous world-space position.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Factory builds the initial value stored at (x, y).
type Factory[T any] func(g *Grid[T], x, y int) T

// Grid stores one value of type T per cell. Its size is fixed at construction.
type Grid[T any] struct {
	width    int
	height   int
	cellSize float64
	origin   Vec2
	cells    []T // index = y*width + x
}

// New allocates a width x height grid and initializes every cell through factory.
func New[T any](width, height int, cellSize float64, origin Vec2, factory Factory[T]) (*Grid[T], error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	// divide rather than multiply so the check itself cannot overflow
	if width > MaxCells/height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d cells", ErrInvalidDimensions, width, height, MaxCells)
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCellSize, cellSize)
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	g := &Grid[T]{
		width:    width,
		height:   height,
		cellSize: cellSize,
		origin:   origin,
		cells:    make([]T, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.cells[g.Index(x, y)] = factory(g, x, y)
		}
	}
	return g, nil
}

func (g *Grid[T]) Width() int        { return g.width }
func (g *Grid[T]) Height() int       { return g.height }
func (g *Grid[T]) CellSize() float64 { return g.cellSize }
func (g *Grid[T]) Origin() Vec2      { return g.origin }

// Index returns the backing slice index for (x, y). Callers must check bounds.
func (g *Grid[T]) Index(x, y int) int { return y*g.width + x }

// InBounds reports whether (x, y) addresses a cell of the grid.
func (g *Grid[T]) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// WorldToCell converts a world position to the cell containing it.
// The result is not clamped; coordinates outside the grid are valid results.
func (g *Grid[T]) WorldToCell(pos Vec2) Point {
	return Point{
		X: int(math.Floor((pos.X - g.origin.X) / g.cellSize)),
		Y: int(math.Floor((pos.Y - g.origin.Y) / g.cellSize)),
	}
}

// CellToWorldCorner returns the lower-left corner of cell (x, y) in world space.
func (g *Grid[T]) CellToWorldCorner(x, y int) Vec2 {
	return Vec2{
		X: g.origin.X + float64(x)*g.cellSize,
		Y: g.origin.Y + float64(y)*g.cellSize,
	}
}

// CellToWorldCenter returns the center of cell (x, y) in world space.
func (g *Grid[T]) CellToWorldCenter(x, y int) Vec2 {
	c := g.CellToWorldCorner(x, y)
	half := g.cellSize / 2
	return Vec2{X: c.X + half, Y: c.Y + half}
}

// Get returns the value stored at (x, y).
func (g *Grid[T]) Get(x, y int) (T, error) {
	if !g.InBounds(x, y) {
		var zero T
		return zero, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.width, g.height)
	}
	return g.cells[g.Index(x, y)], nil
}

// Set replaces the value stored at (x, y).
func (g *Grid[T]) Set(x, y int, v T) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.width, g.height)
	}
	g.cells[g.Index(x, y)] = v
	return nil
}

// Each visits every cell in row-major order, bottom row first.
func (g *Grid[T]) Each(fn func(x, y int, v T)) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			fn(x, y, g.cells[g.Index(x, y)])
		}
	}
}
