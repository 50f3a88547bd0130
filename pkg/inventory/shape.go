package inventory

import "github.com/gravitas-games/lanternbound/pkg/grid"

// shapeCells returns the canonical relative cells for a shape.
func shapeCells(s Shape) []grid.Point {
	if len(s.Cells) > 0 {
		return s.Cells
	}
	w := s.Width
	h := s.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	out := make([]grid.Point, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out = append(out, grid.Point{X: x, Y: y})
		}
	}
	return out
}

// rotate applies the integer rotation for o to a single offset.
func rotate(p grid.Point, o Orientation) grid.Point {
	switch o.Normalize() {
	case Rot90:
		return grid.Point{X: p.Y, Y: -p.X}
	case Rot180:
		return grid.Point{X: -p.X, Y: -p.Y}
	case Rot270:
		return grid.Point{X: -p.Y, Y: p.X}
	default:
		return p
	}
}

// normalized rotates the shape and translates it so the bounding box minimum
// is (0,0). Element order follows the canonical cell order.
func normalized(s Shape, o Orientation) []grid.Point {
	src := shapeCells(s)
	out := make([]grid.Point, len(src))
	minX, minY := 0, 0
	for i, c := range src {
		r := rotate(c, o)
		out[i] = r
		if i == 0 || r.X < minX {
			minX = r.X
		}
		if i == 0 || r.Y < minY {
			minY = r.Y
		}
	}
	for i := range out {
		out[i].X -= minX
		out[i].Y -= minY
	}
	return out
}

// Transform returns the absolute cells a shape occupies when rotated by o and
// anchored at anchor. The bounding-box minimum corner of the result is always
// exactly anchor, whatever the orientation. Output order is deterministic and
// follows the order of the shape's canonical cells.
func Transform(s Shape, o Orientation, anchor grid.Point) []grid.Point {
	out := normalized(s, o)
	for i := range out {
		out[i] = out[i].Add(anchor)
	}
	return out
}

// Bounds returns the width and height of the shape's footprint at o, so a
// preview can be sized without a trial placement.
func Bounds(s Shape, o Orientation) (width, height int) {
	for _, c := range normalized(s, o) {
		if c.X+1 > width {
			width = c.X + 1
		}
		if c.Y+1 > height {
			height = c.Y + 1
		}
	}
	return width, height
}
