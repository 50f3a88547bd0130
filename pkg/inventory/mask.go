package inventory

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidMask is returned for malformed row spans.
var ErrInvalidMask = errors.New("inventory: invalid mask")

// RowSpan marks columns [Start, Start+Length) of Row as usable.
type RowSpan struct {
	Row    int `json:"row" yaml:"row"`
	Start  int `json:"start" yaml:"start"`
	Length int `json:"length" yaml:"length"`
}

// Mask restricts which cells of a rectangular grid are usable. Rows without a
// span are entirely unusable. A nil *Mask makes every in-bounds cell usable.
type Mask struct {
	rows map[int]RowSpan
}

// NewMask builds a mask from row spans. Rows are counted from the grid's
// origin row (y = 0).
func NewMask(spans ...RowSpan) (*Mask, error) {
	m := &Mask{rows: make(map[int]RowSpan, len(spans))}
	for _, s := range spans {
		if s.Row < 0 || s.Start < 0 || s.Length < 0 {
			return nil, fmt.Errorf("%w: row=%d start=%d length=%d", ErrInvalidMask, s.Row, s.Start, s.Length)
		}
		if _, dup := m.rows[s.Row]; dup {
			return nil, fmt.Errorf("%w: duplicate row %d", ErrInvalidMask, s.Row)
		}
		m.rows[s.Row] = s
	}
	return m, nil
}

// MaskFromTop builds a mask from spans whose Row counts down from the top
// edge of a grid of the given height (row 0 = y height-1).
func MaskFromTop(height int, spans ...RowSpan) (*Mask, error) {
	if height <= 0 {
		return nil, fmt.Errorf("%w: height %d", ErrInvalidMask, height)
	}
	flipped := make([]RowSpan, 0, len(spans))
	for _, s := range spans {
		if s.Row < 0 || s.Row >= height {
			return nil, fmt.Errorf("%w: row %d outside height %d", ErrInvalidMask, s.Row, height)
		}
		s.Row = height - 1 - s.Row
		flipped = append(flipped, s)
	}
	return NewMask(flipped...)
}

// Usable reports whether (x, y) may hold an item.
func (m *Mask) Usable(x, y int) bool {
	if m == nil {
		return true
	}
	s, ok := m.rows[y]
	if !ok {
		return false
	}
	return x >= s.Start && x < s.Start+s.Length
}

// Extent returns the smallest grid size covering every usable cell.
func (m *Mask) Extent() (width, height int) {
	if m == nil {
		return 0, 0
	}
	for _, s := range m.rows {
		if s.Length > 0 && s.Start+s.Length > width {
			width = s.Start + s.Length
		}
		if s.Row+1 > height {
			height = s.Row + 1
		}
	}
	return width, height
}

// Spans returns the mask's spans ordered by row.
func (m *Mask) Spans() []RowSpan {
	if m == nil {
		return nil
	}
	out := make([]RowSpan, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// UsableCount returns the number of usable cells inside a width x height grid.
func (m *Mask) UsableCount(width, height int) int {
	n := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if m.Usable(x, y) {
				n++
			}
		}
	}
	return n
}
