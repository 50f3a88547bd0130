package catalog

// Package catalog loads item definitions from YAML into an inventory.Registry.

import (
	"fmt"
	"os"
	"strings"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout.
type File struct {
	Items []Item `yaml:"items"`
}

// Item is one catalog entry. The shape is given either as explicit cells,
// as a Width x Height rectangle, or as a Pattern drawn top row first where
// 'X' or '#' marks a filled cell:
//
//	pattern:
//	  - "X."
//	  - "XX"
type Item struct {
	inventory.ItemDetails `yaml:",inline"`
	Pattern               []string `yaml:"pattern,omitempty"`
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*inventory.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a registry from catalog YAML. Any invalid entry fails the
// whole catalog.
func Parse(data []byte) (*inventory.Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("catalog has no items")
	}
	reg := inventory.NewRegistry()
	seen := make(map[inventory.ItemID]bool, len(f.Items))
	for i, it := range f.Items {
		if seen[it.ID] {
			return nil, fmt.Errorf("item %d: duplicate id %q", i, it.ID)
		}
		seen[it.ID] = true
		d := it.ItemDetails
		if len(it.Pattern) > 0 {
			if len(d.Shape.Cells) > 0 {
				return nil, fmt.Errorf("item %q: both pattern and cells given", it.ID)
			}
			cells, err := PatternCells(it.Pattern)
			if err != nil {
				return nil, fmt.Errorf("item %q: %w", it.ID, err)
			}
			d.Shape.Cells = cells
		}
		if d.Shape.Width < 0 || d.Shape.Height < 0 {
			return nil, fmt.Errorf("item %q: negative shape size", it.ID)
		}
		if err := reg.Register(d); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return reg, nil
}

// PatternCells converts a top-down pattern into canonical offsets with y
// growing upward, so the bottom row of the pattern is y = 0.
func PatternCells(pattern []string) ([]grid.Point, error) {
	h := len(pattern)
	var cells []grid.Point
	for row, line := range pattern {
		y := h - 1 - row
		for x, r := range line {
			switch r {
			case 'X', 'x', '#':
				cells = append(cells, grid.Point{X: x, Y: y})
			case '.', ' ', '_':
			default:
				return nil, fmt.Errorf("pattern row %d: unexpected %q", row, r)
			}
		}
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("pattern %q has no filled cells", strings.Join(pattern, "/"))
	}
	return cells, nil
}

// Marshal writes a registry back out as catalog YAML.
func Marshal(reg *inventory.Registry) ([]byte, error) {
	var f File
	for _, d := range reg.Export() {
		f.Items = append(f.Items, Item{ItemDetails: d})
	}
	return yaml.Marshal(f)
}
