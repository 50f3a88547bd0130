package inventory

import "github.com/gravitas-games/lanternbound/pkg/grid"

// LanternSpans is the default lantern silhouette, authored from the top row
// down:
//
//	    [][]
//	  [][][][]
//	[][][][][][]
//	[][][][][][]
//	[][][][][][]
//	  [][][][]
var LanternSpans = []RowSpan{
	{Row: 0, Start: 2, Length: 2},
	{Row: 1, Start: 1, Length: 4},
	{Row: 2, Start: 0, Length: 6},
	{Row: 3, Start: 0, Length: 6},
	{Row: 4, Start: 0, Length: 6},
	{Row: 5, Start: 1, Length: 4},
}

// LanternMask returns the default 6x6 lantern storage mask.
func LanternMask() *Mask {
	m, err := MaskFromTop(len(LanternSpans), LanternSpans...)
	if err != nil {
		panic(err)
	}
	return m
}

// SampleRegistry returns a small catalog of lantern-roguelite items.
func SampleRegistry() *Registry {
	return NewRegistry(
		ItemDetails{ID: "oil-flask", NumericID: 1, Name: "Oil Flask", Category: "consumable", Shape: Shape{Width: 1, Height: 2}},
		ItemDetails{ID: "whetstone", NumericID: 2, Name: "Whetstone", Category: "trinket", Shape: Shape{Width: 1, Height: 1}},
		ItemDetails{ID: "straw-doll", NumericID: 3, Name: "Straw Doll", Category: "trinket",
			Shape: Shape{Cells: []grid.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}}},
		ItemDetails{ID: "firestarter-soles", NumericID: 4, Name: "Firestarter Soles", Category: "boots", Shape: Shape{Width: 2, Height: 1}},
		ItemDetails{ID: "blood-phase", NumericID: 5, Name: "Blood Phase Vial", Category: "consumable",
			Shape: Shape{Cells: []grid.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 1}}}},
		ItemDetails{ID: "rusted-sword", NumericID: 6, Name: "Rusted Sword", Category: "weapon", Weapon: true, Shape: Shape{Width: 1, Height: 3}},
		ItemDetails{ID: "hand-axe", NumericID: 7, Name: "Hand Axe", Category: "weapon", Weapon: true,
			Shape: Shape{Cells: []grid.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}, {X: 1, Y: 2}}}},
		ItemDetails{ID: "charcoal", NumericID: 8, Name: "Charcoal", Category: "resource", Shape: Shape{Width: 1, Height: 1}},
	)
}

// SampleContainers returns a lantern storage, a 9x3 ground grid and a 5x1
// loadout bar sharing the sample registry, with a few items already placed.
func SampleContainers() (storage, ground, loadout *Container, reg *Registry) {
	reg = SampleRegistry()
	mask := LanternMask()
	w, h := mask.Extent()

	storage, err := NewContainer("storage", w, h, WithMask(mask), WithRegistry(reg))
	if err != nil {
		panic(err)
	}
	ground, err = NewContainer("ground", 9, 3, WithRegistry(reg))
	if err != nil {
		panic(err)
	}
	loadout, err = NewContainer("loadout", 5, 1, WithRegistry(reg))
	if err != nil {
		panic(err)
	}

	place := func(c *Container, item ItemID, at grid.Point, o Orientation) {
		inst, err := c.NewItem(item)
		if err != nil {
			panic(err)
		}
		v, err := c.Place(inst, at, o)
		if err != nil {
			panic(err)
		}
		if !v.OK() {
			panic("sample placement rejected: " + v.String())
		}
	}
	place(storage, "rusted-sword", grid.Point{X: 0, Y: 1}, Rot0)
	place(storage, "oil-flask", grid.Point{X: 2, Y: 3}, Rot0)
	place(storage, "straw-doll", grid.Point{X: 3, Y: 1}, Rot90)
	place(ground, "hand-axe", grid.Point{X: 0, Y: 0}, Rot90)
	place(ground, "charcoal", grid.Point{X: 8, Y: 2}, Rot0)
	place(loadout, "whetstone", grid.Point{X: 3, Y: 0}, Rot0)

	return storage, ground, loadout, reg
}
