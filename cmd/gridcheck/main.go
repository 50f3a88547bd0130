// Command gridcheck validates container configuration, an item catalog and
// save files offline, printing each container as a grid.
//
// Usage:
//
//	gridcheck [-config configs/server.yaml] [-catalog configs/items.yaml] [save.json ...]
//
// Each save file is replayed into a fresh copy of the container it names.
// The exit status is 1 when any entry could not be restored.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/gravitas-games/lanternbound/internal/catalog"
	"github.com/gravitas-games/lanternbound/internal/config"
	"github.com/gravitas-games/lanternbound/internal/savestore"
	"github.com/gravitas-games/lanternbound/internal/server"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
)

var (
	configPath  = flag.String("config", "", "server config file (defaults are used when empty)")
	catalogPath = flag.String("catalog", "", "item catalog, overrides inventory.catalog_path")
	quiet       = flag.Bool("q", false, "only print problems")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if *catalogPath != "" {
		cfg.Inventory.CatalogPath = *catalogPath
	}

	reg := inventory.SampleRegistry()
	if cfg.Inventory.CatalogPath != "" {
		var err error
		if reg, err = catalog.LoadFile(cfg.Inventory.CatalogPath); err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}

	out := io.Writer(os.Stdout)
	if *quiet {
		out = io.Discard
	}
	problems, err := run(out, cfg, reg, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if problems > 0 {
		log.Printf("%d entries could not be restored", problems)
		os.Exit(1)
	}
}

// run prints every configured container and replays each save file. It
// returns the number of skipped save entries.
func run(w io.Writer, cfg *config.Config, reg *inventory.Registry, saves []string) (int, error) {
	ws, err := server.NewWorkspace("gridcheck", cfg, reg, savestore.NewMemory())
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(w, "%d item types\n", reg.Len())
	for _, id := range ws.IDs() {
		c, _ := ws.Container(id)
		printContainer(w, c)
	}

	problems := 0
	for _, path := range saves {
		n, err := checkSave(w, ws, path)
		if err != nil {
			return problems, fmt.Errorf("%s: %w", path, err)
		}
		problems += n
	}
	return problems, nil
}

// checkSave replays one save file. Both the plain and the storage encoding
// are accepted.
func checkSave(w io.Writer, ws *server.Workspace, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var head struct {
		Container string          `json:"container"`
		Short     string          `json:"c"`
		Compact   json.RawMessage `json:"e"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, fmt.Errorf("corrupt save: %w", err)
	}
	id := head.Container
	if head.Compact != nil {
		id = head.Short
	}
	c, err := ws.Container(id)
	if err != nil {
		return 0, err
	}
	load := c.Deserialize
	if head.Compact != nil {
		load = c.DeserializeFromStorage
	}
	report, err := load(data)
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(w, "%s: %d restored, %d skipped\n", path, report.Restored, len(report.Skipped))
	for _, sk := range report.Skipped {
		log.Printf("%s: %s", path, sk)
	}
	printContainer(w, c)
	return len(report.Skipped), nil
}

func printContainer(w io.Writer, c *inventory.Container) {
	g := c.Grid()
	fmt.Fprintf(w, "%s %dx%d, %d free, %d placed\n", c.ID(), g.Width(), g.Height(), c.FreeCells(), c.Len())
	fmt.Fprint(w, render(c))
}

// render draws the container top row first. Masked cells are blank, free
// cells are dots and placed instances use a letter per placement.
func render(c *inventory.Container) string {
	g := c.Grid()
	glyph := make(map[inventory.InstanceID]byte)
	for i, inst := range c.Instances() {
		glyph[inst.ID()] = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"[i%26]
	}
	var b strings.Builder
	for y := g.Height() - 1; y >= 0; y-- {
		for x := 0; x < g.Width(); x++ {
			cell, err := g.Get(x, y)
			switch {
			case err != nil || !cell.Usable:
				b.WriteByte(' ')
			case cell.Occupant != nil:
				b.WriteByte(glyph[cell.Occupant.ID()])
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
