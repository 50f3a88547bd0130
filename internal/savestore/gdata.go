package savestore

import (
	"context"
	"fmt"

	"github.com/quasilyte/gdata/v2"
)

// Gdata stores saves in the platform data directory, one object per player
// and one property per container. Loot sources share the "loot" object.
type Gdata struct {
	m *gdata.Manager
}

// OpenGdata opens (creating if needed) the data directory for appName.
func OpenGdata(appName string) (*Gdata, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("savestore: open gdata %q: %w", appName, err)
	}
	return &Gdata{m: m}, nil
}

func gdataObject(key Key) string {
	if key.IsLoot() {
		return "loot"
	}
	return "saves_" + escape(key.Player)
}

func gdataProp(key Key) string { return escape(key.Container) }

func (g *Gdata) Save(_ context.Context, key Key, data []byte) error {
	if err := g.m.SaveObjectProp(gdataObject(key), gdataProp(key), data); err != nil {
		return fmt.Errorf("savestore: save %s: %w", key, err)
	}
	return nil
}

func (g *Gdata) Load(_ context.Context, key Key) ([]byte, error) {
	if !g.m.ObjectPropExists(gdataObject(key), gdataProp(key)) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data, err := g.m.LoadObjectProp(gdataObject(key), gdataProp(key))
	if err != nil {
		return nil, fmt.Errorf("savestore: load %s: %w", key, err)
	}
	return data, nil
}

func (g *Gdata) Exists(_ context.Context, key Key) (bool, error) {
	return g.m.ObjectPropExists(gdataObject(key), gdataProp(key)), nil
}

func (g *Gdata) Delete(_ context.Context, key Key) error {
	if err := g.m.DeleteObjectProp(gdataObject(key), gdataProp(key)); err != nil {
		return fmt.Errorf("savestore: delete %s: %w", key, err)
	}
	return nil
}

func (g *Gdata) Close() error { return nil }
