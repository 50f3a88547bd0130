package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/gravitas-games/lanternbound/pkg/grid"
	"github.com/gravitas-games/lanternbound/pkg/inventory"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendGdata  = "gdata"
	BackendRedis  = "redis"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Inventory InventoryConfig `yaml:"inventory"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TickRate int    `yaml:"tick_rate"` // Hz
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings. An empty Address disables
// Redis entirely.
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
	SavePrefix      string `yaml:"save_prefix"`
}

// SessionConfig holds game session settings
type SessionConfig struct {
	MaxPlayers int `yaml:"max_players"`
	QueueSize  int `yaml:"queue_size"` // pending commands for the session loop
}

// StorageConfig selects where container saves are kept
type StorageConfig struct {
	Backend string `yaml:"backend"`  // memory, gdata or redis
	AppName string `yaml:"app_name"` // gdata data directory name
}

// InventoryConfig describes the containers every player gets
type InventoryConfig struct {
	CellSize    float64           `yaml:"cell_size"`
	SnapBias    *float64          `yaml:"snap_bias"`
	CatalogPath string            `yaml:"catalog_path"` // empty uses the built-in sample catalog
	Containers  []ContainerConfig `yaml:"containers"`
	// LootContainer is the container that shows an opened loot source.
	// Empty disables loot.
	LootContainer string `yaml:"loot_container"`
}

// ContainerConfig describes one container grid. When Rows is set, Width and
// Height may be left zero and are taken from the mask extent.
type ContainerConfig struct {
	ID          string              `yaml:"id"`
	Width       int                 `yaml:"width"`
	Height      int                 `yaml:"height"`
	Rows        []inventory.RowSpan `yaml:"rows"`
	RowsFromTop bool                `yaml:"rows_from_top"`
	Lantern     bool                `yaml:"lantern"` // use the default lantern silhouette
	Origin      grid.Vec2           `yaml:"origin"`  // world position of cell (0,0)
}

// Mask builds the container's mask, or nil when every cell is usable.
func (c ContainerConfig) Mask() (*inventory.Mask, error) {
	switch {
	case c.Lantern:
		return inventory.LanternMask(), nil
	case len(c.Rows) == 0:
		return nil, nil
	case c.RowsFromTop:
		h := c.Height
		if h == 0 {
			for _, r := range c.Rows {
				h = max(h, r.Row+1)
			}
		}
		return inventory.MaskFromTop(h, c.Rows...)
	default:
		return inventory.NewMask(c.Rows...)
	}
}

// Size returns the grid dimensions, falling back to the mask extent.
func (c ContainerConfig) Size() (width, height int, err error) {
	width, height = c.Width, c.Height
	if width > 0 && height > 0 {
		return width, height, nil
	}
	m, err := c.Mask()
	if err != nil {
		return 0, 0, err
	}
	mw, mh := m.Extent()
	if width == 0 {
		width = mw
	}
	if height == 0 {
		height = mh
	}
	return width, height, nil
}

// Bias returns the configured snap bias.
func (c InventoryConfig) Bias() float64 {
	if c.SnapBias == nil {
		return DefaultSnapBias
	}
	return *c.SnapBias
}

// Container returns the configuration of container id.
func (c InventoryConfig) Container(id string) (ContainerConfig, bool) {
	for _, cc := range c.Containers {
		if cc.ID == id {
			return cc, true
		}
	}
	return ContainerConfig{}, false
}

// DefaultLootContainer shows opened loot sources when the container exists.
const DefaultLootContainer = "ground"

// DefaultSnapBias nudges a dropped item toward the cell its corner is over.
const DefaultSnapBias = 0.4

// DefaultContainers is the lantern storage, ground grid and loadout bar.
func DefaultContainers() []ContainerConfig {
	return []ContainerConfig{
		{ID: "storage", Lantern: true},
		{ID: "ground", Width: 9, Height: 3, Origin: grid.Vec2{X: 0, Y: -200}},
		{ID: "loadout", Width: 5, Height: 1, Origin: grid.Vec2{X: 0, Y: -300}},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults sets defaults for fields not provided
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TickRate == 0 {
		cfg.Server.TickRate = 20
	}
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Redis.BlacklistPrefix == "" {
		cfg.Redis.BlacklistPrefix = "jwt:blacklist:"
	}
	if cfg.Redis.SavePrefix == "" {
		cfg.Redis.SavePrefix = "lanternbound:save:"
	}
	if cfg.Session.MaxPlayers == 0 {
		cfg.Session.MaxPlayers = 100
	}
	if cfg.Session.QueueSize == 0 {
		cfg.Session.QueueSize = 256
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if cfg.Storage.AppName == "" {
		cfg.Storage.AppName = "lanternbound"
	}
	if cfg.Inventory.CellSize == 0 {
		cfg.Inventory.CellSize = inventory.DefaultCellSize
	}
	if cfg.Inventory.SnapBias == nil {
		bias := DefaultSnapBias
		cfg.Inventory.SnapBias = &bias
	}
	if len(cfg.Inventory.Containers) == 0 {
		cfg.Inventory.Containers = DefaultContainers()
	}
	if cfg.Inventory.LootContainer == "" {
		if _, ok := cfg.Inventory.Container(DefaultLootContainer); ok {
			cfg.Inventory.LootContainer = DefaultLootContainer
		}
	}
}

// Validate checks values that defaults cannot repair.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalid, cfg.Server.Port)
	}
	if cfg.Server.TickRate < 0 {
		return fmt.Errorf("%w: server.tick_rate %d", ErrInvalid, cfg.Server.TickRate)
	}
	switch cfg.Storage.Backend {
	case BackendMemory, BackendGdata:
	case BackendRedis:
		if cfg.Redis.Address == "" {
			return fmt.Errorf("%w: storage.backend redis needs redis.address", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalid, cfg.Storage.Backend)
	}
	if !(cfg.Inventory.CellSize > 0) {
		return fmt.Errorf("%w: inventory.cell_size must be positive", ErrInvalid)
	}
	if b := cfg.Inventory.Bias(); b < 0 || b >= 1 {
		return fmt.Errorf("%w: inventory.snap_bias %v outside [0,1)", ErrInvalid, b)
	}
	seen := make(map[string]bool, len(cfg.Inventory.Containers))
	for i, c := range cfg.Inventory.Containers {
		if c.ID == "" {
			return fmt.Errorf("%w: inventory.containers[%d] missing id", ErrInvalid, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate container %q", ErrInvalid, c.ID)
		}
		seen[c.ID] = true
		w, h, err := c.Size()
		if err != nil {
			return fmt.Errorf("%w: container %q: %v", ErrInvalid, c.ID, err)
		}
		if w <= 0 || h <= 0 {
			return fmt.Errorf("%w: container %q has no size", ErrInvalid, c.ID)
		}
		if w > grid.MaxCells/h {
			return fmt.Errorf("%w: container %q is %dx%d, more than %d cells", ErrInvalid, c.ID, w, h, grid.MaxCells)
		}
	}
	if id := cfg.Inventory.LootContainer; id != "" && !seen[id] {
		return fmt.Errorf("%w: inventory.loot_container %q is not a configured container", ErrInvalid, id)
	}
	return nil
}
