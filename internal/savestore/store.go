// Package savestore keeps serialized container saves. Every backend stores
// opaque bytes under a (player, container) key or a loot source key; encoding
// is the caller's job.
package savestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/gravitas-games/lanternbound/internal/config"
)

// ErrNotFound is returned by Load when nothing was saved under the key.
var ErrNotFound = errors.New("savestore: not found")

// Key addresses one container save. A key without a player addresses a loot
// source shared by everyone; Container then holds the source id.
type Key struct {
	Player    string
	Container string
}

// LootKey addresses the contents of an external loot source.
func LootKey(source string) Key { return Key{Container: source} }

// IsLoot reports whether k addresses a loot source.
func (k Key) IsLoot() bool { return k.Player == "" }

func (k Key) String() string {
	if k.IsLoot() {
		return "loot/" + k.Container
	}
	return k.Player + "/" + k.Container
}

// Store persists container saves.
type Store interface {
	Save(ctx context.Context, key Key, data []byte) error
	Load(ctx context.Context, key Key) ([]byte, error)
	Exists(ctx context.Context, key Key) (bool, error)
	// Delete removes the save under key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key Key) error
	Close() error
}

// New opens the backend selected by cfg. The redis client is required only
// for the redis backend.
func New(cfg *config.Config, rdb *redis.Client) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendGdata:
		return OpenGdata(cfg.Storage.AppName)
	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("savestore: redis backend without a redis client")
		}
		return NewRedis(rdb, cfg.Redis.SavePrefix), nil
	default:
		return nil, fmt.Errorf("savestore: unknown backend %q", cfg.Storage.Backend)
	}
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[Key][]byte)}
}

func (m *Memory) Save(_ context.Context, key Key, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.data[key] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Exists(_ context.Context, key Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// escape maps a key part onto lowercase letters, digits, '-' and "_XX" hex
// escapes for every other byte. Distinct inputs never share an encoding, even
// on case-insensitive filesystems. The empty string becomes a lone "_", which
// no escape produces.
func escape(s string) string {
	if s == "" {
		return "_"
	}
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-':
			b.WriteByte(ch)
		default:
			b.WriteByte('_')
			b.WriteByte(hex[ch>>4])
			b.WriteByte(hex[ch&0x0F])
		}
	}
	return b.String()
}
