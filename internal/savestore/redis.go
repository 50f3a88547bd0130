package savestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Redis stores saves as plain string values under prefix+player:container.
// Loot sources live under prefix+@loot:source.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an already connected client. The client is owned by the
// caller; Close does not close it.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k Key) string {
	if k.IsLoot() {
		return fmt.Sprintf("%s@loot:%s", r.prefix, escape(k.Container))
	}
	return fmt.Sprintf("%s%s:%s", r.prefix, escape(k.Player), escape(k.Container))
}

func (r *Redis) Save(ctx context.Context, key Key, data []byte) error {
	if err := r.client.Set(ctx, r.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("savestore: save %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, key Key) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("savestore: load %s: %w", key, err)
	}
	return data, nil
}

func (r *Redis) Exists(ctx context.Context, key Key) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("savestore: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("savestore: delete %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error { return nil }
