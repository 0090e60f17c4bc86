package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bizsim/agegate/internal/client"
)

// RedisKV persists the cache in Redis for server-side deployments where one
// logical install maps to a stable namespace.
type RedisKV struct {
	rc *client.RedisClient
	ns string
}

// NewRedisKV wraps the shared Redis client. namespace isolates multiple
// installs sharing one database; empty means no prefix.
func NewRedisKV(rc *client.RedisClient, namespace string) *RedisKV {
	return &RedisKV{rc: rc, ns: namespace}
}

func (r *RedisKV) key(key string) string {
	if r.ns == "" {
		return key
	}
	return r.ns + ":" + key
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rc.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.rc.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.rc.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}
