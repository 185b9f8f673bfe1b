package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is the claim-check interface the notification dispatcher uses as its
// dedup fast path. SetIfAbsent returns true when the key was newly set, false
// when another writer already holds it.
type Cache interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NopCache always reports the key as newly set, leaving dedup entirely to the
// durable trigger row. Used when redis is not configured and in tests.
type NopCache struct{}

func (NopCache) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}
