package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by CacheClient.Get when the key is absent.
var ErrCacheMiss = errors.New("cache: miss")

// MemoryCache is an in-process CacheClient backed by go-cache. Values are
// stored JSON encoded so callers never share slices with the cache.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates a MemoryCache that sweeps expired entries every cleanup.
func NewMemoryCache(defaultTTL, cleanup time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(defaultTTL, cleanup)}
}

func (m *MemoryCache) Get(_ context.Context, key string, dest any) error {
	raw, found := m.c.Get(key)
	if !found {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw.([]byte), dest)
}

func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.c.Set(key, b, ttl)
	return nil
}

func (m *MemoryCache) Del(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// RedisCache wraps go-redis to satisfy CacheClient.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to addr and fails fast if the server is unreachable.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %w", ErrCacheMiss, err)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
