// Package cache is a small TTL byte cache with in-memory and Redis backends.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"datagage/internal/config"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Open builds the backend named by cfg.Backend.
func Open(cfg config.CacheConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("cache backend redis requires cache.redis_addr")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(rdb, strings.TrimSpace(cfg.RedisPrefix)), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// Key joins parts with ':' so callers get stable, readable keys.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
