package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed JSON caching under a key prefix
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Key returns the full Redis key for k
func (c *Cache) Key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Enabled reports whether the backing client is enabled
func (c *Cache) Enabled() bool {
	return c.client.Enabled()
}

// Get retrieves a cached value; a missing key is (false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value with TTL (0 = no expiry)
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Redis().Set(ctx, c.Key(key), data, ttl).Err()
}

// SetMany stores several values in one pipeline
func (c *Cache) SetMany(ctx context.Context, values map[string]interface{}, ttl time.Duration) error {
	if !c.client.Enabled() || len(values) == 0 {
		return nil
	}

	pipe := c.client.Redis().Pipeline()
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache marshal %s failed: %w", key, err)
		}
		pipe.Set(ctx, c.Key(key), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline failed: %w", err)
	}
	return nil
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.Key(key)).Err()
}

// Predefined TTLs
const (
	TTLShort = 1 * time.Minute
	TTLDaily = 24 * time.Hour
	TTLWeek  = 7 * 24 * time.Hour
)

// PoolKey is the key of a date's Top-K pool
func PoolKey(date string) string {
	return fmt.Sprintf("pool:%s", date)
}

// LatestPoolKey points at the most recently published pool
func LatestPoolKey() string {
	return "pool:latest"
}
