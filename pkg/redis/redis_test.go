package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	cfg := RateLimitConfig{Key: "127.0.0.1", Limit: 5, Window: time.Second}
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 5, remaining)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []string{"A"}, TTLShort))
	require.NoError(t, cache.SetMany(ctx, map[string]interface{}{"k": 1}, TTLShort))

	var out []string
	found, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, "k"))
}

func TestCache_Keys(t *testing.T) {
	cache := NewCache(Disabled(), "aegis:signal")
	assert.Equal(t, "aegis:signal:pool:2024-01-02", cache.Key(PoolKey("2024-01-02")))
	assert.Equal(t, "aegis:signal:pool:latest", cache.Key(LatestPoolKey()))
}

// integration: REDIS_HOST=localhost REDIS_PORT=6379
func TestCache_Integration(t *testing.T) {
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host == "" || port == "" {
		t.Skip("REDIS_HOST/REDIS_PORT not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, config.RedisConfig{Host: host, Port: port, Enabled: true})
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "aegis:test")
	require.NoError(t, cache.Set(ctx, "pool", []string{"A", "B"}, time.Minute))
	defer cache.Delete(ctx, "pool")

	var out []string
	found, err := cache.Get(ctx, "pool", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"A", "B"}, out)

	limiter := NewRateLimiter(client, "aegis:test")
	cfg := RateLimitConfig{Key: t.Name(), Limit: 2, Window: time.Minute}
	ok1, _, _ := limiter.Allow(ctx, cfg)
	ok2, _, _ := limiter.Allow(ctx, cfg)
	ok3, _, _ := limiter.Allow(ctx, cfg)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
}
