package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	script *redis.Script
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // 클라이언트 식별자 (IP 등)
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// slidingWindow: 윈도우 밖 항목 제거 → 개수 확인 → 추가 (원자적)
const slidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return {1, limit - count - 1}
end
return {0, 0}
`

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		script: redis.NewScript(slidingWindow),
	}
}

// Allow checks if a request is allowed under the rate limit.
// Returns (allowed, remaining, error); a disabled client allows everything.
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()

	result, err := r.script.Run(ctx, r.client.Redis(), []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
		uuid.NewString(), // 같은 ms 요청도 별도 항목
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	return result[0] == 1, int(result[1]), nil
}

// APIRateLimit is the default per-client limit for the HTTP API
var APIRateLimit = RateLimitConfig{
	Limit:  120,
	Window: time.Minute,
}
