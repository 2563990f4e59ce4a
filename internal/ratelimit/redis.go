package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// fixedWindowScript mirrors FixedWindow.Check atomically. The key's TTL is
// the window; a denied request is not counted.
// Returns {allowed, count, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= limit then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl < 0 then ttl = window end
	return {0, count, ttl}
end

count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], window)
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then ttl = window end
return {1, count, ttl}
`)

type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisLimiterFromClient(client), nil
}

func NewRedisLimiterFromClient(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (r *RedisLimiter) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	now := r.now()

	vals, err := fixedWindowScript.Run(ctx, r.client, []string{keyPrefix + key}, cfg.Limit, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	allowed := vals[0] == 1
	count := int(vals[1])
	resetAt := now.Add(time.Duration(vals[2]) * time.Millisecond)

	remaining := cfg.Limit - count
	if !allowed || remaining < 0 {
		remaining = 0
	}

	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}, nil
}

func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

// Client exposes the underlying client for health checks.
func (r *RedisLimiter) Client() *redis.Client {
	return r.client
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
