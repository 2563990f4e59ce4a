//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func getRedisURL(t *testing.T) string {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis rate limiter tests")
	}
	return url
}

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, string) {
	rl, err := NewRedisLimiter(getRedisURL(t))
	if err != nil {
		t.Fatalf("failed to create redis rate limiter: %v", err)
	}
	key := "test-" + uuid.NewString()
	t.Cleanup(func() {
		rl.Reset(context.Background(), key)
		rl.Close()
	})
	return rl, key
}

func TestRedisLimiter_Check(t *testing.T) {
	rl, key := newTestRedisLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		res, err := rl.Check(ctx, key, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, res.Remaining, 2-i)
		}
	}

	res, err := rl.Check(ctx, key, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("4th request: got %+v, want denied", res)
	}
	if until := time.Until(res.ResetAt); until <= 0 || until > time.Minute {
		t.Errorf("resetAt should be within the window, got %v", until)
	}
}

func TestRedisLimiter_WindowExpiry(t *testing.T) {
	rl, key := newTestRedisLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 1, Window: 100 * time.Millisecond}

	if res, _ := rl.Check(ctx, key, cfg); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res, _ := rl.Check(ctx, key, cfg); res.Allowed {
		t.Fatal("second request should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if res, _ := rl.Check(ctx, key, cfg); !res.Allowed {
		t.Error("request after window should be allowed")
	}
}

func TestRedisLimiter_Reset(t *testing.T) {
	rl, key := newTestRedisLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 1, Window: time.Minute}

	rl.Check(ctx, key, cfg)
	if err := rl.Reset(ctx, key); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if res, _ := rl.Check(ctx, key, cfg); !res.Allowed {
		t.Error("request after Reset should be allowed")
	}
}
