// Package ratelimit provides per-client request rate limiting.
// It uses a fixed window counter: the first request from a key opens a window
// of Config.Window, and at most Config.Limit requests are allowed inside it.
// Supports both in-memory (single instance) and Redis (distributed) backends.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultConfig is 20 requests per hour.
var DefaultConfig = Config{Limit: 20, Window: time.Hour}

type Config struct {
	Limit  int
	Window time.Duration
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window resets, never
// less than one.
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter defines the interface for rate limiting backends.
type Limiter interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
}

// FixedWindow implements Limiter in process memory. All reads and writes go
// through one mutex, so a key's count never exceeds its limit under
// concurrent load.
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewFixedWindow() *FixedWindow {
	return &FixedWindow{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Check counts one request against key. A denied request is not counted.
// A limit of zero or less denies every request.
func (r *FixedWindow) Check(_ context.Context, key string, cfg Config) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	w, ok := r.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(cfg.Window)}
		r.windows[key] = w
	}

	if w.count >= cfg.Limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++

	return Result{Allowed: true, Remaining: cfg.Limit - w.count, ResetAt: w.resetAt}, nil
}

// Reset forgets key's window.
func (r *FixedWindow) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, key)
}

// Clear forgets every window.
func (r *FixedWindow) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.windows)
}

// Len returns the number of tracked keys.
func (r *FixedWindow) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// Sweep deletes windows that elapsed before now and returns how many were
// removed.
func (r *FixedWindow) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, w := range r.windows {
		if now.After(w.resetAt) {
			delete(r.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *FixedWindow) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(r.now()); n > 0 {
					slog.Debug("rate limit windows swept", "removed", n)
				}
			}
		}
	}()
}
