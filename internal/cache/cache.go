// Package cache keeps scraped job postings so repeat fetches of the same URL
// skip the scraper. It supports both in-memory (single instance) and Redis
// (distributed) backends.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prettify-ai/coach-gateway/internal/jobdesc"
	"github.com/prettify-ai/coach-gateway/internal/metrics"
)

// Cache defines the interface for job posting cache backends.
type Cache interface {
	Get(ctx context.Context, key string) (*jobdesc.Job, bool)
	Set(ctx context.Context, key string, job *jobdesc.Job, ttl time.Duration) error
}

// Key hashes a posting URL into a cache key.
func Key(pageURL string) string {
	hash := sha256.Sum256([]byte(pageURL))
	return "jd:" + hex.EncodeToString(hash[:])
}

type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	job       jobdesc.Job
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (*jobdesc.Job, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}

	job := item.job
	return &job, true
}

func (c *InMemoryCache) Set(ctx context.Context, key string, job *jobdesc.Job, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		job:       *job,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cleanup drops expired entries and returns how many were removed.
func (c *InMemoryCache) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (c *InMemoryCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup(c.now())
			}
		}
	}()
}

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache shares an existing client, normally the rate limiter's.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*jobdesc.Job, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var job jobdesc.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, false
	}

	return &job, true
}

func (c *RedisCache) Set(ctx context.Context, key string, job *jobdesc.Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Fetcher is the scraping side of a job description fetch.
type Fetcher interface {
	Fetch(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error)
}

// CachingFetcher serves postings from a Cache and falls through to the
// wrapped Fetcher on a miss. Only successful scrapes are stored.
type CachingFetcher struct {
	next  Fetcher
	cache Cache
	ttl   time.Duration
}

func NewCachingFetcher(next Fetcher, c Cache, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{next: next, cache: c, ttl: ttl}
}

func (f *CachingFetcher) Fetch(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error) {
	key := Key(pageURL)

	if job, ok := f.cache.Get(ctx, key); ok {
		metrics.RecordJobCacheLookup(true)
		return job, nil
	}
	metrics.RecordJobCacheLookup(false)

	job, err := f.next.Fetch(ctx, apiKey, pageURL)
	if err != nil {
		return nil, err
	}

	if err := f.cache.Set(ctx, key, job, f.ttl); err != nil {
		slog.Warn("failed to cache job posting", "url", pageURL, "error", err)
	}
	return job, nil
}
