package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/jobdesc"
)

const postingURL = "https://jobs.lever.co/acme/42"

func testJob() *jobdesc.Job {
	return &jobdesc.Job{
		URL:       postingURL,
		Markdown:  "# Staff Engineer\n\nAcme is hiring.",
		ScrapedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryCache_SetAndGet(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "key1", testJob(), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, ok := c.Get(ctx, "key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if cached.URL != postingURL || cached.Markdown != testJob().Markdown {
		t.Errorf("cached = %+v", cached)
	}
}

func TestInMemoryCache_ReturnsCopy(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()
	c.Set(ctx, "key1", testJob(), time.Minute)

	first, _ := c.Get(ctx, "key1")
	first.Markdown = "mutated"

	second, _ := c.Get(ctx, "key1")
	if second.Markdown == "mutated" {
		t.Error("cache entry was mutated through a returned value")
	}
}

func TestInMemoryCache_Miss(t *testing.T) {
	c := NewInMemoryCache()

	if _, ok := c.Get(context.Background(), "nonexistent"); ok {
		t.Error("expected cache miss")
	}
}

func TestInMemoryCache_Expiration(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewInMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "key1", testJob(), time.Minute)

	if _, ok := c.Get(ctx, "key1"); !ok {
		t.Fatal("expected cache hit before expiration")
	}

	now = now.Add(61 * time.Second)

	if _, ok := c.Get(ctx, "key1"); ok {
		t.Error("expected cache miss after expiration")
	}
}

func TestInMemoryCache_Cleanup(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewInMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "short", testJob(), time.Minute)
	c.Set(ctx, "long", testJob(), time.Hour)

	if removed := c.Cleanup(now.Add(2 * time.Minute)); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestKey(t *testing.T) {
	if Key(postingURL) != Key(postingURL) {
		t.Error("expected same key for same url")
	}
	if Key(postingURL) == Key(postingURL+"?src=linkedin") {
		t.Error("expected different keys for different urls")
	}
	if got := Key(postingURL); len(got) != len("jd:")+64 {
		t.Errorf("unexpected key %q", got)
	}
}

type mockFetcher struct {
	FetchFunc func(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error)
	calls     int
}

func (m *mockFetcher) Fetch(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error) {
	m.calls++
	return m.FetchFunc(ctx, apiKey, pageURL)
}

func TestCachingFetcher_HitSkipsScraper(t *testing.T) {
	next := &mockFetcher{FetchFunc: func(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error) {
		return testJob(), nil
	}}
	f := NewCachingFetcher(next, NewInMemoryCache(), time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job, err := f.Fetch(ctx, "fc-key", postingURL)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if job.URL != postingURL {
			t.Errorf("fetch %d: url = %q", i, job.URL)
		}
	}

	if next.calls != 1 {
		t.Errorf("scraper calls = %d, want 1", next.calls)
	}
}

func TestCachingFetcher_ErrorsAreNotCached(t *testing.T) {
	next := &mockFetcher{FetchFunc: func(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error) {
		return nil, domain.ErrJobContentTooShort
	}}
	f := NewCachingFetcher(next, NewInMemoryCache(), time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(ctx, "fc-key", postingURL); !errors.Is(err, domain.ErrJobContentTooShort) {
			t.Fatalf("err = %v, want ErrJobContentTooShort", err)
		}
	}

	if next.calls != 2 {
		t.Errorf("scraper calls = %d, want 2", next.calls)
	}
}
