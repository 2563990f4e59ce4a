package jobdesc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prettify-ai/coach-gateway/internal/domain"
)

func newTestFirecrawl(t *testing.T, h http.HandlerFunc) *Firecrawl {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	f := NewFirecrawl(srv.Client())
	f.endpoint = srv.URL + "/v1/scrape"
	f.now = func() time.Time { return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC) }
	return f
}

var posting = "# Senior Go Engineer\n\nCompany: Acme\n\n" + strings.Repeat("- Build distributed systems in Go.\n", 5)

func TestFetch(t *testing.T) {
	f := newTestFirecrawl(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))

		var req scrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://jobs.example.com/123", req.URL)
		assert.Equal(t, []string{"markdown"}, req.Formats)
		assert.True(t, req.OnlyMainContent)
		assert.Equal(t, 2000, req.WaitFor)

		fmt.Fprintf(w, `{"success":true,"data":{"markdown":%q}}`, posting)
	})

	job, err := f.Fetch(context.Background(), "fc-key", "https://jobs.example.com/123")
	require.NoError(t, err)
	assert.Equal(t, "https://jobs.example.com/123", job.URL)
	assert.Equal(t, posting, job.Markdown)
	assert.Equal(t, time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), job.ScrapedAt)
}

func TestFetch_FallsBackToContent(t *testing.T) {
	f := newTestFirecrawl(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success":true,"data":{"content":%q}}`, posting)
	})

	job, err := f.Fetch(context.Background(), "k", "https://jobs.example.com/1")
	require.NoError(t, err)
	assert.Equal(t, posting, job.Markdown)
}

func TestFetch_NotConfigured(t *testing.T) {
	f := NewFirecrawl(http.DefaultClient)

	_, err := f.Fetch(context.Background(), "", "https://jobs.example.com/1")
	assert.ErrorIs(t, err, domain.ErrJobFetchNotConfigured)
}

func TestFetch_ContentTooShort(t *testing.T) {
	f := newTestFirecrawl(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"markdown":"Sign in to continue"}}`)
	})

	_, err := f.Fetch(context.Background(), "k", "https://www.linkedin.com/jobs/view/1")
	assert.ErrorIs(t, err, domain.ErrJobContentTooShort)
}

func TestFetch_UpstreamError(t *testing.T) {
	f := newTestFirecrawl(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		io.WriteString(w, `{"success":false,"error":"Insufficient credits"}`)
	})

	_, err := f.Fetch(context.Background(), "k", "https://jobs.example.com/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderError)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "firecrawl", perr.Provider)
	assert.Equal(t, http.StatusPaymentRequired, perr.StatusCode)
}

func TestParseURL(t *testing.T) {
	valid := []string{
		"https://www.indeed.com/viewjob?jk=abc",
		"http://careers.example.com/role/1",
	}
	for _, u := range valid {
		_, err := ParseURL(u)
		assert.NoError(t, err, u)
	}

	invalid := []string{
		"",
		"not a url",
		"ftp://example.com/job",
		"/relative/path",
		"https://",
		"://missing-scheme",
	}
	for _, u := range invalid {
		_, err := ParseURL(u)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest, u)
	}
}

func TestIsJobURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.indeed.com/viewjob?jk=123", true},
		{"https://www.linkedin.com/jobs/view/3456", true},
		{"https://boards.greenhouse.io/acme/jobs/42", true},
		{"https://jobs.lever.co/acme/uuid", true},
		{"https://acme.wd5.myworkday.com/careers", true},
		{"https://careers.acme.com/opening", true},
		{"https://example.com/blog/post", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsJobURL(tt.url), tt.url)
	}
}
