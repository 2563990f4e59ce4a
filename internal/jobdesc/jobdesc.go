// Package jobdesc fetches job postings as markdown through the Firecrawl
// scrape API so the coach can tailor a resume to them.
package jobdesc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

const (
	// CredentialKey names the Firecrawl API key in the environment.
	CredentialKey = "FIRECRAWL_API_KEY"

	defaultEndpoint = "https://api.firecrawl.dev/v1/scrape"
	firecrawl       = provider.Name("firecrawl")

	// MinContentLength is the shortest markdown accepted as a job posting.
	MinContentLength = 100

	// waitForMillis gives client-rendered boards time to load.
	waitForMillis = 2000
)

var jobURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)indeed\.com/viewjob`),
	regexp.MustCompile(`(?i)indeed\.com/job/`),
	regexp.MustCompile(`(?i)linkedin\.com/jobs/view`),
	regexp.MustCompile(`(?i)greenhouse\.io/.*/jobs`),
	regexp.MustCompile(`(?i)lever\.co/`),
	regexp.MustCompile(`(?i)boards\.greenhouse\.io`),
	regexp.MustCompile(`(?i)workday\.com`),
	regexp.MustCompile(`(?i)careers\.`),
	regexp.MustCompile(`(?i)jobs\.`),
}

// IsJobURL reports whether rawURL looks like a posting on a known job board.
func IsJobURL(rawURL string) bool {
	for _, re := range jobURLPatterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// ParseURL accepts absolute http and https URLs only.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported url %q", domain.ErrInvalidRequest, rawURL)
	}
	return u, nil
}

type Job struct {
	URL       string    `json:"url"`
	Markdown  string    `json:"markdown"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

type Firecrawl struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

func NewFirecrawl(client *http.Client) *Firecrawl {
	return &Firecrawl{
		endpoint: defaultEndpoint,
		client:   client,
		now:      time.Now,
	}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Content  string `json:"content"`
	} `json:"data"`
}

// Fetch scrapes pageURL with apiKey. An empty key yields
// domain.ErrJobFetchNotConfigured; too little extracted text yields
// domain.ErrJobContentTooShort.
func (f *Firecrawl) Fetch(ctx context.Context, apiKey, pageURL string) (*Job, error) {
	if apiKey == "" {
		return nil, domain.ErrJobFetchNotConfigured
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	resp, err := provider.PostJSON(ctx, f.client, firecrawl, f.endpoint, header, scrapeRequest{
		URL:             pageURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		WaitFor:         waitForMillis,
	})
	if err != nil {
		return nil, err
	}

	var sr scrapeResponse
	if err := provider.DecodeJSON(firecrawl, resp, &sr); err != nil {
		return nil, err
	}

	markdown := sr.Data.Markdown
	if markdown == "" {
		markdown = sr.Data.Content
	}
	if len(markdown) < MinContentLength {
		return nil, domain.ErrJobContentTooShort
	}

	return &Job{
		URL:       pageURL,
		Markdown:  markdown,
		ScrapedAt: f.now().UTC(),
	}, nil
}
