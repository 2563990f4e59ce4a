package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAllowedOrigins is the CORS allow-list used when ALLOWED_ORIGINS is
// unset. The first entry is the primary origin.
var DefaultAllowedOrigins = []string{
	"https://prettify-ai.com",
	"https://www.prettify-ai.com",
	"https://prettifyai.pages.dev",
	"http://localhost:4321",
	"http://localhost:3000",
}

type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	RedisURL     string
	OTLPEndpoint string

	// Credentials may also be served from a JSON secret in AWS Secrets Manager.
	AWSRegion     string
	AWSSecretName string

	// The binding-based provider is backed by the Workers AI REST API.
	CloudflareAccountID string
	CloudflareAPIToken  string

	FirecrawlAPIKey string
	// JobCacheTTL is how long scraped postings are reused; zero disables it.
	JobCacheTTL time.Duration

	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string

	UpstreamTimeout time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		Addr:                getEnv("ADDR", ":8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		RedisURL:            getEnv("REDIS_URL", ""),
		OTLPEndpoint:        getEnv("OTLP_ENDPOINT", ""),
		AWSRegion:           getEnv("AWS_REGION", ""),
		AWSSecretName:       getEnv("AWS_SECRET_NAME", ""),
		CloudflareAccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		CloudflareAPIToken:  getEnv("CLOUDFLARE_API_TOKEN", ""),
		FirecrawlAPIKey:     getEnv("FIRECRAWL_API_KEY", ""),
		JobCacheTTL:         getDurationEnv("JD_CACHE_TTL", time.Hour),
		RateLimit:           getIntEnv("RATE_LIMIT", 20),
		RateLimitWindow:     getDurationEnv("RATE_LIMIT_WINDOW", time.Hour),
		AllowedOrigins:      getListEnv("ALLOWED_ORIGINS", DefaultAllowedOrigins),
		UpstreamTimeout:     getDurationEnv("UPSTREAM_TIMEOUT", 60*time.Second),
		ShutdownTimeout:     getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv accepts whole seconds or a Go duration string.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
