package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/prettify-ai/coach-gateway/internal/api"
	"github.com/prettify-ai/coach-gateway/internal/cache"
	"github.com/prettify-ai/coach-gateway/internal/circuitbreaker"
	"github.com/prettify-ai/coach-gateway/internal/config"
	"github.com/prettify-ai/coach-gateway/internal/cost"
	"github.com/prettify-ai/coach-gateway/internal/httputil"
	"github.com/prettify-ai/coach-gateway/internal/jobdesc"
	"github.com/prettify-ai/coach-gateway/internal/metrics"
	"github.com/prettify-ai/coach-gateway/internal/provider"
	"github.com/prettify-ai/coach-gateway/internal/provider/anthropic"
	"github.com/prettify-ai/coach-gateway/internal/provider/cloudflare"
	"github.com/prettify-ai/coach-gateway/internal/provider/gemini"
	"github.com/prettify-ai/coach-gateway/internal/provider/openai"
	"github.com/prettify-ai/coach-gateway/internal/ratelimit"
	"github.com/prettify-ai/coach-gateway/internal/router"
	"github.com/prettify-ai/coach-gateway/internal/secrets"
	"github.com/prettify-ai/coach-gateway/internal/telemetry"
	"github.com/prettify-ai/coach-gateway/internal/usage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting coach gateway", "addr", cfg.Addr, "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, "coach-gateway", version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	vars, err := newResolver(ctx, cfg)
	if err != nil {
		slog.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	client := httputil.DefaultClient()

	env := provider.Env{Vars: vars}
	if cfg.CloudflareAccountID != "" && cfg.CloudflareAPIToken != "" {
		env.Binding = cloudflare.NewRESTBinding(cfg.CloudflareAccountID, cfg.CloudflareAPIToken, client)
		slog.Info("workers ai binding enabled")
	}

	adapters := []router.Adapter{
		cloudflare.New(env.Binding),
		openai.New(provider.Groq, endpoint(provider.Groq), client),
		gemini.New(endpoint(provider.Gemini), client),
		openai.New(provider.OpenAI, endpoint(provider.OpenAI), client),
		anthropic.New(endpoint(provider.Anthropic), client),
	}

	tracker := usage.NewTracker()
	providerRouter := router.New(adapters, tracker)

	info := providerRouter.Info(env)
	if len(info.Configured) == 0 {
		slog.Warn("no providers configured, chat requests will fail")
	}
	slog.Info("provider selection",
		"strategy", info.Strategy,
		"primary", info.Primary,
		"selected", info.Selected,
		"configured", info.Configured,
	)

	var (
		limiter  ratelimit.Limiter
		jobCache cache.Cache
		checkers []api.HealthChecker
	)
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		jobCache = cache.NewRedisCache(redisLimiter.Client())
		checkers = append(checkers, api.NewRedisHealthChecker(redisLimiter.Client()))
		slog.Info("using redis rate limiter")
	} else {
		memLimiter := ratelimit.NewFixedWindow()
		memLimiter.StartSweeper(ctx, 10*time.Minute)
		limiter = memLimiter

		memCache := cache.NewInMemoryCache()
		memCache.StartCleanup(ctx, 10*time.Minute)
		jobCache = memCache
		slog.Info("using in-memory rate limiter")
	}

	var jobFetcher api.JobFetcher = jobdesc.NewFirecrawl(client)
	if vars.Get(jobdesc.CredentialKey) == "" {
		slog.Info("job description fetching disabled, no firecrawl key")
	}
	if cfg.JobCacheTTL > 0 {
		jobFetcher = cache.NewCachingFetcher(jobFetcher, jobCache, cfg.JobCacheTTL)
	}

	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(),
		circuitbreaker.WithStateChange(func(name provider.Name, state circuitbreaker.State) {
			slog.Warn("circuit breaker state changed", "provider", name, "state", state.String())
			metrics.SetCircuitBreakerState(string(name), int(state))
		}),
	)

	handler := api.NewHandler(api.HandlerConfig{
		Env:             env,
		Limiter:         limiter,
		RateLimit:       ratelimit.Config{Limit: cfg.RateLimit, Window: cfg.RateLimitWindow},
		Router:          providerRouter,
		Usage:           tracker,
		Breakers:        breakers,
		Cost:            cost.NewCalculator(),
		JobFetcher:      jobFetcher,
		AllowedOrigins:  cfg.AllowedOrigins,
		UpstreamTimeout: cfg.UpstreamTimeout,
		HealthCheckers:  checkers,
		Version:         version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}

	slog.Info("server stopped")
}

// newResolver layers the AWS secret, when one is named, in front of the
// process environment.
func newResolver(ctx context.Context, cfg *config.Config) (*config.Resolver, error) {
	vars := config.NewResolver(config.EnvSource{})
	if cfg.AWSSecretName == "" {
		return vars, nil
	}

	store, err := secrets.NewAWS(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	creds, err := store.Credentials(ctx, cfg.AWSSecretName)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded credentials from secrets manager", "secret", cfg.AWSSecretName, "keys", len(creds))
	return vars.With(config.NewMapSource("secretsmanager", creds)), nil
}

func endpoint(name provider.Name) string {
	info, _ := provider.Lookup(name)
	return info.Endpoint
}

func setupLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "text" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	}
	slog.SetDefault(slog.New(handler))
}
