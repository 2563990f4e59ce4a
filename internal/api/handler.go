package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prettify-ai/coach-gateway/internal/circuitbreaker"
	"github.com/prettify-ai/coach-gateway/internal/config"
	"github.com/prettify-ai/coach-gateway/internal/cost"
	"github.com/prettify-ai/coach-gateway/internal/jobdesc"
	"github.com/prettify-ai/coach-gateway/internal/provider"
	"github.com/prettify-ai/coach-gateway/internal/ratelimit"
	"github.com/prettify-ai/coach-gateway/internal/router"
	"github.com/prettify-ai/coach-gateway/internal/usage"
)

const (
	defaultMaxTokens       = 3000
	defaultTemperature     = 0.7
	defaultUpstreamTimeout = 60 * time.Second
	maxBodyBytes           = 1 << 20

	msgRateLimited      = "Rate limit exceeded. Please try again later."
	msgInvalidBody      = "Invalid request body"
	msgMessagesRequired = "Invalid request: messages array required"
	msgConfigError      = "Server configuration error"
	msgUnavailable      = "AI service temporarily unavailable"
	msgInternal         = "Internal server error"
)

// JobFetcher scrapes a job posting. *jobdesc.Firecrawl implements it.
type JobFetcher interface {
	Fetch(ctx context.Context, apiKey, pageURL string) (*jobdesc.Job, error)
}

type HandlerConfig struct {
	Env             provider.Env
	Limiter         ratelimit.Limiter
	RateLimit       ratelimit.Config
	Router          *router.Router
	Usage           *usage.Tracker
	Breakers        *circuitbreaker.Manager
	Cost            *cost.Calculator
	JobFetcher      JobFetcher
	AllowedOrigins  []string
	UpstreamTimeout time.Duration
	HealthCheckers  []HealthChecker
	Version         string
}

type Handler struct {
	env             provider.Env
	limiter         ratelimit.Limiter
	rateLimit       ratelimit.Config
	router          *router.Router
	usage           *usage.Tracker
	breakers        *circuitbreaker.Manager
	cost            *cost.Calculator
	jobFetcher      JobFetcher
	allowedOrigins  []string
	upstreamTimeout time.Duration
	healthCheckers  []HealthChecker
	version         string
	now             func() time.Time
	mux             *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	rateLimit := cfg.RateLimit
	if rateLimit.Window <= 0 {
		rateLimit = ratelimit.DefaultConfig
	}

	upstreamTimeout := cfg.UpstreamTimeout
	if upstreamTimeout <= 0 {
		upstreamTimeout = defaultUpstreamTimeout
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = config.DefaultAllowedOrigins
	}

	env := cfg.Env
	if env.Vars == nil {
		env.Vars = config.NewResolver(config.EnvSource{})
	}

	breakers := cfg.Breakers
	if breakers == nil {
		breakers = circuitbreaker.NewManager(circuitbreaker.DefaultConfig())
	}

	costCalc := cfg.Cost
	if costCalc == nil {
		costCalc = cost.NewCalculator()
	}

	h := &Handler{
		env:             env,
		limiter:         cfg.Limiter,
		rateLimit:       rateLimit,
		router:          cfg.Router,
		usage:           cfg.Usage,
		breakers:        breakers,
		cost:            costCalc,
		jobFetcher:      cfg.JobFetcher,
		allowedOrigins:  origins,
		upstreamTimeout: upstreamTimeout,
		healthCheckers:  cfg.HealthCheckers,
		version:         cfg.Version,
		now:             time.Now,
		mux:             http.NewServeMux(),
	}

	h.mux.Handle("POST /api/chat", h.cors(http.HandlerFunc(h.handleChat)))
	h.mux.Handle("OPTIONS /api/chat", h.cors(http.HandlerFunc(handlePreflight)))
	h.mux.Handle("POST /api/fetch-jd", h.cors(http.HandlerFunc(h.handleFetchJD)))
	h.mux.Handle("OPTIONS /api/fetch-jd", h.cors(http.HandlerFunc(handlePreflight)))
	h.mux.HandleFunc("GET /api/usage", h.handleUsage)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", handleHealthReadyWithCheckers(h.healthCheckers, 5*time.Second, h.version))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// corsOrigin echoes an allow-listed Origin and otherwise answers with the
// primary origin, which is also what non-browser callers get.
func (h *Handler) corsOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	if origin != "" && slices.Contains(h.allowedOrigins, origin) {
		return origin
	}
	return h.allowedOrigins[0]
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", h.corsOrigin(r))
		hdr.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type")
		hdr.Add("Vary", "Origin")
		next.ServeHTTP(w, r)
	})
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type usageResponse struct {
	Usage           usage.Summary     `json:"usage"`
	Provider        router.Info       `json:"provider"`
	CircuitBreakers map[string]string `json:"circuitBreakers"`
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	summary := h.usage.Summary()

	writeJSON(w, http.StatusOK, usageResponse{
		Usage:           summary,
		Provider:        h.router.Info(h.env),
		CircuitBreakers: h.breakers.States(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
