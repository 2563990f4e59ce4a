package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_requests_total",
			Help: "Total number of chat requests processed",
		},
		[]string{"provider", "model", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coachgateway_request_duration_seconds",
			Help:    "Chat request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_tokens_total",
			Help: "Total number of tokens processed",
		},
		[]string{"provider", "model", "type"},
	)

	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_cost_usd_total",
			Help: "Total estimated cost in USD",
		},
		[]string{"provider", "model"},
	)

	NeuronsUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coachgateway_cloudflare_neurons_used",
			Help: "Neurons consumed today against the Cloudflare free tier",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coachgateway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_provider_errors_total",
			Help: "Total number of provider errors",
		},
		[]string{"provider", "error_type"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coachgateway_active_streams",
			Help: "Number of streaming responses currently being relayed",
		},
	)

	StreamChunksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_stream_chunks_skipped_total",
			Help: "Streamed data lines that could not be parsed for usage counting",
		},
		[]string{"provider"},
	)

	JobFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_job_fetches_total",
			Help: "Job description fetches by outcome",
		},
		[]string{"status"},
	)

	JobCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachgateway_job_cache_lookups_total",
			Help: "Scraped job cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordRequest(provider, model, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(provider, model, status).Inc()
	RequestDuration.WithLabelValues(provider, model).Observe(durationSec)
}

func RecordTokens(provider, model string, inputTokens, outputTokens int) {
	TokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}

func RecordCost(provider, model string, costUSD float64) {
	CostTotal.WithLabelValues(provider, model).Add(costUSD)
}

func SetNeuronsUsed(neurons int) {
	NeuronsUsed.Set(float64(neurons))
}

func RecordProviderError(provider, errorType string) {
	ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

func RecordRateLimitHit(route string) {
	RateLimitHits.WithLabelValues(route).Inc()
}

func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

func RecordStreamChunksSkipped(provider string, n int) {
	StreamChunksSkipped.WithLabelValues(provider).Add(float64(n))
}

func RecordJobFetch(status string) {
	JobFetches.WithLabelValues(status).Inc()
}

func RecordJobCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	JobCacheLookups.WithLabelValues(result).Inc()
}

func IncrementActiveStreams() {
	ActiveStreams.Inc()
}

func DecrementActiveStreams() {
	ActiveStreams.Dec()
}
