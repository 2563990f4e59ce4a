package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/metrics"
	"github.com/prettify-ai/coach-gateway/internal/provider"
	"github.com/prettify-ai/coach-gateway/internal/ratelimit"
	"github.com/prettify-ai/coach-gateway/internal/router"
	"github.com/prettify-ai/coach-gateway/internal/telemetry"
	"github.com/prettify-ai/coach-gateway/internal/usage"
)

// chatRequestBody distinguishes absent options from zero values.
type chatRequestBody struct {
	Messages    []domain.Message `json:"messages"`
	MaxTokens   *int             `json:"max_tokens"`
	Temperature *float64         `json:"temperature"`
	Stream      *bool            `json:"stream"`
}

func (b chatRequestBody) toChatRequest() domain.ChatRequest {
	req := domain.ChatRequest{
		Messages:    b.Messages,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
	if b.MaxTokens != nil {
		req.MaxTokens = *b.MaxTokens
	}
	if b.Temperature != nil {
		req.Temperature = *b.Temperature
	}
	if b.Stream != nil {
		req.Stream = *b.Stream
	}
	return req
}

func validateChatRequest(req domain.ChatRequest) (string, bool) {
	if len(req.Messages) == 0 {
		return msgMessagesRequired, false
	}
	if req.MaxTokens <= 0 {
		return "Invalid request: max_tokens must be positive", false
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return "Invalid request: temperature must be between 0 and 2", false
	}
	return "", true
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// checkRateLimit counts the request against key and writes the 429 itself
// when it is rejected. It reports whether the caller may proceed.
func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, key, route string, logger *slog.Logger) bool {
	res, err := h.limiter.Check(r.Context(), key, h.rateLimit)
	if err != nil {
		logger.Error("rate limiter error", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return false
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

	if !res.Allowed {
		metrics.RecordRateLimitHit(route)
		logger.Warn("rate limit exceeded", "reset_at", res.ResetAt)
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(h.now())))
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return false
	}
	return true
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	clientIP := ratelimit.ClientIP(r)
	logger := slog.With("request_id", reqID, "client_ip", clientIP)

	w.Header().Set("X-Request-ID", reqID)

	if !h.checkRateLimit(w, r, clientIP, "chat", logger) {
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		logger.Debug("invalid chat body", "error", err)
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	req := body.toChatRequest()
	if msg, ok := validateChatRequest(req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	route, err := h.router.Resolve(h.env)
	if err != nil {
		logger.Error("provider resolution failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgConfigError)
		return
	}
	logger = logger.With("provider", route.Provider, "model", route.Model)

	credential, err := provider.Credential(route.Provider, h.env)
	if err != nil {
		logger.Error("provider not configured", "error", err)
		metrics.RecordRequest(string(route.Provider), route.Model, "config_error", time.Since(start).Seconds())
		writeError(w, http.StatusInternalServerError, msgConfigError)
		return
	}

	breaker := h.breakers.Get(route.Provider)
	if err := breaker.Allow(); err != nil {
		logger.Warn("circuit breaker open")
		metrics.RecordProviderError(string(route.Provider), "circuit_open")
		metrics.RecordRequest(string(route.Provider), route.Model, "error", time.Since(start).Seconds())
		writeError(w, http.StatusBadGateway, msgUnavailable)
		return
	}

	var flusher http.Flusher
	if req.Stream {
		f, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		flusher = f
	}

	ctx, span := telemetry.StartUpstreamSpan(r.Context(), string(route.Provider), route.Model, reqID, req.Stream)
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Only connecting and waiting for the response head is bounded; a stream
	// may outlive the timeout once it has started.
	timer := time.AfterFunc(h.upstreamTimeout, cancel)

	completion, err := route.Adapter.Call(ctx, credential, route.Model, req.Messages, domain.CallOptions{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	})
	timedOut := !timer.Stop()

	if err != nil {
		// A caller that went away is not a provider failure.
		if r.Context().Err() != nil && !timedOut {
			logger.Warn("client disconnected before upstream response", "error", err)
			metrics.RecordRequest(string(route.Provider), route.Model, "canceled", time.Since(start).Seconds())
			return
		}

		telemetry.RecordError(span, err)
		h.logUpstreamError(logger, route, err, timedOut)
		metrics.RecordRequest(string(route.Provider), route.Model, "error", time.Since(start).Seconds())
		if errors.Is(err, domain.ErrProviderNotConfigured) {
			writeError(w, http.StatusInternalServerError, msgConfigError)
			return
		}
		breaker.RecordFailure()
		writeError(w, http.StatusBadGateway, msgUnavailable)
		return
	}
	breaker.RecordSuccess()

	if req.Stream {
		h.serveStream(w, flusher, completion, route, req.Messages, logger, start)
		return
	}

	resp := completion.Response
	var in, out int
	if resp.Usage != nil {
		in, out = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	} else if isBinding(route.Provider) {
		in = estimateTokens(promptChars(req.Messages))
		out = estimateTokens(len(resp.Content()))
	}
	neurons := h.recordUsage(route, in, out)

	costUSD := h.cost.Calculate(route.Provider, domain.Usage{PromptTokens: in, CompletionTokens: out})
	telemetry.AddTokenAttributes(span, in, out)
	telemetry.AddCostAttribute(span, costUSD)
	if neurons > 0 {
		telemetry.AddNeuronAttribute(span, neurons)
	}
	metrics.RecordRequest(string(route.Provider), route.Model, "success", time.Since(start).Seconds())
	metrics.RecordTokens(string(route.Provider), route.Model, in, out)
	metrics.RecordCost(string(route.Provider), route.Model, costUSD)

	logger.Info("request completed",
		"input_tokens", in,
		"output_tokens", out,
		"neurons", neurons,
		"cost_usd", costUSD,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, resp)
}

// recordUsage adds a completed request to the daily tracker. Neurons are only
// charged for the binding provider.
func (h *Handler) recordUsage(route router.Route, in, out int) int {
	var neurons int
	if isBinding(route.Provider) {
		neurons = usage.EstimateNeurons(in, out)
	}
	h.usage.RecordUsage(string(route.Provider), in, out, neurons)
	if neurons > 0 {
		metrics.SetNeuronsUsed(h.usage.Summary().CloudflareNeurons.Used)
	}
	return neurons
}

func isBinding(name provider.Name) bool {
	info, ok := provider.Lookup(name)
	return ok && info.Binding
}

// logUpstreamError keeps upstream diagnostics server-side; the caller only
// ever sees the generic message.
func (h *Handler) logUpstreamError(logger *slog.Logger, route router.Route, err error, timedOut bool) {
	errorType := "upstream"
	switch {
	case timedOut || errors.Is(err, context.DeadlineExceeded):
		errorType = "timeout"
	case errors.Is(err, domain.ErrProviderNotConfigured):
		errorType = "config"
	}
	metrics.RecordProviderError(string(route.Provider), errorType)

	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		logger.Error("upstream call failed",
			"error_type", errorType,
			"status", perr.StatusCode,
			"body", perr.Body,
			"error", perr.Err,
		)
		return
	}
	logger.Error("upstream call failed", "error_type", errorType, "error", err)
}
