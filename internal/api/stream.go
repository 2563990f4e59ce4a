package api

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/metrics"
	"github.com/prettify-ai/coach-gateway/internal/router"
)

var dataPrefix = []byte("data:")

// Text delta locations across the SSE dialects relayed by the gateway:
// OpenAI-compatible, Workers AI, Anthropic and Gemini.
var textPaths = []string{
	"choices.0.delta.content",
	"response",
	"delta.text",
	"candidates.0.content.parts.0.text",
}

// streamStats is what the relay learned from the events it forwarded.
type streamStats struct {
	completionChars  int
	promptTokens     int
	completionTokens int
	reportedUsage    bool
	skipped          int
	bytes            int64
}

// observe inspects one SSE line for usage accounting. Lines that are not
// JSON data events are ignored; malformed JSON is counted as skipped.
func (s *streamStats) observe(line []byte) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || string(payload) == "[DONE]" {
		return
	}
	if !gjson.ValidBytes(payload) {
		s.skipped++
		return
	}

	for _, r := range gjson.GetManyBytes(payload, textPaths...) {
		if r.Type == gjson.String {
			s.completionChars += len(r.Str)
		}
	}

	s.observeUsage(payload)
}

func (s *streamStats) observeUsage(payload []byte) {
	res := gjson.GetManyBytes(payload,
		"usage.prompt_tokens", "usage.completion_tokens",
		"x_groq.usage.prompt_tokens", "x_groq.usage.completion_tokens",
		"usageMetadata.promptTokenCount", "usageMetadata.candidatesTokenCount",
		"message.usage.input_tokens", "usage.output_tokens",
	)

	for i := 0; i < 6; i += 2 {
		if res[i].Exists() || res[i+1].Exists() {
			s.promptTokens = int(res[i].Int())
			s.completionTokens = int(res[i+1].Int())
			s.reportedUsage = true
			return
		}
	}

	// Anthropic reports input on message_start and output on message_delta.
	if res[6].Exists() {
		s.promptTokens = int(res[6].Int())
		s.reportedUsage = true
	}
	if res[7].Exists() {
		s.completionTokens = int(res[7].Int())
		s.reportedUsage = true
	}
}

// relay copies body to w line by line, unmodified, flushing after each line.
// It stops at EOF, on a read error, or when the client goes away.
func relay(w io.Writer, flusher http.Flusher, body io.Reader) (streamStats, error) {
	var stats streamStats
	reader := bufio.NewReader(body)

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			n, err := w.Write(line)
			stats.bytes += int64(n)
			if err != nil {
				return stats, err
			}
			flusher.Flush()
			stats.observe(line)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return stats, nil
			}
			return stats, readErr
		}
	}
}

func (h *Handler) serveStream(w http.ResponseWriter, flusher http.Flusher, completion *domain.Completion, route router.Route, messages []domain.Message, logger *slog.Logger, start time.Time) {
	body := completion.Stream
	defer body.Close()

	metrics.IncrementActiveStreams()
	defer metrics.DecrementActiveStreams()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stats, err := relay(w, flusher, body)
	if err != nil {
		logger.Warn("stream relay interrupted", "error", err, "bytes", stats.bytes)
	}
	if stats.skipped > 0 {
		metrics.RecordStreamChunksSkipped(string(route.Provider), stats.skipped)
		logger.Debug("skipped malformed stream events", "count", stats.skipped)
	}

	in, out := stats.promptTokens, stats.completionTokens
	estimated := !stats.reportedUsage
	if estimated {
		in = estimateTokens(promptChars(messages))
		out = estimateTokens(stats.completionChars)
	}

	neurons := h.recordUsage(route, in, out)
	costUSD := h.cost.Calculate(route.Provider, domain.Usage{PromptTokens: in, CompletionTokens: out})

	status := "success"
	if err != nil {
		status = "interrupted"
	}
	metrics.RecordRequest(string(route.Provider), route.Model, status, time.Since(start).Seconds())
	metrics.RecordTokens(string(route.Provider), route.Model, in, out)
	metrics.RecordCost(string(route.Provider), route.Model, costUSD)

	logger.Info("streaming request completed",
		"input_tokens", in,
		"output_tokens", out,
		"usage_estimated", estimated,
		"neurons", neurons,
		"cost_usd", costUSD,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

func promptChars(messages []domain.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}

// estimateTokens approximates a token count as one token per four bytes.
func estimateTokens(chars int) int {
	return (chars + 3) / 4
}
