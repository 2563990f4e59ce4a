package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/jobdesc"
	"github.com/prettify-ai/coach-gateway/internal/metrics"
	"github.com/prettify-ai/coach-gateway/internal/ratelimit"
)

// Job description fetches have their own bucket in the shared limiter so
// they do not spend the caller's chat quota.
const fetchJDKeyPrefix = "fetch-jd:"

type fetchJDRequest struct {
	URL string `json:"url"`
}

type fetchJDResponse struct {
	Success bool         `json:"success"`
	Job     *jobdesc.Job `json:"job"`
}

// fallbackResponse tells the UI to ask the user to paste the posting text.
type fallbackResponse struct {
	Error    string `json:"error"`
	Fallback bool   `json:"fallback"`
	Message  string `json:"message"`
}

func writeFallback(w http.ResponseWriter, status int, errMsg, message string) {
	writeJSON(w, status, fallbackResponse{Error: errMsg, Fallback: true, Message: message})
}

func (h *Handler) handleFetchJD(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	clientIP := ratelimit.ClientIP(r)
	logger := slog.With("request_id", reqID, "client_ip", clientIP)

	w.Header().Set("X-Request-ID", reqID)

	if !h.checkRateLimit(w, r, fetchJDKeyPrefix+clientIP, "fetch-jd", logger) {
		return
	}

	var body fetchJDRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if _, err := jobdesc.ParseURL(body.URL); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL format")
		return
	}

	apiKey := h.env.Vars.Get(jobdesc.CredentialKey)
	if h.jobFetcher == nil || apiKey == "" {
		metrics.RecordJobFetch("not_configured")
		writeFallback(w, http.StatusServiceUnavailable,
			"JD fetching not configured",
			"Please paste the job description text directly instead of the URL.")
		return
	}

	logger = logger.With("url", body.URL, "known_board", jobdesc.IsJobURL(body.URL))
	logger.Info("fetching job description")

	job, err := h.jobFetcher.Fetch(r.Context(), apiKey, body.URL)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobFetchNotConfigured):
		metrics.RecordJobFetch("not_configured")
		writeFallback(w, http.StatusServiceUnavailable,
			"JD fetching not configured",
			"Please paste the job description text directly instead of the URL.")
		return
	case errors.Is(err, domain.ErrJobContentTooShort):
		metrics.RecordJobFetch("too_short")
		writeFallback(w, http.StatusUnprocessableEntity,
			"Could not extract job content",
			"The page didn't contain readable job content. Please paste the job description directly.")
		return
	default:
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			logger.Error("job fetch failed", "status", perr.StatusCode, "body", perr.Body, "error", perr.Err)
		} else {
			logger.Error("job fetch failed", "error", err)
		}
		metrics.RecordJobFetch("error")
		writeFallback(w, http.StatusBadGateway,
			"Failed to fetch job posting",
			"Could not fetch the job posting. Please paste the job description text directly.")
		return
	}

	metrics.RecordJobFetch("success")
	writeJSON(w, http.StatusOK, fetchJDResponse{Success: true, Job: job})
}
