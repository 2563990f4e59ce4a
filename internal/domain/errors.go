package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrProviderError         = errors.New("provider error")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
	ErrJobFetchNotConfigured = errors.New("job description fetching not configured")
	ErrJobContentTooShort    = errors.New("job posting content too short")
)

// ProviderError is returned when an upstream call fails. Body holds the raw
// upstream text and must only ever be logged.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
	default:
		return e.Provider + " error"
	}
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderError
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
