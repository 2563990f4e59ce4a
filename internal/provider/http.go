package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prettify-ai/coach-gateway/internal/domain"
)

// maxErrorBody caps how much of an upstream error body is kept for logging.
const maxErrorBody = 8 << 10

// PostJSON marshals payload, POSTs it to url and returns the response when the
// status is 2xx. Any other status is turned into a *domain.ProviderError and the
// body is closed. Transport failures are wrapped the same way so callers can
// rely on errors.Is(err, domain.ErrProviderError).
func PostJSON(ctx context.Context, client *http.Client, name Name, url string, header http.Header, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: string(name), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.ProviderError{
			Provider:   string(name),
			StatusCode: resp.StatusCode,
			Body:       string(errBody),
		}
	}

	return resp, nil
}

// DecodeJSON reads resp's body into v and closes it.
func DecodeJSON(name Name, resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &domain.ProviderError{Provider: string(name), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// SplitSystem separates system messages from the conversation. Multiple system
// messages are joined with a blank line.
func SplitSystem(messages []domain.Message) (system string, rest []domain.Message) {
	rest = make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
