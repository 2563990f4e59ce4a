// Package openai implements the adapter for OpenAI-compatible chat completion
// APIs. Both OpenAI and Groq speak this format, so one adapter serves both,
// differing only in endpoint and identity.
package openai

import (
	"context"
	"net/http"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

type Provider struct {
	id       provider.Name
	endpoint string
	client   *http.Client
}

// New returns an adapter for the OpenAI-compatible provider id posting to
// endpoint, the full chat completions URL.
func New(id provider.Name, endpoint string, client *http.Client) *Provider {
	return &Provider{
		id:       id,
		endpoint: endpoint,
		client:   client,
	}
}

func (p *Provider) ID() provider.Name {
	return p.id
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream,omitempty"`
}

// Call forwards the messages verbatim. Streaming responses are returned as the
// raw upstream SSE body.
func (p *Provider) Call(ctx context.Context, credential, model string, messages []domain.Message, opts domain.CallOptions) (*domain.Completion, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)
	if opts.Stream {
		header.Set("Accept", "text/event-stream")
	}

	resp, err := provider.PostJSON(ctx, p.client, p.id, p.endpoint, header, chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	})
	if err != nil {
		return nil, err
	}

	if opts.Stream {
		return &domain.Completion{Stream: resp.Body}, nil
	}

	var chatResp domain.ChatResponse
	if err := provider.DecodeJSON(p.id, resp, &chatResp); err != nil {
		return nil, err
	}
	if chatResp.Model == "" {
		chatResp.Model = model
	}

	return &domain.Completion{Response: &chatResp}, nil
}
