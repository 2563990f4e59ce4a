// Package cloudflare implements the binding-based provider. Calls go through a
// domain.Binding rather than a URL and API key; RESTBinding is the binding used
// when the gateway runs outside the Workers runtime.
package cloudflare

import (
	"context"
	"errors"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

type Provider struct {
	binding domain.Binding
	now     func() time.Time
}

// New returns an adapter over binding. A nil binding is allowed; every call
// then fails with domain.ErrProviderNotConfigured.
func New(binding domain.Binding) *Provider {
	return &Provider{
		binding: binding,
		now:     time.Now,
	}
}

func (p *Provider) ID() provider.Name {
	return provider.Cloudflare
}

// Call ignores credential; the binding carries its own authority.
func (p *Provider) Call(ctx context.Context, _ string, model string, messages []domain.Message, opts domain.CallOptions) (*domain.Completion, error) {
	if p.binding == nil {
		return nil, domain.ErrProviderNotConfigured
	}

	input := domain.BindingInput{
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	}

	if opts.Stream {
		body, err := p.binding.RunStream(ctx, model, input)
		if err != nil {
			return nil, wrapBindingError(err)
		}
		return &domain.Completion{Stream: body}, nil
	}

	out, err := p.binding.Run(ctx, model, input)
	if err != nil {
		return nil, wrapBindingError(err)
	}

	return &domain.Completion{Response: p.toChatResponse(out, model)}, nil
}

func (p *Provider) toChatResponse(out *domain.BindingOutput, model string) *domain.ChatResponse {
	resp := &domain.ChatResponse{
		Object:  "chat.completion",
		Created: p.now().Unix(),
		Model:   model,
		Choices: []domain.Choice{
			{
				Message:      domain.Message{Role: domain.RoleAssistant, Content: out.Response},
				FinishReason: "stop",
			},
		},
	}
	if out.Usage != nil {
		u := *out.Usage
		if u.TotalTokens == 0 {
			u.TotalTokens = u.PromptTokens + u.CompletionTokens
		}
		resp.Usage = &u
	}
	return resp
}

func wrapBindingError(err error) error {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.ProviderError{Provider: string(provider.Cloudflare), Err: err}
}
