// Package gemini adapts the canonical chat shape to Google's native
// generateContent API. Gemini has no system role, so a system prompt is sent
// as a leading user turn followed by a short model acknowledgement.
package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

const (
	roleUser  = "user"
	roleModel = "model"

	systemAck = "Understood."
)

type Provider struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// New returns an adapter for the models collection at endpoint, for example
// https://generativelanguage.googleapis.com/v1beta/models.
func New(endpoint string, client *http.Client) *Provider {
	return &Provider{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		now:      time.Now,
	}
}

func (p *Provider) ID() provider.Name {
	return provider.Gemini
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (p *Provider) Call(ctx context.Context, credential, model string, messages []domain.Message, opts domain.CallOptions) (*domain.Completion, error) {
	header := http.Header{}
	header.Set("x-goog-api-key", credential)

	resp, err := provider.PostJSON(ctx, p.client, provider.Gemini, p.url(model, opts.Stream), header, toGenerateRequest(messages, opts))
	if err != nil {
		return nil, err
	}

	if opts.Stream {
		return &domain.Completion{Stream: resp.Body}, nil
	}

	var genResp generateResponse
	if err := provider.DecodeJSON(provider.Gemini, resp, &genResp); err != nil {
		return nil, err
	}

	return &domain.Completion{Response: p.toChatResponse(genResp, model)}, nil
}

func (p *Provider) url(model string, stream bool) string {
	u := p.endpoint + "/" + url.PathEscape(model)
	if stream {
		return u + ":streamGenerateContent?alt=sse"
	}
	return u + ":generateContent"
}

func toGenerateRequest(messages []domain.Message, opts domain.CallOptions) generateRequest {
	system, rest := provider.SplitSystem(messages)

	contents := make([]content, 0, len(rest)+2)
	if system != "" {
		contents = append(contents,
			content{Role: roleUser, Parts: []part{{Text: system}}},
			content{Role: roleModel, Parts: []part{{Text: systemAck}}},
		)
	}
	for _, m := range rest {
		role := roleUser
		if m.Role == domain.RoleAssistant {
			role = roleModel
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	return generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
		},
	}
}

func (p *Provider) toChatResponse(resp generateResponse, model string) *domain.ChatResponse {
	var text strings.Builder
	var finish string
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		for _, pt := range c.Content.Parts {
			text.WriteString(pt.Text)
		}
		finish = mapFinishReason(c.FinishReason)
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	total := resp.UsageMetadata.TotalTokenCount
	if total == 0 {
		total = resp.UsageMetadata.PromptTokenCount + resp.UsageMetadata.CandidatesTokenCount
	}

	return &domain.ChatResponse{
		Object:  "chat.completion",
		Created: p.now().Unix(),
		Model:   model,
		Choices: []domain.Choice{
			{
				Message:      domain.Message{Role: domain.RoleAssistant, Content: text.String()},
				FinishReason: finish,
			},
		},
		Usage: &domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      total,
		},
	}
}

func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return "content_filter"
	default:
		return strings.ToLower(reason)
	}
}
