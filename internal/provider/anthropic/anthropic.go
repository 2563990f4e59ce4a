package anthropic

import (
	"context"
	"net/http"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

const anthropicVersion = "2023-06-01"

type Provider struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// New returns an adapter posting to endpoint, the full messages API URL.
func New(endpoint string, client *http.Client) *Provider {
	return &Provider{
		endpoint: endpoint,
		client:   client,
		now:      time.Now,
	}
}

func (p *Provider) ID() provider.Name {
	return provider.Anthropic
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (p *Provider) Call(ctx context.Context, credential, model string, messages []domain.Message, opts domain.CallOptions) (*domain.Completion, error) {
	header := http.Header{}
	header.Set("x-api-key", credential)
	header.Set("anthropic-version", anthropicVersion)

	resp, err := provider.PostJSON(ctx, p.client, provider.Anthropic, p.endpoint, header, toAnthropicRequest(model, messages, opts))
	if err != nil {
		return nil, err
	}

	if opts.Stream {
		return &domain.Completion{Stream: resp.Body}, nil
	}

	var anthropicResp anthropicResponse
	if err := provider.DecodeJSON(provider.Anthropic, resp, &anthropicResp); err != nil {
		return nil, err
	}

	return &domain.Completion{Response: p.toChatResponse(anthropicResp, model)}, nil
}

func toAnthropicRequest(model string, messages []domain.Message, opts domain.CallOptions) anthropicRequest {
	system, rest := provider.SplitSystem(messages)

	msgs := make([]anthropicMessage, 0, len(rest))
	for _, m := range rest {
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	return anthropicRequest{
		Model:       model,
		Messages:    msgs,
		System:      system,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	}
}

func (p *Provider) toChatResponse(resp anthropicResponse, model string) *domain.ChatResponse {
	var content string
	for _, c := range resp.Content {
		if c.Type == "text" {
			content += c.Text
		}
	}

	if resp.Model != "" {
		model = resp.Model
	}

	return &domain.ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: p.now().Unix(),
		Model:   model,
		Choices: []domain.Choice{
			{
				Index:        0,
				Message:      domain.Message{Role: domain.RoleAssistant, Content: content},
				FinishReason: mapStopReason(resp.StopReason),
			},
		},
		Usage: &domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}
