package cloudflare

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// RESTBinding runs Workers AI models through the Cloudflare REST API.
type RESTBinding struct {
	accountID string
	token     string
	baseURL   string
	client    *http.Client
}

func NewRESTBinding(accountID, token string, client *http.Client) *RESTBinding {
	return &RESTBinding{
		accountID: accountID,
		token:     token,
		baseURL:   defaultBaseURL,
		client:    client,
	}
}

type runEnvelope struct {
	Result   domain.BindingOutput `json:"result"`
	Success  bool                 `json:"success"`
	Errors   []apiMessage         `json:"errors"`
	Messages []apiMessage         `json:"messages"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (b *RESTBinding) Run(ctx context.Context, model string, input domain.BindingInput) (*domain.BindingOutput, error) {
	input.Stream = false

	resp, err := provider.PostJSON(ctx, b.client, provider.Cloudflare, b.runURL(model), b.header(), input)
	if err != nil {
		return nil, err
	}

	var env runEnvelope
	if err := provider.DecodeJSON(provider.Cloudflare, resp, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &domain.ProviderError{
			Provider:   string(provider.Cloudflare),
			StatusCode: resp.StatusCode,
			Body:       joinMessages(env.Errors),
		}
	}

	return &env.Result, nil
}

// RunStream returns the raw SSE body; each event carries {"response": "..."}.
func (b *RESTBinding) RunStream(ctx context.Context, model string, input domain.BindingInput) (io.ReadCloser, error) {
	input.Stream = true

	resp, err := provider.PostJSON(ctx, b.client, provider.Cloudflare, b.runURL(model), b.header(), input)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Model ids such as @cf/meta/llama-3.1-70b-instruct are path segments as-is.
func (b *RESTBinding) runURL(model string) string {
	return fmt.Sprintf("%s/accounts/%s/ai/run/%s", b.baseURL, b.accountID, strings.TrimPrefix(model, "/"))
}

func (b *RESTBinding) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+b.token)
	return h
}

func joinMessages(msgs []apiMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, fmt.Sprintf("%d: %s", m.Code, m.Message))
	}
	return strings.Join(parts, "; ")
}
