package domain

import (
	"context"
	"io"
)

// Binding runs a model on a host-provided AI runtime instead of a plain HTTP
// API. Its presence is what makes the binding-based provider "configured".
type Binding interface {
	Run(ctx context.Context, model string, input BindingInput) (*BindingOutput, error)
	RunStream(ctx context.Context, model string, input BindingInput) (io.ReadCloser, error)
}

type BindingInput struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type BindingOutput struct {
	Response string `json:"response"`
	Usage    *Usage `json:"usage,omitempty"`
}
