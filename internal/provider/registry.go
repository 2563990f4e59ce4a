// Package provider holds the static metadata of every supported LLM backend.
// Selection logic and adapters look providers up here instead of hard-coding
// models, endpoints or credential names.
package provider

import (
	"github.com/prettify-ai/coach-gateway/internal/config"
	"github.com/prettify-ai/coach-gateway/internal/domain"
)

type Name string

const (
	Cloudflare Name = "cloudflare"
	Groq       Name = "groq"
	Gemini     Name = "gemini"
	OpenAI     Name = "openai"
	Anthropic  Name = "anthropic"
)

// Pricing is USD per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

type Info struct {
	Name          Name
	Model         string
	Endpoint      string
	CredentialKey string
	Binding       bool
	Pricing       Pricing
}

var registry = map[Name]Info{
	Cloudflare: {
		Name:    Cloudflare,
		Model:   "@cf/meta/llama-3.1-70b-instruct",
		Binding: true,
		Pricing: Pricing{InputPerMillion: 0.29, OutputPerMillion: 2.25},
	},
	Groq: {
		Name:          Groq,
		Model:         "llama-3.3-70b-versatile",
		Endpoint:      "https://api.groq.com/openai/v1/chat/completions",
		CredentialKey: "GROQ_API_KEY",
		Pricing:       Pricing{InputPerMillion: 0.59, OutputPerMillion: 0.79},
	},
	Gemini: {
		Name:          Gemini,
		Model:         "gemini-1.5-flash",
		Endpoint:      "https://generativelanguage.googleapis.com/v1beta/models",
		CredentialKey: "GEMINI_API_KEY",
		Pricing:       Pricing{InputPerMillion: 0.075, OutputPerMillion: 0.30},
	},
	OpenAI: {
		Name:          OpenAI,
		Model:         "gpt-4o-mini",
		Endpoint:      "https://api.openai.com/v1/chat/completions",
		CredentialKey: "OPENAI_API_KEY",
		Pricing:       Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60},
	},
	Anthropic: {
		Name:          Anthropic,
		Model:         "claude-3-haiku-20240307",
		Endpoint:      "https://api.anthropic.com/v1/messages",
		CredentialKey: "ANTHROPIC_API_KEY",
		Pricing:       Pricing{InputPerMillion: 0.25, OutputPerMillion: 1.25},
	},
}

var all = []Name{Cloudflare, Groq, Gemini, OpenAI, Anthropic}

// All returns every provider in declaration order.
func All() []Name {
	return append([]Name(nil), all...)
}

func Lookup(name Name) (Info, bool) {
	info, ok := registry[name]
	return info, ok
}

// Parse maps a configuration string onto a known provider.
func Parse(s string) (Name, bool) {
	name := Name(s)
	_, ok := registry[name]
	return name, ok
}

// Env is the execution context providers are resolved against: an ordered
// set of configuration sources and the host AI binding, if any.
type Env struct {
	Vars    *config.Resolver
	Binding domain.Binding
}

// IsConfigured reports whether name has what it needs to serve a request:
// the binding object for binding-based providers, a credential otherwise.
func IsConfigured(name Name, env Env) bool {
	info, ok := registry[name]
	if !ok {
		return false
	}
	if info.Binding {
		return env.Binding != nil
	}
	return env.Vars.Get(info.CredentialKey) != ""
}

// Configured lists the providers IsConfigured accepts, in declaration order.
func Configured(env Env) []Name {
	var out []Name
	for _, name := range all {
		if IsConfigured(name, env) {
			out = append(out, name)
		}
	}
	return out
}

// Credential returns the API key for an HTTP provider. Binding-based
// providers have no credential and return "" with a nil error when the
// binding is present.
func Credential(name Name, env Env) (string, error) {
	info, ok := registry[name]
	if !ok {
		return "", domain.ErrUnknownProvider
	}
	if info.Binding {
		if env.Binding == nil {
			return "", domain.ErrProviderNotConfigured
		}
		return "", nil
	}
	key := env.Vars.Get(info.CredentialKey)
	if key == "" {
		return "", domain.ErrProviderNotConfigured
	}
	return key, nil
}
