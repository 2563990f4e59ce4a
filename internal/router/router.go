// Package router decides which provider serves a chat request. Selection is a
// pure function of configuration, provider availability and free-tier usage;
// it never performs network I/O.
package router

import (
	"context"
	"fmt"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

// Configuration keys read through the environment resolver on every request.
const (
	StrategyKey = "AI_STRATEGY"
	PrimaryKey  = "AI_PROVIDER"
	ModelKey    = "AI_MODEL"
)

// Adapter translates the canonical chat request into one provider's wire
// format. Every provider implements the same contract.
type Adapter interface {
	ID() provider.Name
	Call(ctx context.Context, credential, model string, messages []domain.Message, opts domain.CallOptions) (*domain.Completion, error)
}

// FreeTier reports whether the binding provider's daily allowance is spent.
type FreeTier interface {
	IsFreeTierExhausted() bool
}

type Strategy string

const (
	StrategySingle    Strategy = "single"
	StrategyFreeFirst Strategy = "free-first"
	StrategyCheapest  Strategy = "cheapest"
)

var (
	freeFirstFallback = []provider.Name{provider.Groq, provider.Gemini}
	cheapestOrder     = []provider.Name{provider.Groq, provider.Gemini, provider.Cloudflare, provider.OpenAI, provider.Anthropic}
)

// ParseStrategy maps s onto a strategy. Empty or unknown values mean free-first.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategySingle, StrategyCheapest:
		return Strategy(s)
	default:
		return StrategyFreeFirst
	}
}

func (s Strategy) defaultPrimary() provider.Name {
	if s == StrategyFreeFirst {
		return provider.Cloudflare
	}
	return provider.Groq
}

type Router struct {
	adapters map[provider.Name]Adapter
	freeTier FreeTier
}

func New(adapters []Adapter, freeTier FreeTier) *Router {
	m := make(map[provider.Name]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.ID()] = a
	}
	return &Router{
		adapters: m,
		freeTier: freeTier,
	}
}

// Route is a fully resolved selection.
type Route struct {
	Provider provider.Name
	Model    string
	Adapter  Adapter
}

func (r *Router) Strategy(env provider.Env) Strategy {
	return ParseStrategy(env.Vars.Get(StrategyKey))
}

// Primary returns the configured primary provider, or the strategy's default
// when it is unset or not a known provider.
func (r *Router) Primary(env provider.Env) provider.Name {
	if name, ok := provider.Parse(env.Vars.Get(PrimaryKey)); ok {
		return name
	}
	return r.Strategy(env).defaultPrimary()
}

// SelectProvider applies the configured strategy. Under single the primary is
// returned even when it has no credential, so misconfiguration fails loudly
// downstream instead of being silently substituted.
func (r *Router) SelectProvider(env provider.Env) provider.Name {
	primary := r.Primary(env)

	switch r.Strategy(env) {
	case StrategySingle:
		return primary

	case StrategyFreeFirst:
		if provider.IsConfigured(provider.Cloudflare, env) && !r.freeTierExhausted() {
			return provider.Cloudflare
		}
		for _, name := range freeFirstFallback {
			if provider.IsConfigured(name, env) {
				return name
			}
		}

	case StrategyCheapest:
		for _, name := range cheapestOrder {
			if provider.IsConfigured(name, env) {
				return name
			}
		}
	}

	return primary
}

// Resolve selects a provider and pairs it with its model and adapter. The
// AI_MODEL override, when set, replaces the registry default.
func (r *Router) Resolve(env provider.Env) (Route, error) {
	name := r.SelectProvider(env)

	info, ok := provider.Lookup(name)
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}

	adapter, ok := r.adapters[name]
	if !ok {
		return Route{}, fmt.Errorf("%w: no adapter for %s", domain.ErrProviderNotConfigured, name)
	}

	model := info.Model
	if override := env.Vars.Get(ModelKey); override != "" {
		model = override
	}

	return Route{
		Provider: name,
		Model:    model,
		Adapter:  adapter,
	}, nil
}

func (r *Router) GetAdapter(name provider.Name) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Info is the selection state exposed for observability.
type Info struct {
	Strategy            Strategy        `json:"strategy"`
	Primary             provider.Name   `json:"primary"`
	Selected            provider.Name   `json:"selected"`
	Configured          []provider.Name `json:"configured"`
	CloudflareExhausted bool            `json:"cloudflareExhausted"`
}

func (r *Router) Info(env provider.Env) Info {
	configured := provider.Configured(env)
	if configured == nil {
		configured = []provider.Name{}
	}
	return Info{
		Strategy:            r.Strategy(env),
		Primary:             r.Primary(env),
		Selected:            r.SelectProvider(env),
		Configured:          configured,
		CloudflareExhausted: r.freeTierExhausted(),
	}
}

func (r *Router) freeTierExhausted() bool {
	return r.freeTier != nil && r.freeTier.IsFreeTierExhausted()
}
