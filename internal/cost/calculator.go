package cost

import (
	"sync"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

// Calculator prices token usage per provider in USD. Prices default to the
// provider registry and can be overridden.
type Calculator struct {
	mu      sync.RWMutex
	pricing map[provider.Name]provider.Pricing
}

func NewCalculator() *Calculator {
	pricing := make(map[provider.Name]provider.Pricing)
	for _, name := range provider.All() {
		info, _ := provider.Lookup(name)
		pricing[name] = info.Pricing
	}
	return &Calculator{
		pricing: pricing,
	}
}

func (c *Calculator) Calculate(name provider.Name, usage domain.Usage) float64 {
	c.mu.RLock()
	pricing, ok := c.pricing[name]
	c.mu.RUnlock()
	if !ok {
		return 0
	}

	inputCost := float64(usage.PromptTokens) / 1e6 * pricing.InputPerMillion
	outputCost := float64(usage.CompletionTokens) / 1e6 * pricing.OutputPerMillion

	return inputCost + outputCost
}

func (c *Calculator) SetPricing(name provider.Name, pricing provider.Pricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[name] = pricing
}
