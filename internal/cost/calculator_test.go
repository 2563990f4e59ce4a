package cost

import (
	"math"
	"sync"
	"testing"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCalculator_Calculate(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name     string
		provider provider.Name
		usage    domain.Usage
		expected float64
	}{
		{
			name:     "groq",
			provider: provider.Groq,
			usage: domain.Usage{
				PromptTokens:     1_000_000,
				CompletionTokens: 500_000,
			},
			expected: 0.59 + 0.395, // 1M * 0.59 + 0.5M * 0.79
		},
		{
			name:     "unknown provider returns zero",
			provider: provider.Name("mistral"),
			usage: domain.Usage{
				PromptTokens:     1000,
				CompletionTokens: 500,
			},
			expected: 0,
		},
		{
			name:     "gemini",
			provider: provider.Gemini,
			usage: domain.Usage{
				PromptTokens:     2000,
				CompletionTokens: 1000,
			},
			expected: 0.00015 + 0.0003, // 2K * 0.075/1M + 1K * 0.30/1M
		},
		{
			name:     "anthropic",
			provider: provider.Anthropic,
			usage: domain.Usage{
				PromptTokens:     4000,
				CompletionTokens: 2000,
			},
			expected: 0.001 + 0.0025,
		},
		{
			name:     "zero usage",
			provider: provider.OpenAI,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.provider, tt.usage)
			if !almostEqual(got, tt.expected) {
				t.Errorf("Calculate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCalculator_SetPricing(t *testing.T) {
	calc := NewCalculator()

	calc.SetPricing(provider.Cloudflare, provider.Pricing{InputPerMillion: 0, OutputPerMillion: 0})

	got := calc.Calculate(provider.Cloudflare, domain.Usage{PromptTokens: 1000, CompletionTokens: 1000})
	if got != 0 {
		t.Errorf("expected 0 after override, got %v", got)
	}
}

func TestCalculator_ConcurrentAccess(t *testing.T) {
	calc := NewCalculator()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			calc.Calculate(provider.OpenAI, domain.Usage{PromptTokens: 100, CompletionTokens: 100})
		}()
		go func() {
			defer wg.Done()
			calc.SetPricing(provider.OpenAI, provider.Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60})
		}()
	}
	wg.Wait()
}

func BenchmarkCalculator_Calculate(b *testing.B) {
	calc := NewCalculator()
	usage := domain.Usage{PromptTokens: 1000, CompletionTokens: 500}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		calc.Calculate(provider.Groq, usage)
	}
}
