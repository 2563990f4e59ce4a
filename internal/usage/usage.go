// Package usage tracks the current UTC day's token consumption across
// providers, plus the neuron units charged against the binding provider's
// free daily allowance. The day rolls over lazily on every read and write.
package usage

import (
	"maps"
	"sync"
	"time"
)

const (
	// FreeTierNeurons is the binding provider's daily free allowance.
	FreeTierNeurons = 10000
	// exhaustionNeurons is 75% of the allowance; selection moves away from
	// the free tier at this point.
	exhaustionNeurons = FreeTierNeurons * 3 / 4

	dateLayout = "2006-01-02"
)

type ProviderUsage struct {
	Input    int `json:"input"`
	Output   int `json:"output"`
	Requests int `json:"requests"`
}

// Daily is one UTC day's accumulated usage.
type Daily struct {
	Date         string                   `json:"date"`
	Neurons      int                      `json:"neurons"`
	InputTokens  int                      `json:"inputTokens"`
	OutputTokens int                      `json:"outputTokens"`
	Requests     int                      `json:"requests"`
	ByProvider   map[string]ProviderUsage `json:"byProvider"`
}

type Tracker struct {
	mu    sync.Mutex
	daily Daily
	now   func() time.Time
}

func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	t := &Tracker{now: now}
	t.daily = t.empty()
	return t
}

func (t *Tracker) today() string {
	return t.now().UTC().Format(dateLayout)
}

func (t *Tracker) empty() Daily {
	return Daily{
		Date:       t.today(),
		ByProvider: make(map[string]ProviderUsage),
	}
}

// current returns today's accumulator, replacing a stale one. Callers hold mu.
func (t *Tracker) current() *Daily {
	if t.daily.Date != t.today() {
		t.daily = t.empty()
	}
	return &t.daily
}

// RecordUsage adds one request's tokens to today's totals. neurons is only
// non-zero for the binding provider.
func (t *Tracker) RecordUsage(provider string, inputTokens, outputTokens, neurons int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.current()
	d.InputTokens += inputTokens
	d.OutputTokens += outputTokens
	d.Requests++
	if neurons > 0 {
		d.Neurons += neurons
	}

	p := d.ByProvider[provider]
	p.Input += inputTokens
	p.Output += outputTokens
	p.Requests++
	d.ByProvider[provider] = p
}

// Daily returns a copy of today's usage.
func (t *Tracker) Daily() Daily {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := *t.current()
	d.ByProvider = maps.Clone(d.ByProvider)
	return d
}

func (t *Tracker) IsFreeTierExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current().Neurons >= exhaustionNeurons
}

func (t *Tracker) RemainingFreeNeurons() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return max(0, FreeTierNeurons-t.current().Neurons)
}

// Reset discards today's usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.daily = t.empty()
}

// EstimateNeurons converts tokens to neuron units: ceil(in/10 + out/5).
// Output tokens weigh twice as much as input tokens.
func EstimateNeurons(inputTokens, outputTokens int) int {
	if inputTokens <= 0 && outputTokens <= 0 {
		return 0
	}
	return (inputTokens + 2*outputTokens + 9) / 10
}

type TokenTotals struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type NeuronStatus struct {
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Exhausted bool `json:"exhausted"`
}

type Summary struct {
	Date              string                   `json:"date"`
	TotalRequests     int                      `json:"totalRequests"`
	TotalTokens       TokenTotals              `json:"totalTokens"`
	CloudflareNeurons NeuronStatus             `json:"cloudflareNeurons"`
	ByProvider        map[string]ProviderUsage `json:"byProvider"`
}

// Summary is a consistent read-only view of today's usage.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.current()
	return Summary{
		Date:          d.Date,
		TotalRequests: d.Requests,
		TotalTokens:   TokenTotals{Input: d.InputTokens, Output: d.OutputTokens},
		CloudflareNeurons: NeuronStatus{
			Used:      d.Neurons,
			Remaining: max(0, FreeTierNeurons-d.Neurons),
			Exhausted: d.Neurons >= exhaustionNeurons,
		},
		ByProvider: maps.Clone(d.ByProvider),
	}
}
