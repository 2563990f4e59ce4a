package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *testClock) {
	clock := &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(cfg)
	cb.now = clock.Now
	return cb, clock
}

func TestBreaker_StartsClosedState(t *testing.T) {
	cb := New(DefaultConfig())

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", cb.State())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := Config{FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Minute}
	cb, _ := newTestBreaker(cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("expected StateClosed below threshold, got %v", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen after %d failures, got %v", cfg.FailureThreshold, cb.State())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", cb.State())
	}
	if cb.Failures() != 1 {
		t.Errorf("failures = %d, want 1", cb.Failures())
	}
}

func TestBreaker_BlocksWhenOpen(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})

	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(500 * time.Millisecond)
	if err := cb.Allow(); !errors.Is(err, domain.ErrCircuitBreakerOpen) {
		t.Errorf("expected ErrCircuitBreakerOpen, got %v", err)
	}
}

func TestBreaker_TransitionsToHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: 50 * time.Millisecond})

	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(50 * time.Millisecond)

	if err := cb.Allow(); err != nil {
		t.Errorf("expected nil after timeout, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen, got %v", cb.State())
	}
}

func TestBreaker_ClosesAfterSuccessInHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 50 * time.Millisecond})

	cb.RecordFailure()
	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen after one success, got %v", cb.State())
	}
	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after successes, got %v", cb.State())
	}
}

func TestBreaker_ReopensOnFailureInHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 50 * time.Millisecond})

	cb.RecordFailure()
	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()

	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen after failure in half-open, got %v", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, domain.ErrCircuitBreakerOpen) {
		t.Errorf("reopened breaker should block, got %v", err)
	}
}

func TestManager_GetCreatesBreaker(t *testing.T) {
	m := NewManager(DefaultConfig())

	cb1 := m.Get(provider.Groq)
	cb2 := m.Get(provider.Groq)

	if cb1 != cb2 {
		t.Error("expected same circuit breaker instance for same provider")
	}

	cb3 := m.Get(provider.Gemini)
	if cb1 == cb3 {
		t.Error("expected different circuit breaker for different provider")
	}
}

func TestManager_States(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})

	m.Get(provider.Groq)
	m.Get(provider.OpenAI).RecordFailure()

	states := m.States()
	if states["groq"] != "closed" {
		t.Errorf("groq = %q, want closed", states["groq"])
	}
	if states["openai"] != "open" {
		t.Errorf("openai = %q, want open", states["openai"])
	}
	if len(states) != 2 {
		t.Errorf("expected 2 states, got %d", len(states))
	}
}

func TestManager_WithStateChange(t *testing.T) {
	var mu sync.Mutex
	var got []string

	m := NewManager(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 0}, WithStateChange(func(name provider.Name, s State) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(name)+":"+s.String())
	}))

	cb := m.Get(provider.Anthropic)
	cb.RecordFailure()
	cb.Allow()
	cb.RecordSuccess()

	want := []string{"anthropic:open", "anthropic:half-open", "anthropic:closed"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
