// Package circuitbreaker fails fast on providers that keep erroring.
//
// States:
//   - Closed: calls pass through and failures are counted
//   - Open: calls are rejected until the cool-down elapses
//   - Half-Open: trial calls pass; enough successes close the breaker, one failure reopens it
//
// Breakers only guard dispatch. They never influence which provider is chosen.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prettify-ai/coach-gateway/internal/domain"
	"github.com/prettify-ai/coach-gateway/internal/provider"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Timeout          time.Duration // open duration before a trial call
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// Breaker guards a single provider.
type Breaker struct {
	mu       sync.Mutex
	state    State
	failures int
	success  int
	openedAt time.Time
	config   Config
	now      func() time.Time
	onChange func(State)
}

func New(cfg Config) *Breaker {
	return &Breaker{
		state:  StateClosed,
		config: cfg,
		now:    time.Now,
	}
}

// Allow returns domain.ErrCircuitBreakerOpen while the breaker is open. The
// first call after the cool-down moves it to half-open and is let through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.config.Timeout {
		return domain.ErrCircuitBreakerOpen
	}
	b.setState(StateHalfOpen)
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.success++
		if b.success >= b.config.SuccessThreshold {
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.setState(StateOpen)
}

// setState resets counters on every transition. Callers hold mu.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.failures = 0
	b.success = 0
	if b.onChange != nil {
		b.onChange(s)
	}
}

// Manager lazily creates one Breaker per provider.
type Manager struct {
	mu       sync.RWMutex
	breakers map[provider.Name]*Breaker
	config   Config
	onChange func(provider.Name, State)
}

type ManagerOption func(*Manager)

// WithStateChange registers fn to observe every state transition, for
// example to export it as a metric. fn runs with the breaker's lock held and
// must not call back into it.
func WithStateChange(fn func(provider.Name, State)) ManagerOption {
	return func(m *Manager) {
		m.onChange = fn
	}
}

func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		breakers: make(map[provider.Name]*Breaker),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Get(name provider.Name) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}

	b = New(m.config)
	if m.onChange != nil {
		b.onChange = func(s State) { m.onChange(name, s) }
	}
	m.breakers[name] = b
	return b
}

// States reports every breaker created so far.
func (m *Manager) States() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]string, len(m.breakers))
	for name, b := range m.breakers {
		states[string(name)] = b.State().String()
	}
	return states
}
