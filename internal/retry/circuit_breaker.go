package retry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	wberr "wirebridge/internal/errors"
)

// ── Circuit breaker state ────────────────────────────────────────────

// State represents the circuit breaker's operational state.
type State int

const (
	// StateClosed is normal operation; requests pass through.
	StateClosed State = iota
	// StateOpen means the service is failing and requests are rejected.
	StateOpen
	// StateHalfOpen allows a limited number of probes to test recovery.
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

func stateOf(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// ── Configuration ────────────────────────────────────────────────────

// CircuitBreakerConfig configures a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in errors and logs.
	Name string
	// MaxFailures is the number of consecutive failures before opening
	// the circuit (default 5).
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before moving to
	// half-open (default 30s).
	ResetTimeout time.Duration
	// HalfOpenMax is the number of consecutive successes in half-open
	// state required to close the circuit (default 2).
	HalfOpenMax int
	// OnStateChange is called whenever the state transitions.  It runs
	// under the breaker's lock, so keep it fast.
	OnStateChange func(from, to State)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  2,
	}
}

// ── CircuitBreaker ───────────────────────────────────────────────────

// CircuitBreaker prevents repeated calls to a failing service by
// tracking consecutive failures and short-circuiting when a threshold
// is crossed.
type CircuitBreaker struct {
	mu            sync.Mutex
	cb            *gobreaker.CircuitBreaker
	settings      gobreaker.Settings
	failures      int
	maxFailures   int
	onStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig()
	}
	maxF := cfg.MaxFailures
	if maxF <= 0 {
		maxF = 5
	}
	rt := cfg.ResetTimeout
	if rt <= 0 {
		rt = 30 * time.Second
	}
	hom := cfg.HalfOpenMax
	if hom <= 0 {
		hom = 2
	}
	name := cfg.Name
	if name == "" {
		name = "wire"
	}

	b := &CircuitBreaker{maxFailures: maxF, onStateChange: cfg.OnStateChange}
	b.settings = gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(hom),
		Timeout:     rt,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(maxF)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if b.onStateChange != nil {
				b.onStateChange(stateOf(from), stateOf(to))
			}
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(b.settings)
	return b
}

// Execute runs fn through the circuit breaker.  When the circuit is
// open, fn is not called and an error matching errors.ErrCircuitOpen
// is returned immediately.
func (b *CircuitBreaker) Execute(fn func() error) error {
	b.mu.Lock()
	cb := b.cb
	b.mu.Unlock()

	ran := false
	_, err := cb.Execute(func() (interface{}, error) {
		ran = true
		return nil, fn()
	})
	if !ran {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s after %d consecutive failures: %w",
				wberr.ErrCircuitOpen, b.settings.Name, b.Failures(), err)
		}
		return err
	}

	b.mu.Lock()
	if err != nil {
		b.failures++
	} else {
		b.failures = 0
	}
	b.mu.Unlock()
	return err
}

// CurrentState returns the current circuit breaker state.
func (b *CircuitBreaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return stateOf(b.cb.State())
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the circuit breaker back to closed state.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	from := stateOf(b.cb.State())
	b.failures = 0
	b.cb = gobreaker.NewCircuitBreaker(b.settings)
	if from != StateClosed && b.onStateChange != nil {
		b.onStateChange(from, StateClosed)
	}
}
