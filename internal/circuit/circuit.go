// Package circuit implements the circuit breaker and error boundary (C9):
// risky calls wrapped with failure thresholding, a half-open probe, and an
// optional fallback.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned by Execute when the circuit is open and no
// fallback was supplied.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a Breaker.
type Config struct {
	// Name identifies this breaker in Stats/logs.
	Name string

	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before allowing a
	// half-open probe.
	RecoveryTimeout time.Duration

	// OnStateChange, if set, is notified (asynchronously) of every
	// transition.
	OnStateChange func(from, to State)
}

// Breaker is the C9 circuit breaker.
type Breaker struct {
	config Config

	mu              sync.Mutex
	state           State
	failures        int
	lastFailure     time.Time
	lastStateChange time.Time
}

// New creates a Breaker. FailureThreshold defaults to 5, RecoveryTimeout to
// 30s.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	return &Breaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn with circuit breaker protection. If the circuit is open
// and fallback is non-nil, fallback runs instead of fn (and its result is
// not counted toward the breaker's failure/success tally). If fallback is
// nil, ErrCircuitOpen is returned immediately.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error, fallback func(context.Context) error) error {
	if !b.allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return ErrCircuitOpen
	}

	err := fn(ctx)
	b.record(err)
	return err
}

// ExecuteWithResult runs a value-returning function with the same
// protection as Execute.
func ExecuteWithResult[T any](b *Breaker, ctx context.Context, fn func(context.Context) (T, error), fallback func(context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return zero, ErrCircuitOpen
	}

	result, err := fn(ctx)
	b.record(err)
	return result, err
}

// allow reports whether a call may proceed, transitioning open->half_open
// when the recovery timeout has elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastStateChange) >= b.config.RecoveryTimeout {
			b.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		switch b.state {
		case StateClosed:
			if b.failures >= b.config.FailureThreshold {
				b.transitionTo(StateOpen)
			}
		case StateHalfOpen:
			b.transitionTo(StateOpen)
		}
		return
	}

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.transitionTo(StateClosed)
	}
}

func (b *Breaker) transitionTo(newState State) {
	old := b.state
	b.state = newState
	b.lastStateChange = time.Now()
	b.failures = 0
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(old, newState)
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time snapshot of a breaker.
type Stats struct {
	Name            string
	State           State
	Failures        int
	LastFailure     time.Time
	LastStateChange time.Time
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:            b.config.Name,
		State:           b.state,
		Failures:        b.failures,
		LastFailure:     b.lastFailure,
		LastStateChange: b.lastStateChange,
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.lastStateChange = time.Now()
}

// Registry manages named breakers, constructed once and injected into
// collaborators rather than reached for as a global singleton.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Config
}

// NewRegistry creates a Registry using defaults for any breaker it has to
// construct on first Get.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// Get returns the named breaker, constructing it from the registry's
// defaults on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	config := r.defaults
	config.Name = name
	b = New(config)
	r.breakers[name] = b
	return b
}

// Stats returns a snapshot of every breaker in the registry.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stats, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Stats())
	}
	return out
}

// OpenBreakers returns the names of every breaker currently open.
func (r *Registry) OpenBreakers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var open []string
	for name, b := range r.breakers {
		if b.State() == StateOpen {
			open = append(open, name)
		}
	}
	return open
}

// ResetAll resets every breaker in the registry to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
