package resilience

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Breaker state
type State uint32

const (
	Closed   State = iota // normal operation
	Open                  // failing fast
	HalfOpen              // probing recovery
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// ErrOpen is returned when the breaker rejects a call without issuing it.
var ErrOpen = errors.New("circuit open: provider calls suspended")

// Breaker configuration constants
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
	DefaultProbeSuccesses   = 2
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // wait before half-open probe
	ProbeSuccesses   int           // successes needed to close again
}

// DefaultBreakerConfig returns production-ready defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: DefaultFailureThreshold,
		Cooldown:         DefaultCooldown,
		ProbeSuccesses:   DefaultProbeSuccesses,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.ProbeSuccesses <= 0 {
		c.ProbeSuccesses = DefaultProbeSuccesses
	}
	return c
}

// Breaker sheds load from a repeatedly failing provider endpoint. One
// breaker guards one endpoint; state is tracked with atomics so callers
// never contend on a lock.
type Breaker struct {
	name        string
	cfg         BreakerConfig
	state       atomic.Uint32
	failures    atomic.Int32
	successes   atomic.Int32
	lastFailure atomic.Int64 // unix nano
}

// NewBreaker creates a breaker guarding the named endpoint.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	b := &Breaker{name: name, cfg: cfg.withDefaults()}
	b.state.Store(uint32(Closed))
	return b
}

// State returns current state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Allow reports whether a call may proceed; non-nil means reject now.
func (b *Breaker) Allow() error {
	switch b.State() {
	case Open:
		if time.Since(time.Unix(0, b.lastFailure.Load())) > b.cfg.Cooldown {
			b.transition(HalfOpen)
			return nil
		}
		return ErrOpen
	default:
		return nil
	}
}

// Record feeds a call outcome back into the breaker.
func (b *Breaker) Record(err error) {
	if err == nil {
		b.recordSuccess()
		return
	}

	b.lastFailure.Store(time.Now().UnixNano())
	count := b.failures.Add(1)

	switch b.State() {
	case HalfOpen:
		b.transition(Open)
	case Closed:
		if count >= int32(b.cfg.FailureThreshold) {
			b.transition(Open)
		}
	}
}

func (b *Breaker) recordSuccess() {
	switch b.State() {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.ProbeSuccesses) {
			b.transition(Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

func (b *Breaker) transition(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}

	switch to {
	case Closed:
		b.failures.Store(0)
		b.successes.Store(0)
		slog.Info("circuit closed", "endpoint", b.name)
	case Open:
		b.successes.Store(0)
		slog.Warn("circuit opened", "endpoint", b.name, "failures", b.failures.Load())
	case HalfOpen:
		b.successes.Store(0)
		slog.Info("circuit half-open", "endpoint", b.name)
	}
}

// Guard runs fn under the breaker, feeding its outcome back in.
func Guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	b.Record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}
