// Package circuitbreaker guards calls to external payment providers.
// After enough consecutive failures a provider's circuit opens and its
// calls fail fast instead of stalling checkouts behind the provider's
// timeout; after a cooldown one probe call tests recovery.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State of one provider's circuit.
type State int

const (
	// StateClosed lets calls through; the provider is considered up.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen has released one probe and rejects everything else
	// until the probe reports back.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "souq",
	Subsystem: "gateway",
	Name:      "circuit_transitions_total",
	Help:      "Provider circuit state changes.",
}, []string{"gateway", "from", "to"})

func init() {
	prometheus.MustRegister(transitionsTotal)
}

type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Breaker tracks one circuit per provider name.
type Breaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit

	threshold int
	cooldown  time.Duration
}

// New creates a breaker that opens a provider's circuit after threshold
// consecutive failures and keeps it open for the cooldown before
// probing. Non-positive arguments fall back to 5 failures and 30s.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call to the provider may proceed. An open
// circuit whose cooldown has elapsed moves to half-open and admits the
// caller as the probe.
func (b *Breaker) Allow(gateway string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[gateway]
	if !ok {
		return true
	}

	switch c.state {
	case StateOpen:
		if time.Since(c.lastFailure) >= b.cooldown {
			b.transition(gateway, c, StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		// The probe is already out.
		return false
	default:
		return true
	}
}

// RecordSuccess clears the failure streak and closes a half-open
// circuit.
func (b *Breaker) RecordSuccess(gateway string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[gateway]
	if !ok {
		return
	}
	if c.state == StateHalfOpen {
		b.transition(gateway, c, StateClosed)
	}
	c.failures = 0
}

// RecordFailure extends the failure streak. A failed probe reopens the
// circuit immediately; a closed circuit opens once the streak reaches
// the threshold.
func (b *Breaker) RecordFailure(gateway string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[gateway]
	if !ok {
		c = &circuit{}
		b.circuits[gateway] = c
	}

	c.failures++
	c.lastFailure = time.Now()

	switch {
	case c.state == StateHalfOpen:
		b.transition(gateway, c, StateOpen)
	case c.state == StateClosed && c.failures >= b.threshold:
		b.transition(gateway, c, StateOpen)
	}
}

// State returns the provider's current circuit state; unknown providers
// are closed.
func (b *Breaker) State(gateway string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[gateway]; ok {
		return c.state
	}
	return StateClosed
}

// transition is called with b.mu held.
func (b *Breaker) transition(gateway string, c *circuit, to State) {
	if c.state == to {
		return
	}
	transitionsTotal.WithLabelValues(gateway, c.state.String(), to.String()).Inc()
	c.state = to
}
