// Package resilience provides reliability patterns for the outbound judge,
// generator, and market-data calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker is a consecutive-failure circuit breaker. Closed it passes calls
// through and counts consecutive failures; at maxFailures it opens and
// rejects everything until the cool-down elapses, then admits a single probe
// (half-open). A successful probe closes the circuit, a failed one reopens it.
type Breaker struct {
	maxFailures int
	coolDown    time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time // zero while closed
	probing  bool      // half-open: one probe in flight or allowed

	now func() time.Time // for testing
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and cools down for the given duration before probing.
func NewBreaker(maxFailures int, coolDown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		coolDown:    coolDown,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open, and feeds the result back into
// the breaker state. The error from fn is returned unchanged.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.probing || b.failures >= b.maxFailures {
			b.openedAt = b.now()
			b.probing = false
		}
		return err
	}

	b.failures = 0
	b.openedAt = time.Time{}
	b.probing = false
	return nil
}

// admit reports whether a call may proceed, transitioning open → half-open
// once the cool-down has elapsed.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.coolDown {
		b.probing = true
		b.openedAt = time.Time{}
		return true
	}
	return false
}
