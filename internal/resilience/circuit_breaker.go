package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker is rejecting requests
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the current mode of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // Requests flow normally
	StateOpen                         // Requests fail fast
	StateHalfOpen                     // Probing whether the upstream recovered
)

// halfOpenProbes is how many requests may pass in half-open before the
// breaker decides whether to close again
const halfOpenProbes = 3

// CircuitBreaker guards calls to an external service. After maxFailures
// consecutive failures the circuit opens and calls fail immediately until
// resetTimeout elapses, when a limited number of probe requests decide
// whether to close it again.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu            sync.RWMutex
	state         CircuitState
	failures      int
	probeSuccess  int
	probeCount    int
	lastFailure   time.Time
	totalRequests int64
	totalFailures int64
}

func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Call runs fn under the breaker, returning ErrCircuitOpen without
// invoking it when the circuit is open
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.probeCount = 0
			cb.probeSuccess = 0
			cb.probeCount++
			return true
		}
		return false

	case StateHalfOpen:
		if cb.probeCount < halfOpenProbes {
			cb.probeCount++
			return true
		}
		return false
	}

	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	if success {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.probeSuccess++
			if cb.probeSuccess >= halfOpenProbes {
				cb.state = StateClosed
				cb.failures = 0
			}
		}
		return
	}

	cb.totalFailures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		// One failed probe reopens the circuit
		cb.state = StateOpen
	}
}

// RecordResult feeds an out-of-band success or failure into the breaker,
// for callers that observe outcomes asynchronously
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.record(success)
}

// GetState returns the breaker's current state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats reports lifetime request and failure counts
func (cb *CircuitBreaker) Stats() (requests, failures int64) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.totalRequests, cb.totalFailures
}

// Reset forces the breaker back to closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probeCount = 0
	cb.probeSuccess = 0
}
