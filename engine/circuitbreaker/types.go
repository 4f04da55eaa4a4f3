package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned (wrapped) when a call is rejected because the
// dependency's circuit is open or still recovering. Callers must surface it
// immediately instead of retrying locally.
var ErrOpen = errors.New("circuit breaker open")

// Manager manages circuit breakers for external dependencies, keyed by
// dependency name.
type Manager interface {
	// GetOrCreate returns the existing circuit breaker or creates a new one.
	GetOrCreate(dependency string, config Config) CircuitBreaker

	// Execute runs fn through the dependency's circuit breaker.
	Execute(dependency string, fn func() (any, error)) (any, error)

	// State returns the current breaker state.
	State(dependency string) State

	// Record returns the dependency's circuit record snapshot.
	Record(dependency string) Record

	// Records returns snapshots for every registered dependency.
	Records() []Record

	// IsHealthy returns true if the breaker is closed.
	IsHealthy(dependency string) bool

	// Reset forces the breaker back to closed with zero counters.
	Reset(dependency string)

	// ResetAll resets every registered breaker.
	ResetAll()

	// RegisterStateChangeListener registers a listener for breaker state changes.
	RegisterStateChangeListener(listener StateChangeListener)
}

// CircuitBreaker wraps a single dependency's breaker.
type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	State() State
	Counts() Counts
}

// Config holds circuit breaker configuration for one dependency.
type Config struct {
	MaxRequests         uint32        // Max trial requests in half-open state
	CountsWindow        time.Duration // Closed-state window after which counters clear
	CoolDown            time.Duration // Open-state duration before the half-open trial
	ConsecutiveFailures uint32        // Consecutive failures that open the circuit
	FailureRatio        float64       // Failure ratio that opens the circuit
	MinRequests         uint32        // Min requests before the ratio applies
}

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Record is a point-in-time snapshot of one dependency's circuit.
type Record struct {
	Name              string    `json:"name"`
	State             State     `json:"state"`
	FailureCount      uint32    `json:"failureCount"`
	LastFailureAt     time.Time `json:"lastFailureAt"`
	LastStateChangeAt time.Time `json:"lastStateChangeAt"`
}

// StateChangeListener is notified when a circuit breaker changes state.
type StateChangeListener interface {
	OnStateChange(dependency string, from State, to State)
}

// StateChangeListenerFunc adapts a function to the StateChangeListener
// interface.
type StateChangeListenerFunc func(dependency string, from State, to State)

func (f StateChangeListenerFunc) OnStateChange(dependency string, from State, to State) {
	f(dependency, from, to)
}

// circuitBreaker is the internal implementation wrapping gobreaker.
type circuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func (cb *circuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return cb.breaker.Execute(fn)
}

func (cb *circuitBreaker) State() State {
	return convertState(cb.breaker.State())
}

func (cb *circuitBreaker) Counts() Counts {
	return convertCounts(cb.breaker.Counts())
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

func convertCounts(counts gobreaker.Counts) Counts {
	return Counts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
