package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/bountybase/engine/engine/log"
	"github.com/sony/gobreaker"
)

type manager struct {
	breakers  map[string]*gobreaker.CircuitBreaker
	configs   map[string]Config // Stored so Reset can recreate with the same settings
	records   map[string]*Record
	listeners []StateChangeListener
	mu        sync.RWMutex
	logger    log.Logger
	now       func() time.Time
}

// NewManager creates a new circuit breaker manager.
func NewManager(logger log.Logger) Manager {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
		records:  make(map[string]*Record),
		logger:   logger,
		now:      time.Now,
	}
}

func (m *manager) GetOrCreate(dependency string, config Config) CircuitBreaker {
	m.mu.RLock()
	breaker, exists := m.breakers[dependency]
	m.mu.RUnlock()

	if exists {
		return &circuitBreaker{breaker: breaker}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock
	if breaker, exists = m.breakers[dependency]; exists {
		return &circuitBreaker{breaker: breaker}
	}

	breaker = gobreaker.NewCircuitBreaker(m.settings(dependency, config))
	m.breakers[dependency] = breaker
	m.configs[dependency] = config
	m.records[dependency] = &Record{
		Name:              dependency,
		State:             StateClosed,
		LastStateChangeAt: m.now(),
	}

	m.logger.Infof("Created circuit breaker for dependency: %s", dependency)

	return &circuitBreaker{breaker: breaker}
}

func (m *manager) settings(dependency string, config Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "dependency-" + dependency,
		MaxRequests: config.MaxRequests,
		Interval:    config.CountsWindow,
		Timeout:     config.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.ConsecutiveFailures >= config.ConsecutiveFailures ||
				(counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio)
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			m.handleStateChange(dependency, from, to)
		},
	}
}

func (m *manager) Execute(dependency string, fn func() (any, error)) (any, error) {
	m.mu.RLock()
	breaker, exists := m.breakers[dependency]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("circuit breaker not found for dependency: %s (call GetOrCreate first)", dependency)
	}

	result, err := breaker.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			m.logger.Warnf("Circuit breaker [%s] is OPEN - request rejected immediately", dependency)
			return nil, fmt.Errorf("dependency %s is currently unavailable: %w", dependency, ErrOpen)
		}

		if err == gobreaker.ErrTooManyRequests {
			m.logger.Warnf("Circuit breaker [%s] is HALF-OPEN - too many trial requests", dependency)
			return nil, fmt.Errorf("dependency %s is recovering: %w", dependency, ErrOpen)
		}

		// Only errors from calls that reached the dependency count;
		// the short-circuit rejections above never left the breaker.
		m.recordFailure(dependency)
	}

	return result, err
}

func (m *manager) recordFailure(dependency string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[dependency]
	if !exists {
		return
	}

	record.FailureCount++
	record.LastFailureAt = m.now()
}

func (m *manager) State(dependency string) State {
	m.mu.RLock()
	breaker, exists := m.breakers[dependency]
	m.mu.RUnlock()

	if !exists {
		return StateUnknown
	}

	return convertState(breaker.State())
}

func (m *manager) Record(dependency string) Record {
	m.mu.RLock()
	record, exists := m.records[dependency]

	var snapshot Record
	if exists {
		snapshot = *record
	}

	breaker, breakerExists := m.breakers[dependency]
	m.mu.RUnlock()

	if !exists {
		return Record{Name: dependency, State: StateUnknown}
	}

	// Query the breaker outside the lock: reading its state can itself
	// trigger the open -> half-open transition, which re-enters
	// handleStateChange.
	if breakerExists {
		snapshot.State = convertState(breaker.State())
	}

	return snapshot
}

func (m *manager) Records() []Record {
	m.mu.RLock()
	names := make([]string, 0, len(m.records))

	for name := range m.records {
		names = append(names, name)
	}
	m.mu.RUnlock()

	records := make([]Record, 0, len(names))
	for _, name := range names {
		records = append(records, m.Record(name))
	}

	return records
}

func (m *manager) IsHealthy(dependency string) bool {
	// Only the closed state counts as healthy; open and half-open both need
	// recovery intervention.
	return m.State(dependency) == StateClosed
}

func (m *manager) Reset(dependency string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked(dependency)
}

func (m *manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dependency := range m.breakers {
		m.resetLocked(dependency)
	}
}

// resetLocked recreates the breaker with its stored config, forcing a closed
// circuit with zero counters. Callers must hold the write lock.
func (m *manager) resetLocked(dependency string) {
	if _, exists := m.breakers[dependency]; !exists {
		return
	}

	config, configExists := m.configs[dependency]
	if !configExists {
		m.logger.Warnf("No stored config found for dependency %s, cannot recreate", dependency)
		delete(m.breakers, dependency)
		delete(m.records, dependency)

		return
	}

	m.breakers[dependency] = gobreaker.NewCircuitBreaker(m.settings(dependency, config))
	m.records[dependency] = &Record{
		Name:              dependency,
		State:             StateClosed,
		LastStateChangeAt: m.now(),
	}

	m.logger.Infof("Circuit breaker reset completed for dependency: %s", dependency)
}

// RegisterStateChangeListener registers a listener for state change notifications.
func (m *manager) RegisterStateChangeListener(listener StateChangeListener) {
	if listener == nil {
		m.logger.Warnf("Attempted to register a nil state change listener")

		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, listener)
}

// handleStateChange updates the record and notifies listeners.
func (m *manager) handleStateChange(dependency string, from gobreaker.State, to gobreaker.State) {
	m.logger.Warnf("Circuit breaker [%s] state changed: %s -> %s", dependency, from.String(), to.String())

	m.mu.Lock()
	if record, exists := m.records[dependency]; exists {
		record.State = convertState(to)
		record.LastStateChangeAt = m.now()

		if to == gobreaker.StateClosed {
			record.FailureCount = 0
		}
	}

	listeners := make([]StateChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	fromState := convertState(from)
	toState := convertState(to)

	for _, listener := range listeners {
		// Notify in a goroutine to avoid blocking breaker operations.
		go func(l StateChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Errorf("State change listener panic for dependency %s: %v", dependency, r)
				}
			}()

			l.OnStateChange(dependency, fromState, toState)
		}(listener)
	}
}
