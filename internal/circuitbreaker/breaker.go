package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when circuit is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Guards calls into an upstream collaborator. Consecutive operational failures
// open the circuit so a failing backend is not hammered by retries from the UI.
type CircuitBreaker struct {
	mu              sync.RWMutex
	name            string
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	now             func() time.Time
	onStateChange   func(name string, from, to State)

	maxFailures     int           // Consecutive failures before opening
	timeout         time.Duration // How long to stay open
	halfOpenSuccess int           // Successes needed in half-open to close
}

type Config struct {
	Name            string
	MaxFailures     int           // Default: 5
	Timeout         time.Duration // Default: 30 seconds
	HalfOpenSuccess int           // Default: 1

	// Optional hooks
	Now           func() time.Time
	OnStateChange func(name string, from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		timeout:         cfg.Timeout,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		now:             cfg.Now,
		onStateChange:   cfg.OnStateChange,
		lastStateChange: cfg.Now(),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Executes fn unless the circuit is open. The error from fn is returned as is.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) > cb.timeout {
			cb.setState(StateHalfOpen)
			cb.successCount = 0
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
		return err
	}

	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onFailure() {
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen {
		cb.setState(StateOpen)
		cb.successCount = 0
	} else if cb.failureCount >= cb.maxFailures {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.setState(StateClosed)
			cb.failureCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// Caller holds mu
func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}

	old := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, old, newState)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Manually closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
}

func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return Metrics{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}

type Metrics struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}
