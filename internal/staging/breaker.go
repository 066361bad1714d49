package staging

import (
	"context"
	"errors"
	"sync"
	"time"

	"common-addresses/internal/logging"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: requests flow normally
	StateClosed CircuitState = iota
	// StateOpen: requests fail fast
	StateOpen
	// StateHalfOpen: a probe request is testing recovery
	StateHalfOpen
)

func (s CircuitState) String() string {
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

var (
	// ErrCircuitOpen is returned when circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when half-open circuit receives too many requests.
	ErrTooManyRequests = errors.New("too many requests while circuit is half-open")
)

// CircuitBreaker stops calling a failing staging backend for a cool-down
// period so requests fail fast instead of piling up on timeouts.
type CircuitBreaker struct {
	mu sync.Mutex

	name        string
	maxFailures uint32
	timeout     time.Duration
	maxHalfOpen uint32
	now         func() time.Time

	state            CircuitState
	failures         uint32
	lastFailureTime  time.Time
	halfOpenRequests uint32

	totalRequests    uint64
	failedRequests   uint64
	rejectedRequests uint64
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// consecutive failures and probes again after timeout.
func NewCircuitBreaker(name string, maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		maxHalfOpen: 1,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	cb.totalRequests++

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.timeout {
			cb.state = StateHalfOpen
			cb.halfOpenRequests = 0
			logging.Info("circuit_breaker_half_open", logging.Fields{
				"name":            cb.name,
				"timeout_elapsed": cb.timeout.String(),
			})
		} else {
			cb.rejectedRequests++
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenRequests >= cb.maxHalfOpen {
			cb.rejectedRequests++
			cb.mu.Unlock()
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return err
}

func (cb *CircuitBreaker) onSuccess() {
	if cb.state == StateHalfOpen {
		logging.Info("circuit_breaker_closed", logging.Fields{
			"name":   cb.name,
			"reason": "recovery_successful",
		})
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenRequests = 0
}

func (cb *CircuitBreaker) onFailure() {
	cb.failedRequests++
	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			logging.Warn("circuit_breaker_opened", logging.Fields{
				"name":         cb.name,
				"failures":     cb.failures,
				"max_failures": cb.maxFailures,
				"timeout":      cb.timeout.String(),
			})
		}
		cb.state = StateOpen
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerStats holds circuit breaker statistics.
type CircuitBreakerStats struct {
	State            string    `json:"state"`
	Failures         uint32    `json:"failures"`
	TotalRequests    uint64    `json:"total_requests"`
	FailedRequests   uint64    `json:"failed_requests"`
	RejectedRequests uint64    `json:"rejected_requests"`
	LastFailureTime  time.Time `json:"last_failure_time"`
}

// Stats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state.String(),
		Failures:         cb.failures,
		TotalRequests:    cb.totalRequests,
		FailedRequests:   cb.failedRequests,
		RejectedRequests: cb.rejectedRequests,
		LastFailureTime:  cb.lastFailureTime,
	}
}

type breakerStore struct {
	Store
	cb *CircuitBreaker
}

// WithBreaker guards calls to store with cb. Delete is never rejected, so
// request cleanup is attempted even while the circuit is open.
func WithBreaker(store Store, cb *CircuitBreaker) Store {
	return &breakerStore{Store: store, cb: cb}
}

func (s *breakerStore) Put(ctx context.Context, area Area, name string, data []byte) error {
	return s.cb.Execute(func() error { return s.Store.Put(ctx, area, name, data) })
}

func (s *breakerStore) Delete(ctx context.Context, area Area, name string) error {
	return s.Store.Delete(ctx, area, name)
}

func (s *breakerStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	var n int
	err := s.cb.Execute(func() error {
		var err error
		n, err = s.Store.Sweep(ctx, olderThan)
		return err
	})
	return n, err
}

func (s *breakerStore) Check(ctx context.Context) error {
	return s.cb.Execute(func() error { return s.Store.Check(ctx) })
}

func (s *breakerStore) Describe() map[string]string {
	d := s.Store.Describe()
	out := make(map[string]string, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	out["circuit"] = s.cb.State().String()
	return out
}
