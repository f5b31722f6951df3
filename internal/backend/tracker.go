package backend

import (
	"sync"
	"time"
)

// Backend names tracked by the pipeline.
const (
	Interpreter = "interpreter"
	Embedding   = "embedding"
	Provisioner = "provisioner"
)

// HealthTracker manages circuit breakers for the external backends the
// pipeline depends on.
type HealthTracker struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	failureThreshold      int
	recoveryProbeInterval time.Duration
}

// NewHealthTracker creates a health tracker with the given circuit breaker config.
func NewHealthTracker(failureThreshold int, recoveryProbeInterval time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:              make(map[string]*CircuitBreaker),
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
	}
}

// GetBreaker returns (or lazily creates) the circuit breaker for a backend.
func (ht *HealthTracker) GetBreaker(name string) *CircuitBreaker {
	ht.mu.RLock()
	cb, ok := ht.breakers[name]
	ht.mu.RUnlock()
	if ok {
		return cb
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	// Double-check after acquiring write lock
	if cb, ok := ht.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(ht.failureThreshold, ht.recoveryProbeInterval)
	ht.breakers[name] = cb
	return cb
}

// IsAvailable returns true if the backend's circuit breaker allows calls.
func (ht *HealthTracker) IsAvailable(name string) bool {
	return ht.GetBreaker(name).Allow()
}

// RecordSuccess records a successful call to the backend.
func (ht *HealthTracker) RecordSuccess(name string) {
	ht.GetBreaker(name).RecordSuccess()
}

// RecordFailure records a failed call to the backend.
func (ht *HealthTracker) RecordFailure(name string) {
	ht.GetBreaker(name).RecordFailure()
}
