package postgres

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"VoteService/internal/core/votes"
)

// circuitState represents the state of the storage circuit breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Storage unreachable, fail fast
	stateHalfOpen                     // Letting calls through to test recovery
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "OPEN (failing)"
	case stateHalfOpen:
		return "HALF-OPEN (testing)"
	default:
		return "CLOSED (recovered)"
	}
}

// circuitBreaker stops sending statements to a database that keeps refusing
// connections. Only connectivity failures count; a rejected statement proves
// the database is reachable and resets the count.
type circuitBreaker struct {
	lastFailure      time.Time
	lastStateLog     time.Time
	now              func() time.Time
	logger           *slog.Logger
	failures         int
	failureThreshold int
	openDuration     time.Duration
	state            circuitState
	trialInFlight    bool
	mu               sync.Mutex
}

func newCircuitBreaker(threshold int, openDuration time.Duration, logger *slog.Logger) *circuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &circuitBreaker{
		failureThreshold: threshold,
		openDuration:     openDuration,
		logger:           logger,
		now:              time.Now,
	}
}

// canAttempt returns nil when a storage call may proceed, or an error wrapping
// votes.ErrCircuitOpen while the circuit is open.
// Half-open admits one trial call at a time; everyone else fails fast until
// that call is recorded.
func (cb *circuitBreaker) canAttempt() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.openDuration {
			cb.setState(stateHalfOpen)
			cb.trialInFlight = true
			return nil
		}
		nextRetry := cb.lastFailure.Add(cb.openDuration)
		return fmt.Errorf("%w (failures: %d, next retry: %s)",
			votes.ErrCircuitOpen,
			cb.failures,
			nextRetry.Format("15:04:05"))
	case stateHalfOpen:
		if cb.trialInFlight {
			return fmt.Errorf("%w (recovery trial in progress)", votes.ErrCircuitOpen)
		}
		cb.trialInFlight = true
		return nil
	default:
		return nil
	}
}

// recordSuccess resets failure tracking
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.trialInFlight = false
	if cb.state != stateClosed {
		cb.setState(stateClosed)
	}
}

// recordFailure counts a connectivity failure and opens the circuit at the threshold.
// A failure while half-open reopens immediately.
func (cb *circuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	cb.trialInFlight = false

	if cb.state == stateHalfOpen || cb.failures >= cb.failureThreshold {
		if cb.state != stateOpen {
			cb.logger.Error("opening storage circuit",
				"failures", cb.failures,
				"error", err)
		}
		cb.setState(stateOpen)
		return
	}

	cb.logger.Warn("storage connectivity failure",
		"failures", cb.failures,
		"threshold", cb.failureThreshold,
		"error", err)
}

// recordInconclusive ends a call that says nothing about storage health
// (caller cancelled, or timed out waiting). Counts are left alone; a half-open
// trial slot is handed back.
func (cb *circuitBreaker) recordInconclusive() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialInFlight = false
}

// setState must be called with the lock held.
// Transitions are logged at most once a minute.
func (cb *circuitBreaker) setState(s circuitState) {
	cb.state = s

	now := cb.now()
	if !cb.lastStateLog.IsZero() && now.Sub(cb.lastStateLog) < time.Minute {
		return
	}
	cb.logger.Info("storage circuit state changed", "state", s.String())
	cb.lastStateLog = now
}
