package qsim

import (
	"sync"
	"time"
)

// BreakerState is the state of a ProbeBreaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // probing allowed
	BreakerOpen                         // probing skipped
	BreakerHalfOpen                     // one trial probe allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

/*
ProbeBreaker remembers device probe failures for automatic backend selection.
After maxFailures consecutive failures it opens and Allow reports false until
resetTimeout has passed; the next probe is then a trial that either closes the
breaker or reopens it.

The breaker never retries anything. It only decides whether a probe is worth
attempting at all.
*/
type ProbeBreaker struct {
	mu               sync.Mutex
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMax      int
	failureCount     int
	state            BreakerState
	openTime         time.Time
	halfOpenAttempts int
	now              func() time.Time
}

/*
NewProbeBreaker opens after maxFailures consecutive failed probes and allows a
single trial probe once resetTimeout has passed.
*/
func NewProbeBreaker(maxFailures int, resetTimeout time.Duration) *ProbeBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}

	return &ProbeBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  1,
		state:        BreakerClosed,
		now:          time.Now,
	}
}

// State returns the current state without advancing it.
func (cb *ProbeBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// RecordFailure counts a failed probe and opens the breaker at the threshold.
func (cb *ProbeBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++

	switch cb.state {
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.openTime = cb.now()
		logger.Debug("device probe breaker reopened", "failures", cb.failureCount)
	case BreakerClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = BreakerOpen
			cb.openTime = cb.now()
			logger.Debug("device probe breaker opened", "failures", cb.failureCount)
		}
	}
}

// RecordSuccess counts a successful probe. A successful trial closes a
// half-open breaker.
func (cb *ProbeBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerHalfOpen:
		cb.state = BreakerClosed
		cb.failureCount = 0
		cb.halfOpenAttempts = 0
		logger.Debug("device probe breaker closed")
	case BreakerClosed:
		cb.failureCount = 0
	}
}

/*
Allow reports whether a probe should be attempted now. In half-open state it
hands out at most halfOpenMax trials; every true result counts as one.
*/
func (cb *ProbeBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.openTime) <= cb.resetTimeout {
			return false
		}

		cb.state = BreakerHalfOpen
		cb.halfOpenAttempts = 0
	}

	if cb.state != BreakerHalfOpen || cb.halfOpenAttempts >= cb.halfOpenMax {
		return false
	}

	cb.halfOpenAttempts++

	return true
}

var (
	breakersMu sync.Mutex
	breakers   = map[string]*ProbeBreaker{}
)

// probeBreaker returns the process-wide breaker for one driver.
func probeBreaker(cfg *Config) *ProbeBreaker {
	breakersMu.Lock()
	defer breakersMu.Unlock()

	cb, ok := breakers[cfg.DeviceDriver]
	if !ok {
		cb = NewProbeBreaker(cfg.ProbeMaxFailures, cfg.ProbeResetTimeout)
		breakers[cfg.DeviceDriver] = cb
	}

	return cb
}
