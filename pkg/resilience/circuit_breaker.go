package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError is returned by provider clients on HTTP 429 or the
// provider's equivalent.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker opens after threshold consecutive rate limit failures and
// stays open for cooldown. After the cooldown one probe is let through; its
// result closes or reopens the breaker. Other errors do not count.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case breakerOpen:
		if c.now().Sub(c.openedAt) < c.cooldown {
			return false
		}
		c.state = breakerHalfOpen
		return true
	case breakerHalfOpen:
		// a probe is already in flight
		return false
	default:
		return true
	}
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.state = breakerClosed
	c.failures = 0
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !IsRateLimit(err) {
		// the provider answered, so the probe is over
		if c.state == breakerHalfOpen {
			c.state = breakerClosed
			c.failures = 0
		}
		return
	}
	c.failures++
	if c.state == breakerHalfOpen || c.failures >= c.threshold {
		c.state = breakerOpen
		c.openedAt = c.now()
	}
}
