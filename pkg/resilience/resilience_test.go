package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := NewRetryPolicy(3, time.Millisecond).Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second call, got %v after %d", err, calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := NewRetryPolicy(2, time.Millisecond).Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("attempt %d", calls)
	})
	if calls != 3 || err == nil || err.Error() != "attempt 3" {
		t.Fatalf("expected 3 attempts ending in attempt 3, got %v after %d", err, calls)
	}
}

func TestRetryHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewRetryPolicy(5, time.Hour).Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("down")
	})
	if calls != 1 || err == nil || err.Error() != "down" {
		t.Fatalf("expected one attempt, got %v after %d", err, calls)
	}
	if err := NewRetryPolicy(1, time.Millisecond).Do(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled before first attempt, got %v", err)
	}
}

func TestCircuitBreakerOpensOnRateLimitOnly(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	cb.OnError(errors.New("boom"))
	cb.OnError(errors.New("boom"))
	if !cb.Allow() {
		t.Fatalf("plain errors must not open the breaker")
	}
	rl := fmt.Errorf("wrapped: %w", RateLimitError{Provider: "openai"})
	cb.OnError(rl)
	cb.OnError(rl)
	if cb.Allow() {
		t.Fatalf("breaker should be open after threshold rate limits")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatalf("success should close the breaker")
	}
	if (RateLimitError{}).Error() != "rate limit" {
		t.Fatalf("unexpected default message")
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(RateLimitError{})
	if cb.Allow() {
		t.Fatalf("breaker should be open")
	}
	now = now.Add(time.Minute)
	if !cb.Allow() {
		t.Fatalf("cooldown elapsed, probe should be allowed")
	}
	if cb.Allow() {
		t.Fatalf("only one probe may run while half open")
	}
	cb.OnError(RateLimitError{})
	if cb.Allow() {
		t.Fatalf("failed probe should reopen the breaker")
	}
	now = now.Add(time.Minute)
	if !cb.Allow() {
		t.Fatalf("second probe should be allowed")
	}
	cb.OnSuccess()
	if !cb.Allow() || !cb.Allow() {
		t.Fatalf("successful probe should close the breaker")
	}
}
