package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries a call up to MaxRetries extra times with a fixed backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Do runs fn until it succeeds or the retries are spent. Cancelling ctx stops
// the wait between attempts and returns the last error seen, or ctx.Err() if
// fn never ran.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == r.MaxRetries {
			break
		}
		timer := time.NewTimer(r.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
