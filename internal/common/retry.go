package common

import (
	"context"
	"time"
)

// RetryPolicy is a bounded fixed-backoff retry for RemoteUnavailable failures.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts are used up. Attempts <= 1 means a single call.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(p.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return Cancelled("retry", ctx.Err())
		case <-t.C:
		}
	}
	return err
}
