package settlement

import (
	"context"
	"time"
)

// RetryPolicy bounds delivery attempts for transient failures: up to
// MaxAttempts tries with linearly increasing backoff (BaseDelay x attempt).
// Kept separate from the call site so it can be tested with fake failures
// and millisecond delays.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay returns the pause before the given retry (1-based attempt index).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// sleep waits the backoff for the attempt, bailing early on ctx cancellation.
func (p RetryPolicy) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
