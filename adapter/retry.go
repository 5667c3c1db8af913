package adapter

import (
	"context"
	"fmt"
	"time"
)

// DefaultBackoff is the pause before the first retry; it doubles per attempt.
const DefaultBackoff = 500 * time.Millisecond

// Retry runs op once plus up to retries more times, with exponential
// backoff between attempts. It stops early when ctx ends or permanent
// reports the error as not worth retrying. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, backoff time.Duration, op func(ctx context.Context) error, permanent func(error) bool) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * backoff
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-t.C:
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
