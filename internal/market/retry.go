package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Collaborator calls get a bounded deadline and at most one retry so a stuck
// chain RPC cannot stall scanning of unrelated chains.
const (
	DefaultCallTimeout = 5 * time.Second
	retryAttempts      = 2
)

// CallWithRetry runs fn under a per-attempt timeout, retrying once on timeout
// or transient failure. Deadline overruns come back as ErrTimeout;
// ErrPriceUnavailable is returned as-is since retrying an oracle that has no
// data does not help.
func CallWithRetry(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPriceUnavailable) || errors.Is(err, ErrInvalidParameters) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w: %v", ErrTimeout, err)
		} else {
			lastErr = err
		}

		// The parent being done means the whole operation was cancelled,
		// not just this attempt.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
