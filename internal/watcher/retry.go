package watcher

import (
	"context"
	"errors"
	"time"

	"twapOracle/internal/oracle"
)

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// retryable reports whether err may be transient. Oracle errors are answers,
// not failures, and are returned to the caller as is.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, oracle.ErrPeriodNotElapsed),
		errors.Is(err, oracle.ErrNoLiquidity),
		errors.Is(err, oracle.ErrUnknownAsset),
		errors.Is(err, oracle.ErrDivisionByZero),
		errors.Is(err, oracle.ErrOverflow):
		return false
	default:
		return true
	}
}
