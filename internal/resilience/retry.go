package resilience

import (
	"context"
	"log/slog"
	"time"
)

// RetryOnce calls fn and, if it fails with an error retryable accepts, calls
// it exactly once more after delay. A nil retryable retries every error. The
// second attempt is skipped when ctx is already done.
func RetryOnce[R any](ctx context.Context, name string, delay time.Duration, retryable func(error) bool, fn func(context.Context) (R, error)) (R, error) {
	res, err := fn(ctx)
	if err == nil || (retryable != nil && !retryable(err)) {
		return res, err
	}
	slog.Warn("call failed, retrying once", "name", name, "error", err)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		var zero R
		return zero, err
	case <-t.C:
	}
	return fn(ctx)
}
