package resilience

import (
	"context"
	"fmt"
	"time"

	kberrors "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/errors"
)

// WithTimeout runs fn with a context cancelled after timeout and returns its
// result. When the limit is hit the error matches both kberrors.ErrTimeout and
// context.DeadlineExceeded, and fn's late result is discarded. A non-positive
// timeout runs fn on ctx unchanged.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(timeoutCtx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w: %w (limit: %v)", name, kberrors.ErrTimeout, context.DeadlineExceeded, timeout)
	}
}
