package httpclient

import (
	"context"
	"time"

	"github.com/gaborage/go-bricks-net/validation"
)

// RetryPolicy describes how a failed operation is re-issued. MaxAttempts
// counts retries after the first try, so an operation runs at most
// MaxAttempts+1 times. The delay between attempts is fixed.
type RetryPolicy struct {
	MaxAttempts int           `validate:"gte=0"`
	Delay       time.Duration `validate:"gte=0"`
	// OnRetry is called before each retry with the 1-based retry number.
	OnRetry func(attempt, maxAttempts int)
	// OnError is called with the error of every failed attempt.
	OnError func(err error)
}

// Validate checks that MaxAttempts and Delay are not negative.
func (p RetryPolicy) Validate() error {
	return validation.Struct(p)
}

// retryHook observes retries with the operation context; the client uses it
// for metrics and logging.
type retryHook func(ctx context.Context, attempt, maxAttempts int, err error)

// Retry decorates op with policy. After exhausting its attempts the decorated
// operation returns the last error unchanged. Cancelling the context stops the
// chain, including during the delay between attempts. An invalid policy fails
// with KindInvalidRequest before op is called.
func Retry[T any](op Operation[T], policy RetryPolicy) Operation[T] {
	return retry(op, policy, nil)
}

func retry[T any](op Operation[T], policy RetryPolicy, hook retryHook) Operation[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		if err := policy.Validate(); err != nil {
			return zero, newInvalidRequestError(err)
		}

		for attempt := 0; ; attempt++ {
			result, err := op(ctx)
			if err == nil {
				return result, nil
			}
			if policy.OnError != nil {
				policy.OnError(err)
			}
			if attempt >= policy.MaxAttempts {
				return zero, err
			}
			if ctx.Err() != nil {
				return zero, contextError(ctx)
			}

			retryNumber := attempt + 1
			if hook != nil {
				hook(ctx, retryNumber, policy.MaxAttempts, err)
			}
			if policy.OnRetry != nil {
				policy.OnRetry(retryNumber, policy.MaxAttempts)
			}
			if err := sleep(ctx, policy.Delay); err != nil {
				return zero, err
			}
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return contextError(ctx)
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return contextError(ctx)
	}
}
