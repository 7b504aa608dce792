package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultCancelGrace bounds how long Await waits for a cancelled operation
// to settle before returning.
const DefaultCancelGrace = time.Second

// UnexpectedReporter receives "should never happen" warnings that do not
// abort the caller. *Client implements it.
type UnexpectedReporter interface {
	Unexpected(msg string, fields map[string]any)
}

// AwaitOption tunes Await and Run.
type AwaitOption func(*awaitConfig)

type awaitConfig struct {
	grace    time.Duration
	reporter UnexpectedReporter
}

// WithCancelGrace sets how long Await waits for a cancelled operation to
// return. Zero returns immediately after cancelling.
func WithCancelGrace(d time.Duration) AwaitOption {
	return func(c *awaitConfig) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithWarnings routes unexpected-behaviour warnings to r.
func WithWarnings(r UnexpectedReporter) AwaitOption {
	return func(c *awaitConfig) {
		c.reporter = r
	}
}

// Await blocks until task completes, timeout elapses, or ctx is done, and
// delivers exactly one outcome. On timeout or cancellation the task is
// cancelled so the in-flight request is aborted, and any result it produces
// afterwards is discarded. A non-positive timeout is rejected with
// KindInvalidRequest without starting the task.
func Await[T any](ctx context.Context, task *Task[T], timeout time.Duration, opts ...AwaitOption) (T, error) {
	var zero T
	if task == nil {
		return zero, newInvalidRequestError(errors.New("await: nil task"))
	}
	if timeout <= 0 {
		return zero, newInvalidRequestError(fmt.Errorf("await: timeout must be positive, got %s", timeout))
	}

	cfg := awaitConfig{grace: DefaultCancelGrace}
	for _, opt := range opts {
		opt(&cfg)
	}

	task.Start()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-task.Done():
		return task.Result()
	case <-timer.C:
		select {
		case <-task.Done():
			return task.Result()
		default:
		}
		err := newTimeoutError(timeout, context.DeadlineExceeded)
		task.cancelWith(err)
		cfg.settle(task.Done(), "timeout")
		return zero, err
	case <-ctx.Done():
		err := contextError(ctx)
		task.cancelWith(err)
		cfg.settle(task.Done(), string(err.Kind))
		return zero, err
	case <-task.ctx.Done():
		if errors.Is(context.Cause(task.ctx), errTaskFinished) {
			return task.Result()
		}
		// Cancelled through the task handle or its parent context.
		err := contextError(task.ctx)
		cfg.settle(task.Done(), string(err.Kind))
		return zero, err
	}
}

// Run starts op and awaits it. It is shorthand for Await(ctx, NewTask(ctx, op), timeout).
func Run[T any](ctx context.Context, op Operation[T], timeout time.Duration, opts ...AwaitOption) (T, error) {
	if timeout <= 0 {
		var zero T
		return zero, newInvalidRequestError(fmt.Errorf("await: timeout must be positive, got %s", timeout))
	}
	return Await(ctx, NewTask(ctx, op), timeout, opts...)
}

// settle gives a cancelled operation up to the grace period to return, so
// that its failure is logged before the caller resumes.
func (c awaitConfig) settle(done <-chan struct{}, reason string) {
	if c.grace <= 0 {
		return
	}
	timer := time.NewTimer(c.grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		if c.reporter != nil {
			c.reporter.Unexpected("operation did not stop after cancellation", map[string]any{
				"reason": reason,
				"grace":  c.grace.String(),
			})
		}
	}
}
