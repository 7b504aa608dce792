package httpclient

import (
	"context"
	"errors"
	"sync"
)

// errTaskFinished is the cause recorded on a task context once its
// operation has returned.
var errTaskFinished = errors.New("task finished")

// Operation is an asynchronous unit of work. It must honour ctx: once ctx is
// done it should abort and return promptly.
type Operation[T any] func(ctx context.Context) (T, error)

// Task is a handle on one run of an Operation. The operation starts on the
// first call to Start and runs on its own goroutine; Cancel aborts it through
// its context.
type Task[T any] struct {
	op     Operation[T]
	ctx    context.Context
	cancel context.CancelCauseFunc

	startOnce sync.Once
	done      chan struct{}
	result    T
	err       error
}

// NewTask wraps op. The task context derives from ctx, so cancelling ctx
// cancels the task as well.
func NewTask[T any](ctx context.Context, op Operation[T]) *Task[T] {
	taskCtx, cancel := context.WithCancelCause(ctx)
	return &Task[T]{
		op:     op,
		ctx:    taskCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start runs the operation if it has not been started yet and returns t.
func (t *Task[T]) Start() *Task[T] {
	t.startOnce.Do(func() {
		go t.run()
	})
	return t
}

func (t *Task[T]) run() {
	defer close(t.done)
	defer t.cancel(errTaskFinished)
	t.result, t.err = t.op(t.ctx)
}

// Cancel aborts the operation. A task cancelled before Start never runs its
// operation body with a live context.
func (t *Task[T]) Cancel() {
	t.cancel(newCancelledError(context.Canceled))
}

func (t *Task[T]) cancelWith(cause error) {
	t.cancel(cause)
}

// Done is closed once the operation has returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the operation has returned and yields its outcome.
// Bare context errors are reported as timeout or cancelled NetworkingErrors.
func (t *Task[T]) Result() (T, error) {
	<-t.done
	if t.err != nil {
		return t.result, normalizeError(t.ctx, t.err)
	}
	return t.result, nil
}

// normalizeError maps bare context errors returned by an operation onto the
// NetworkingError taxonomy. Other errors pass through unchanged.
func normalizeError(ctx context.Context, err error) error {
	if _, ok := AsNetworkingError(err); ok {
		return err
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if ne, ok := AsNetworkingError(context.Cause(ctx)); ok {
		return ne
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newTimeoutError(0, err)
	}
	return newCancelledError(err)
}

// contextError converts a done context into a NetworkingError, preferring a
// NetworkingError recorded as the cancellation cause.
func contextError(ctx context.Context) *NetworkingError {
	cause := context.Cause(ctx)
	if ne, ok := AsNetworkingError(cause); ok {
		return ne
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newTimeoutError(0, cause)
	}
	return newCancelledError(cause)
}
