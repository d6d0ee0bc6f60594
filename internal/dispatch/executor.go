package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Func is a unit of work run by the pool.
type Func = func(ctx context.Context) error

// Result represents the outcome of a callback execution.
type Result struct {
	// Success is true if the callback completed without error or panic.
	Success bool

	// Error is the error returned by the callback, if any.
	Error error

	// Panicked is true if the callback panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the callback took to execute.
	Duration time.Duration
}

// Err converts a failed result into a *CallbackError. It returns nil for
// successful results.
func (r Result) Err(name string) *CallbackError {
	switch {
	case r.Panicked:
		return &CallbackError{
			Name:     name,
			Err:      ErrPanicked,
			Panic:    r.PanicValue,
			Stack:    r.PanicStack,
			Duration: r.Duration,
		}
	case r.Error != nil:
		return &CallbackError{Name: name, Err: r.Error, Duration: r.Duration}
	default:
		return nil
	}
}

// Executor runs callbacks with panic recovery and timing.
type Executor struct{}

// NewExecutor creates a new executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs fn and returns the result.
// It recovers from panics and captures timing information.
func (e *Executor) Execute(ctx context.Context, fn Func) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Error: ctx.Err()}
	default:
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			result.Success = false
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = debug.Stack()
		}
	}()

	if err := fn(ctx); err != nil {
		result.Success = false
		result.Error = err
	} else {
		result.Success = true
	}

	return result
}

// ExecuteWithTimeout runs fn with a timeout.
// The callback must respect context cancellation for this to be effective.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, fn Func, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, fn)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, fn)
}
