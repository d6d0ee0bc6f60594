package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running pool.
	ErrAlreadyRunning = errors.New("pool is already running")

	// ErrNotRunning is returned when operations are attempted on a stopped pool.
	ErrNotRunning = errors.New("pool is not running")

	// ErrQueueFull is returned when the queue is full and cannot accept more tasks.
	ErrQueueFull = errors.New("task queue is full")

	// ErrPanicked is the cause of a CallbackError built from a recovered panic.
	ErrPanicked = errors.New("callback panicked")
)

// CallbackError describes a failed user callback. It is built once, at the
// invocation boundary, and never propagates back to the event goroutine.
type CallbackError struct {
	// Name identifies the callback ("hotkey LCtrl+S", "combo J+K press").
	Name string

	// Err is the error returned by the callback, or ErrPanicked.
	Err error

	// Panic is the recovered panic value, if any.
	Panic any

	// Stack is the stack trace captured at the panic.
	Stack []byte

	// Duration is how long the callback ran.
	Duration time.Duration
}

func (e *CallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("callback %s: panic: %v", e.Name, e.Panic)
	}
	return fmt.Sprintf("callback %s: %v", e.Name, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
