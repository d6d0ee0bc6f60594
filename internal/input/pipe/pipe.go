// Package pipe defines the contract shared by every stage of the input
// pipeline.
//
// A Stage consumes one event and reports whether the live event was
// swallowed. Stages forward events by calling the next Stage they were
// built with; events a stage produces on its own (a tap, a replayed
// buffer, a timer resolution) are forwarded the same way and their return
// value is ignored.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/timer"
)

// Stage is one step of the pipeline.
type Stage interface {
	// Handle processes e and returns true if the live event must be
	// suppressed.
	Handle(e key.Event) bool
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(e key.Event) bool

// Handle calls f(e).
func (f StageFunc) Handle(e key.Event) bool {
	return f(e)
}

// Callback is a user action. It runs on the worker pool, never on the
// event goroutine.
type Callback = func(ctx context.Context) error

// Runner executes callbacks asynchronously.
type Runner interface {
	Run(name string, cb Callback)
}

// Env carries what stages need from the engine that owns them.
type Env struct {
	// Lock serializes all pipeline processing. Stages take it in timer
	// callbacks; it is already held when Handle is called.
	Lock sync.Locker

	// Timers schedules hold and combo windows.
	Timers timer.Scheduler

	// Runner executes user callbacks.
	Runner Runner

	// Log receives debug output.
	Log logrus.FieldLogger
}

// ErrConfiguration is matched by every registration error.
var ErrConfiguration = errors.New("configuration error")

// ConfigError reports an invalid registration. It matches
// ErrConfiguration and unwraps to the specific cause.
type ConfigError struct {
	// Subject names what was being registered ("layer 1 key A").
	Subject string

	// Err is the cause.
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConfiguration, e.Subject, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configf builds a ConfigError for subject with a wrapped cause.
func Configf(subject string, err error) error {
	return &ConfigError{Subject: subject, Err: err}
}
