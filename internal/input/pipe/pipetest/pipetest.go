// Package pipetest provides helpers for testing pipeline stages.
package pipetest

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
	"github.com/dshills/keyshift/internal/input/timer"
)

// Recorder is a terminal Stage that records everything it receives.
type Recorder struct {
	mu     sync.Mutex
	events []key.Event

	// Swallow is returned from Handle.
	Swallow bool
}

// Handle records e.
func (r *Recorder) Handle(e key.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Swallow
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []key.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]key.Event(nil), r.events...)
}

// Strings returns the recorded events formatted as "+A" / "-A".
func (r *Recorder) Strings() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Runner runs callbacks synchronously and records their names and errors.
type Runner struct {
	mu     sync.Mutex
	names  []string
	errors []error
}

// Run executes cb immediately.
func (r *Runner) Run(name string, cb pipe.Callback) {
	err := cb(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	if err != nil {
		r.errors = append(r.errors, err)
	}
}

// Names returns the names of the callbacks run so far.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// Errors returns the errors returned by callbacks.
func (r *Runner) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// Env builds a pipe.Env around a manual clock and a synchronous runner.
func Env() (pipe.Env, *timer.Manual, *Runner) {
	clock := timer.NewManual(time.Unix(1_700_000_000, 0))
	runner := &Runner{}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return pipe.Env{
		Lock:   &sync.Mutex{},
		Timers: clock,
		Runner: runner,
		Log:    log,
	}, clock, runner
}

// Driver feeds events into a stage the way the engine does: under the
// pipeline lock, stamped with the manual clock.
type Driver struct {
	Env   pipe.Env
	Clock *timer.Manual
	Stage pipe.Stage

	seq uint64
}

// Press sends a system press of c and returns the swallow decision.
func (d *Driver) Press(c key.Code) bool {
	return d.send(c, true)
}

// Release sends a system release of c and returns the swallow decision.
func (d *Driver) Release(c key.Code) bool {
	return d.send(c, false)
}

// Advance moves the clock forward, firing due timers.
func (d *Driver) Advance(dur time.Duration) {
	d.Clock.Advance(dur)
}

func (d *Driver) send(c key.Code, pressed bool) bool {
	d.seq++
	e := key.Event{
		Code:      c,
		Pressed:   pressed,
		Origin:    key.OriginSystem,
		Timestamp: d.Clock.Now(),
		Seq:       d.seq,
	}
	d.Env.Lock.Lock()
	defer d.Env.Lock.Unlock()
	return d.Stage.Handle(e)
}
