// Package output serializes synthesized input to the operating system.
//
// Producers on any goroutine enqueue (code, pressed) pairs without
// blocking. One consumer goroutine delivers them to a Sender in the order
// they were enqueued.
package output

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/input/key"
)

// Sentinel marks input injected by keyshift. Platform adapters attach it
// to every synthesized event (on Linux it is the virtual device name) so
// the inbound side can recognize and drop its own echo.
const Sentinel = "keyshift virtual input"

// ErrClosed is returned when enqueueing on a closed sink.
var ErrClosed = errors.New("output sink closed")

// Sender performs the actual OS-level synthesis.
type Sender interface {
	Send(code key.Code, pressed bool) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(code key.Code, pressed bool) error

// Send calls f(code, pressed).
func (f SenderFunc) Send(code key.Code, pressed bool) error {
	return f(code, pressed)
}

type item struct {
	code    key.Code
	pressed bool
}

// Stats holds sink counters.
type Stats struct {
	Enqueued uint64
	Sent     uint64
	Failed   uint64
	Pending  int
}

// Sink is the single-consumer output queue.
type Sink struct {
	sender Sender
	log    logrus.FieldLogger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []item
	closed  bool
	started bool
	waiters []chan struct{}
	done    chan struct{}

	pending  atomic.Int64
	enqueued atomic.Uint64
	sent     atomic.Uint64
	failed   atomic.Uint64
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger used to report send failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sink) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSink creates a sink delivering to sender. Call Start to begin
// delivery; events enqueued before that are kept.
func NewSink(sender Sender, opts ...Option) *Sink {
	s := &Sink{
		sender: sender,
		log:    logrus.StandardLogger(),
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the consumer goroutine. Calling Start twice has no
// effect.
func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.run()
}

// Send enqueues one transition. It never blocks.
func (s *Sink) Send(code key.Code, pressed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.queue = append(s.queue, item{code: code, pressed: pressed})
	s.pending.Add(1)
	s.enqueued.Add(1)
	s.cond.Signal()
	return nil
}

// Emit enqueues e's transition.
func (s *Sink) Emit(e key.Event) error {
	return s.Send(e.Code, e.Pressed)
}

// Pending returns the number of enqueued transitions not yet delivered.
func (s *Sink) Pending() int {
	return int(s.pending.Load())
}

// Flush waits until every transition enqueued so far has been delivered.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.pending.Load() == 0 {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting transitions, delivers what is queued and stops
// the consumer. A sink that was never started drops its queue.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	if !started {
		s.pending.Add(-int64(len(s.queue)))
		s.queue = nil
		s.wakeWaiters()
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Enqueued: s.enqueued.Load(),
		Sent:     s.sent.Load(),
		Failed:   s.failed.Load(),
		Pending:  s.Pending(),
	}
}

func (s *Sink) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, it := range batch {
			s.deliver(it)
		}

		s.mu.Lock()
		if s.pending.Load() == 0 {
			s.wakeWaiters()
		}
		s.mu.Unlock()
	}
}

func (s *Sink) deliver(it item) {
	defer s.pending.Add(-1)

	if err := s.sender.Send(it.code, it.pressed); err != nil {
		s.failed.Add(1)
		s.log.WithFields(logrus.Fields{
			"key":     it.code,
			"pressed": it.pressed,
		}).WithError(err).Warn("output: send failed")
		return
	}
	s.sent.Add(1)
}

// wakeWaiters releases Flush callers. Callers hold s.mu.
func (s *Sink) wakeWaiters() {
	for _, ch := range s.waiters {
		close(ch)
	}
	s.waiters = nil
}
