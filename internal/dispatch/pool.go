package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Pool executes callbacks and timer work on a bounded set of worker
// goroutines. Failures are logged once, here, and never returned to the
// submitter.
type Pool struct {
	// Configuration
	queueSize   int
	workerCount int
	timeout     time.Duration
	log         logrus.FieldLogger
	onError     func(*CallbackError)

	// State
	mu      sync.Mutex // protects queue creation/destruction
	queue   chan task
	running atomic.Bool
	wg      sync.WaitGroup

	// Stats
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	timedOut    atomic.Uint64
	totalTimeNs atomic.Int64
}

type task struct {
	name    string
	fn      Func
	timeout time.Duration
}

// NewPool creates a new worker pool.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		queueSize:   1024,
		workerCount: 4,
		timeout:     5 * time.Second,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option configures a Pool.
type Option func(*Pool)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(p *Pool) {
		if count > 0 {
			p.workerCount = count
		}
	}
}

// WithTimeout sets the callback execution timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pool) {
		p.timeout = timeout
	}
}

// WithLogger sets the logger used to report failed callbacks.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pool) {
		if log != nil {
			p.log = log
		}
	}
}

// WithErrorHandler sets a hook called for every failed callback after it
// has been logged.
func WithErrorHandler(h func(*CallbackError)) Option {
	return func(p *Pool) {
		p.onError = h
	}
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return ErrAlreadyRunning
	}

	p.queue = make(chan task, p.queueSize)
	p.running.Store(true)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return nil
}

// Stop stops the pool gracefully.
// It waits for all queued tasks to complete or until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrNotRunning
	}

	p.running.Store(false)
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit adds a named task to the queue without blocking.
// Returns ErrQueueFull if the queue is at capacity.
func (p *Pool) Submit(name string, fn Func) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return ErrNotRunning
	}

	select {
	case p.queue <- task{name: name, fn: fn, timeout: p.timeout}:
		p.enqueued.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Run submits a user callback. A callback that cannot be queued is
// reported like a failed one.
func (p *Pool) Run(name string, fn Func) {
	if err := p.Submit(name, fn); err != nil {
		p.report(&CallbackError{Name: name, Err: err})
	}
}

// Exec runs internal work such as a timer expiry on the pool. Work that
// cannot be queued runs on its own goroutine so it is never lost.
func (p *Pool) Exec(fn func()) {
	err := p.Submit("timer", func(context.Context) error {
		fn()
		return nil
	})
	if err != nil {
		go fn()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	executor := NewExecutor()
	for t := range p.queue {
		p.executeTask(executor, t)
	}
}

func (p *Pool) executeTask(executor *Executor, t task) {
	p.processed.Add(1)

	result := executor.ExecuteWithTimeout(context.Background(), t.fn, t.timeout)
	p.totalTimeNs.Add(result.Duration.Nanoseconds())

	switch {
	case result.Panicked:
		p.panicked.Add(1)
	case errors.Is(result.Error, context.DeadlineExceeded):
		p.timedOut.Add(1)
	case result.Success:
		p.succeeded.Add(1)
	}

	if cerr := result.Err(t.name); cerr != nil {
		p.report(cerr)
	}
}

func (p *Pool) report(cerr *CallbackError) {
	p.failed.Add(1)

	entry := p.log.WithFields(logrus.Fields{
		"callback": cerr.Name,
		"duration": cerr.Duration,
	})
	if cerr.Panic != nil {
		entry.WithField("panic", cerr.Panic).Errorf("callback panicked\n%s", cerr.Stack)
	} else {
		entry.WithError(cerr.Err).Error("callback failed")
	}

	if p.onError != nil {
		p.onError(cerr)
	}
}

// QueueDepth returns the current number of tasks in the queue.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Load() {
		return 0
	}
	return len(p.queue)
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	processed := p.processed.Load()
	totalNs := p.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return Stats{
		Enqueued:      p.enqueued.Load(),
		Processed:     processed,
		Succeeded:     p.succeeded.Load(),
		Failed:        p.failed.Load(),
		Panicked:      p.panicked.Load(),
		Dropped:       p.dropped.Load(),
		TimedOut:      p.timedOut.Load(),
		QueueDepth:    p.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// Stats contains statistics for a pool.
type Stats struct {
	// Enqueued is the total number of tasks added to the queue.
	Enqueued uint64

	// Processed is the number of tasks that have been processed.
	Processed uint64

	// Succeeded is the number of successful executions.
	Succeeded uint64

	// Failed is the number of callbacks reported as failed, including
	// those that could not be queued.
	Failed uint64

	// Panicked is the number of callbacks that panicked.
	Panicked uint64

	// Dropped is the number of tasks rejected because the queue was full.
	Dropped uint64

	// TimedOut is the number of callbacks that exceeded the timeout.
	TimedOut uint64

	// QueueDepth is the current number of tasks waiting in the queue.
	QueueDepth int

	// TotalDuration is the cumulative time spent processing tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task processing time.
	AvgDuration time.Duration
}
