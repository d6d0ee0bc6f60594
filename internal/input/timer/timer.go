// Package timer provides cancellable one-shot timers for hold and combo
// windows.
//
// A Wheel serves every timer from a single goroutine and a deadline heap,
// handing expired work to an executor. Manual is a deterministic
// Scheduler for tests that fires timers only when Advance is called.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Timer is a pending one-shot timer.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Scheduler creates timers and reports the current time.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Wheel is a Scheduler backed by one goroutine and a min-heap of deadlines.
type Wheel struct {
	exec func(func())

	mu      sync.Mutex
	entries entryHeap
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewWheel creates a wheel that runs expired work through exec. A nil exec
// runs work on a new goroutine.
func NewWheel(exec func(func())) *Wheel {
	if exec == nil {
		exec = func(fn func()) { go fn() }
	}
	return &Wheel{
		exec: exec,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the wheel goroutine. Calling Start twice has no effect.
func (w *Wheel) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Close stops the wheel goroutine. Pending timers never fire.
func (w *Wheel) Close() {
	w.mu.Lock()
	started := w.started
	w.started = false
	w.entries = nil
	w.mu.Unlock()

	if !started {
		return
	}
	close(w.stop)
	<-w.done
}

// Now returns the current time.
func (w *Wheel) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn to run once after d.
func (w *Wheel) AfterFunc(d time.Duration, fn func()) Timer {
	e := &entry{when: time.Now().Add(d), fn: fn, wheel: w}

	w.mu.Lock()
	heap.Push(&w.entries, e)
	first := w.entries[0] == e
	w.mu.Unlock()

	if first {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
	return e
}

// Len returns the number of pending timers.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Wheel) loop() {
	defer close(w.done)

	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		now := time.Now()
		var due []func()

		w.mu.Lock()
		for len(w.entries) > 0 && !w.entries[0].when.After(now) {
			e := heap.Pop(&w.entries).(*entry)
			due = append(due, e.fn)
		}
		wait := time.Hour
		if len(w.entries) > 0 {
			wait = w.entries[0].when.Sub(now)
		}
		w.mu.Unlock()

		for _, fn := range due {
			w.exec(fn)
		}

		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(wait)

		select {
		case <-w.stop:
			return
		case <-w.wake:
		case <-t.C:
		}
	}
}

type entry struct {
	when  time.Time
	fn    func()
	wheel *Wheel
	index int
}

func (e *entry) Stop() bool {
	w := e.wheel
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.index < 0 || e.index >= len(w.entries) || w.entries[e.index] != e {
		return false
	}
	heap.Remove(&w.entries, e.index)
	return true
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
