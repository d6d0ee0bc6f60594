package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWheelFiresInDeadlineOrder(t *testing.T) {
	w := NewWheel(func(fn func()) { fn() })
	w.Start()
	defer w.Close()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	w.AfterFunc(30*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 3)
		mu.Unlock()
		close(done)
	})
	w.AfterFunc(10*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	w.AfterFunc(20*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timers did not fire")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, w.Len())
}

func TestWheelStopPreventsFire(t *testing.T) {
	w := NewWheel(nil)
	w.Start()
	defer w.Close()

	fired := make(chan struct{}, 1)
	tm := w.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })

	require.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second Stop should report the timer as inactive")

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestWheelStopAfterFire(t *testing.T) {
	w := NewWheel(func(fn func()) { fn() })
	w.Start()
	defer w.Close()

	fired := make(chan struct{})
	tm := w.AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, tm.Stop())
}

func TestWheelEarlierTimerWakesLoop(t *testing.T) {
	w := NewWheel(nil)
	w.Start()
	defer w.Close()

	w.AfterFunc(time.Hour, func() {})
	fired := make(chan struct{})
	w.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("short timer was not noticed behind a long one")
	}
}

func TestManualAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewManual(start)

	var order []string
	m.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	stopped := m.AfterFunc(150*time.Millisecond, func() { order = append(order, "x") })

	require.True(t, stopped.Stop())
	assert.Equal(t, 2, m.Pending())

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"a"}, order)
	assert.Equal(t, start.Add(100*time.Millisecond), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, start.Add(1100*time.Millisecond), m.Now())
	assert.Equal(t, 0, m.Pending())
}

func TestManualTimerScheduledFromCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var fired []time.Duration
	m.AfterFunc(10*time.Millisecond, func() {
		fired = append(fired, time.Duration(m.Now().UnixNano()))
		m.AfterFunc(10*time.Millisecond, func() {
			fired = append(fired, time.Duration(m.Now().UnixNano()))
		})
	})

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, fired)
}
