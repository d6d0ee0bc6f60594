package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPool_StartStop(t *testing.T) {
	p := NewPool(WithLogger(quietLogger()))

	require.NoError(t, p.Start())
	assert.True(t, p.IsRunning())
	assert.ErrorIs(t, p.Start(), ErrAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())
	assert.ErrorIs(t, p.Stop(ctx), ErrNotRunning)
}

func TestPool_Submit_NotRunning(t *testing.T) {
	p := NewPool(WithLogger(quietLogger()))

	err := p.Submit("noop", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestPool_RunExecutes(t *testing.T) {
	p := NewPool(WithQueueSize(100), WithWorkerCount(4), WithLogger(quietLogger()))
	require.NoError(t, p.Start())
	defer p.Stop(context.Background())

	const count = 100
	var executed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(count)

	for i := 0; i < count; i++ {
		p.Run("count", func(context.Context) error {
			executed.Add(1)
			wg.Done()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		assert.Equal(t, int32(count), executed.Load())
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for callbacks, executed: %d", executed.Load())
	}
}

func TestPool_QueueFull(t *testing.T) {
	var reported []*CallbackError
	var mu sync.Mutex
	p := NewPool(
		WithQueueSize(2),
		WithWorkerCount(1),
		WithLogger(quietLogger()),
		WithErrorHandler(func(e *CallbackError) {
			mu.Lock()
			reported = append(reported, e)
			mu.Unlock()
		}),
	)
	require.NoError(t, p.Start())

	blocker := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	slow := func(context.Context) error {
		once.Do(func() { close(started) })
		<-blocker
		return nil
	}

	require.NoError(t, p.Submit("slow", slow))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start processing within timeout")
	}

	require.NoError(t, p.Submit("slow", slow))
	require.NoError(t, p.Submit("slow", slow))
	assert.ErrorIs(t, p.Submit("slow", slow), ErrQueueFull)

	p.Run("rejected", slow)
	mu.Lock()
	if assert.Len(t, reported, 1) {
		assert.ErrorIs(t, reported[0], ErrQueueFull)
		assert.Equal(t, "rejected", reported[0].Name)
	}
	mu.Unlock()

	assert.Equal(t, uint64(2), p.Stats().Dropped)

	close(blocker)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Stop(ctx)
}

func TestPool_CallbackErrorContained(t *testing.T) {
	errs := make(chan *CallbackError, 2)
	p := NewPool(
		WithWorkerCount(1),
		WithLogger(quietLogger()),
		WithErrorHandler(func(e *CallbackError) { errs <- e }),
	)
	require.NoError(t, p.Start())
	defer p.Stop(context.Background())

	boom := errors.New("boom")
	p.Run("failing", func(context.Context) error { return boom })
	p.Run("panicking", func(context.Context) error { panic("kaboom") })

	after := make(chan struct{})
	p.Run("after", func(context.Context) error {
		close(after)
		return nil
	})

	var got []*CallbackError
	for len(got) < 2 {
		select {
		case e := <-errs:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for errors, got %d", len(got))
		}
	}

	assert.Equal(t, "failing", got[0].Name)
	assert.ErrorIs(t, got[0], boom)
	assert.Equal(t, "panicking", got[1].Name)
	assert.ErrorIs(t, got[1], ErrPanicked)
	assert.Equal(t, "kaboom", got[1].Panic)
	assert.NotEmpty(t, got[1].Stack, "panic stack must be captured")

	select {
	case <-after:
	case <-time.After(time.Second):
		t.Fatal("pool stopped running callbacks after a failure")
	}

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Panicked)
	assert.Equal(t, uint64(2), stats.Failed)
}

func TestPool_Timeout(t *testing.T) {
	errs := make(chan *CallbackError, 1)
	p := NewPool(
		WithWorkerCount(1),
		WithTimeout(10*time.Millisecond),
		WithLogger(quietLogger()),
		WithErrorHandler(func(e *CallbackError) { errs <- e }),
	)
	require.NoError(t, p.Start())
	defer p.Stop(context.Background())

	p.Run("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	select {
	case e := <-errs:
		assert.ErrorIs(t, e, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}

	assert.Eventually(t, func() bool { return p.Stats().TimedOut == 1 }, time.Second, 5*time.Millisecond)
}

func TestPool_ExecFallsBackWhenStopped(t *testing.T) {
	p := NewPool(WithLogger(quietLogger()))

	done := make(chan struct{})
	p.Exec(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Exec did not run work on a stopped pool")
	}
}

func TestResult_Err(t *testing.T) {
	assert.Nil(t, Result{Success: true}.Err("ok"), "successful result has no error")

	cause := errors.New("bad")
	e := Result{Error: cause, Duration: time.Millisecond}.Err("cb")
	require.NotNil(t, e)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, time.Millisecond, e.Duration)
	assert.Equal(t, "callback cb: bad", e.Error())

	p := Result{Panicked: true, PanicValue: 42}.Err("cb")
	require.NotNil(t, p)
	assert.ErrorIs(t, p, ErrPanicked)
	assert.Equal(t, "callback cb: panic: 42", p.Error())
}

func TestExecutor_SkipsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	r := NewExecutor().Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.False(t, r.Success)
	assert.ErrorIs(t, r.Error, context.Canceled)
}
