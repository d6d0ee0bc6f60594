package layer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
	"github.com/dshills/keyshift/internal/input/pipe/pipetest"
	"github.com/dshills/keyshift/internal/input/timer"
)

const term = 300 * time.Millisecond

func homeRowCtrl() map[key.Code]Binding {
	return map[key.Code]Binding{
		key.CodeF: TapHold{Tap: key.CodeF, Hold: key.CodeLeftCtrl, Term: term},
	}
}

func TestTapWithinTerm(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, homeRowCtrl())

	assert.True(t, f.drv.Press(key.CodeF))
	assert.Empty(t, f.rec.Events(), "press must be held back until decided")

	f.drv.Advance(100 * time.Millisecond)
	assert.True(t, f.drv.Release(key.CodeF))

	assert.Equal(t, []string{"+F", "-F"}, f.rec.Strings())
	assert.Equal(t, 0, f.clock.Pending(), "tap must cancel the hold timer")

	f.drv.Advance(time.Second)
	assert.Equal(t, []string{"+F", "-F"}, f.rec.Strings())
}

func TestHoldPastTerm(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, homeRowCtrl())

	f.drv.Press(key.CodeF)
	f.drv.Advance(term - time.Millisecond)
	assert.Empty(t, f.rec.Events())

	f.drv.Advance(time.Millisecond)
	assert.Equal(t, []string{"+LCtrl"}, f.rec.Strings(), "hold-down must be emitted before any release")

	f.drv.Advance(time.Second)
	f.drv.Release(key.CodeF)
	assert.Equal(t, []string{"+LCtrl", "-LCtrl"}, f.rec.Strings())
}

func TestHoldRepeatsHoldKey(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, homeRowCtrl())

	f.drv.Press(key.CodeF)
	f.drv.Press(key.CodeF)
	f.drv.Advance(term)
	f.drv.Press(key.CodeF)
	f.drv.Release(key.CodeF)

	assert.Equal(t, []string{"+LCtrl", "+LCtrl", "-LCtrl"}, f.rec.Strings())
}

func TestInterruptionForcesHold(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, homeRowCtrl())

	f.drv.Press(key.CodeF)
	f.drv.Advance(50 * time.Millisecond)
	assert.False(t, f.drv.Press(key.CodeB))
	assert.Equal(t, []string{"+LCtrl", "+B"}, f.rec.Strings(), "hold must resolve without waiting for the term")
	assert.Equal(t, 0, f.clock.Pending())

	f.drv.Release(key.CodeB)
	f.drv.Release(key.CodeF)
	assert.Equal(t, []string{"+LCtrl", "+B", "-B", "-LCtrl"}, f.rec.Strings())
}

func TestReleaseOfOtherKeyWaitsForDecision(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, homeRowCtrl())

	f.drv.Press(key.CodeLeftShift)
	f.drv.Press(key.CodeF)
	assert.True(t, f.drv.Release(key.CodeLeftShift), "release is queued while F is undecided")
	assert.Equal(t, []string{"+LShift"}, f.rec.Strings())

	f.drv.Release(key.CodeF)
	assert.Equal(t, []string{"+LShift", "+F", "-F", "-LShift"}, f.rec.Strings())
}

func TestQueuedReleaseReplayedAfterTimer(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, homeRowCtrl())

	f.drv.Press(key.CodeB)
	f.drv.Press(key.CodeF)
	f.drv.Release(key.CodeB)
	f.drv.Advance(term)

	assert.Equal(t, []string{"+B", "+LCtrl", "-B"}, f.rec.Strings())

	f.drv.Release(key.CodeF)
	assert.Equal(t, []string{"+B", "+LCtrl", "-B", "-LCtrl"}, f.rec.Strings())
}

func TestQuickTapPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, map[key.Code]Binding{
		key.CodeF: TapHold{Tap: key.CodeF, Hold: key.CodeLeftCtrl, Term: term, QuickTapTerm: 150 * time.Millisecond},
	})

	f.drv.Press(key.CodeF)
	f.drv.Release(key.CodeF)
	f.drv.Advance(50 * time.Millisecond)

	f.drv.Press(key.CodeF)
	assert.Equal(t, []string{"+F", "-F", "+F"}, f.rec.Strings(), "second press must not wait for the term")
	assert.Equal(t, 0, f.clock.Pending())

	f.drv.Advance(time.Second)
	f.drv.Press(key.CodeF)
	f.drv.Release(key.CodeF)
	assert.Equal(t, []string{"+F", "-F", "+F", "+F", "-F"}, f.rec.Strings())

	f.rec.Reset()
	f.drv.Advance(200 * time.Millisecond)
	f.drv.Press(key.CodeF)
	assert.Empty(t, f.rec.Events(), "outside the window the key is undecided again")
	f.drv.Advance(term)
	assert.Equal(t, []string{"+LCtrl"}, f.rec.Strings())
}

func TestPressAfterHoldIsUndecided(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, map[key.Code]Binding{
		key.CodeF: TapHold{Tap: key.CodeF, Hold: key.CodeLeftCtrl, Term: 100 * time.Millisecond, QuickTapTerm: 150 * time.Millisecond},
	})

	f.drv.Press(key.CodeF)
	f.drv.Release(key.CodeF)
	f.drv.Advance(200 * time.Millisecond)

	f.drv.Press(key.CodeF)
	f.drv.Advance(100 * time.Millisecond)
	f.drv.Release(key.CodeF)
	assert.Equal(t, []string{"+F", "-F", "+LCtrl", "-LCtrl"}, f.rec.Strings())

	f.rec.Reset()
	f.drv.Advance(10 * time.Millisecond)
	f.drv.Press(key.CodeF)
	assert.Empty(t, f.rec.Events(), "a hold never reopens the quick-tap window")
	assert.Equal(t, 1, f.clock.Pending())
}

func TestQuickTapDisabledByNegativeTerm(t *testing.T) {
	f := newFixture(t, WithQuickTapTerm(time.Second))
	f.bind(t, 0, map[key.Code]Binding{
		key.CodeF: TapHold{Tap: key.CodeF, Hold: key.CodeLeftCtrl, Term: term, QuickTapTerm: -1},
	})

	f.drv.Press(key.CodeF)
	f.drv.Release(key.CodeF)
	f.drv.Press(key.CodeF)
	assert.Equal(t, []string{"+F", "-F"}, f.rec.Strings())
}

func TestHoldLayer(t *testing.T) {
	f := newFixture(t)
	f.bind(t, 0, map[key.Code]Binding{
		key.CodeSpace: TapHold{Tap: key.CodeSpace, HoldLayer: 1, Term: term},
	})
	f.bind(t, 1, map[key.Code]Binding{
		key.CodeJ: Remap{To: key.CodeDown},
	})

	f.drv.Press(key.CodeSpace)
	f.drv.Press(key.CodeJ)
	assert.Equal(t, []int{0, 1}, f.router.ActiveLayers())

	f.drv.Release(key.CodeSpace)
	assert.Equal(t, []int{0}, f.router.ActiveLayers())

	f.drv.Release(key.CodeJ)
	assert.Equal(t, []string{"+Down", "-Down"}, f.rec.Strings())
}

func TestTapHoldCallbacks(t *testing.T) {
	f := newFixture(t)
	var calls []string
	record := func(name string) pipe.Callback {
		return func(context.Context) error {
			calls = append(calls, name)
			return nil
		}
	}
	f.bind(t, 0, map[key.Code]Binding{
		key.CodeD: TapHold{
			OnTap:      record("tap"),
			OnHoldDown: record("down"),
			OnHoldUp:   record("up"),
			Term:       term,
		},
	})

	f.drv.Press(key.CodeD)
	f.drv.Release(key.CodeD)
	f.drv.Press(key.CodeD)
	f.drv.Advance(term)
	f.drv.Release(key.CodeD)

	assert.Equal(t, []string{"tap", "down", "up"}, calls)
	assert.Empty(t, f.rec.Events())
	assert.Equal(t, []string{"layer 0 D tap", "layer 0 D hold down", "layer 0 D hold up"}, f.runner.Names())
}

func TestDefaultTermFromRouter(t *testing.T) {
	f := newFixture(t, WithTerm(50*time.Millisecond))
	f.bind(t, 0, map[key.Code]Binding{
		key.CodeF: TapHold{Tap: key.CodeF, Hold: key.CodeLeftCtrl},
	})

	f.drv.Press(key.CodeF)
	f.drv.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"+LCtrl"}, f.rec.Strings())
}

// stubbornScheduler hands out timers that cannot be stopped, so every
// cancelled timer still fires.
type stubbornScheduler struct {
	*timer.Manual
}

func (s stubbornScheduler) AfterFunc(d time.Duration, fn func()) timer.Timer {
	s.Manual.AfterFunc(d, fn)
	return unstoppable{}
}

type unstoppable struct{}

func (unstoppable) Stop() bool { return false }

func TestCancelledTimerCannotResolve(t *testing.T) {
	env, clock, _ := pipetest.Env()
	env.Timers = stubbornScheduler{clock}
	rec := &pipetest.Recorder{}
	r := NewRouter(env, rec)
	require.NoError(t, r.Register(0, homeRowCtrl()))
	drv := &pipetest.Driver{Env: env, Clock: clock, Stage: r}

	drv.Press(key.CodeF)
	drv.Release(key.CodeF)
	drv.Advance(100 * time.Millisecond)
	drv.Press(key.CodeF)

	// The first timer fires here with a stale epoch.
	drv.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"+F", "-F"}, rec.Strings())
	assert.True(t, r.Pending())

	drv.Release(key.CodeF)
	assert.Equal(t, []string{"+F", "-F", "+F", "-F"}, rec.Strings())

	drv.Advance(time.Second)
	assert.Equal(t, []string{"+F", "-F", "+F", "-F"}, rec.Strings())
}
