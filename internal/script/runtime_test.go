package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyshift/internal/input/key"
)

type fakeHost struct {
	calls   []string
	sendErr error
}

func (h *fakeHost) Tap(codes ...key.Code) error {
	h.calls = append(h.calls, fmt.Sprintf("tap %s", key.Chord(codes)))
	return nil
}

func (h *fakeHost) Send(code key.Code, pressed bool) error {
	if h.sendErr != nil {
		return h.sendErr
	}
	h.calls = append(h.calls, key.Event{Code: code, Pressed: pressed}.String())
	return nil
}

func (h *fakeHost) ActivateLayer(i int)   { h.calls = append(h.calls, fmt.Sprintf("on %d", i)) }
func (h *fakeHost) DeactivateLayer(i int) { h.calls = append(h.calls, fmt.Sprintf("off %d", i)) }
func (h *fakeHost) ToggleLayer(i int)     { h.calls = append(h.calls, fmt.Sprintf("toggle %d", i)) }

func newRuntime(t *testing.T, host Host) *Runtime {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := New(host, WithLogger(log))
	t.Cleanup(r.Close)
	return r
}

func run(t *testing.T, r *Runtime, src string) error {
	t.Helper()
	s, err := r.Compile("test", src)
	require.NoError(t, err)
	return s.Run(context.Background())
}

func TestHostFunctions(t *testing.T) {
	host := &fakeHost{}
	r := newRuntime(t, host)

	err := run(t, r, `
		tap("Ctrl", "C")
		press("LShift")
		release("LShift")
		layer_on(1)
		layer_off(1)
		layer_toggle(2)
	`)
	require.NoError(t, err)
	assert.Equal(t, []string{"tap LCtrl+C", "+LShift", "-LShift", "on 1", "off 1", "toggle 2"}, host.calls)
}

func TestScriptRunsRepeatedly(t *testing.T) {
	host := &fakeHost{}
	r := newRuntime(t, host)

	s, err := r.Compile("counter", `n = (n or 0) + 1; layer_toggle(n)`)
	require.NoError(t, err)
	assert.Equal(t, "counter", s.Name())

	cb := s.Callback()
	require.NoError(t, cb(context.Background()))
	require.NoError(t, cb(context.Background()))
	assert.Equal(t, []string{"toggle 1", "toggle 2"}, host.calls)
}

func TestCompileError(t *testing.T) {
	r := newRuntime(t, &fakeHost{})

	_, err := r.Compile("broken", `tap("A"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script broken")
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", `tap("Hyper")`, "unknown key"},
		{"no keys", `tap()`, "key expected"},
		{"negative layer", `layer_on(-1)`, "negative"},
		{"lua error", `error("nope")`, "nope"},
		{"dofile removed", `dofile("/etc/passwd")`, "non-function"},
		{"require removed", `require("os")`, "non-function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{}
			r := newRuntime(t, host)

			err := run(t, r, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, host.calls)

			require.NoError(t, run(t, r, `layer_on(3)`), "state stays usable after an error")
		})
	}
}

func TestHostErrorRaised(t *testing.T) {
	host := &fakeHost{sendErr: errors.New("sink closed")}
	r := newRuntime(t, host)

	err := run(t, r, `press("A")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink closed")
}

func TestContextStopsRunawayScript(t *testing.T) {
	r := newRuntime(t, &fakeHost{})
	s, err := r.Compile("spin", `while true do end`)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLog(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := New(&fakeHost{}, WithLogger(log))
	defer r.Close()

	s, err := r.Compile("hello", `log("layer", 2, true)`)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "layer 2 true", hook.LastEntry().Message)
	assert.Equal(t, "lua", hook.LastEntry().Data["source"])
}

func TestClosedRuntime(t *testing.T) {
	r := New(&fakeHost{})
	s, err := r.Compile("x", `layer_on(1)`)
	require.NoError(t, err)
	r.Close()
	r.Close()

	assert.ErrorIs(t, s.Run(context.Background()), ErrClosed)
	_, err = r.Compile("y", `x = 1`)
	assert.ErrorIs(t, err, ErrClosed)
}
