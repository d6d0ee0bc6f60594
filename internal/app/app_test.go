package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyshift/internal/input"
	"github.com/dshills/keyshift/internal/input/key"
)

// fakeDevice plays a script of transitions into the engine, records what
// reaches the "OS", then waits for cancellation.
type fakeDevice struct {
	script []input.RawInputEvent
	played chan struct{}

	mu     sync.Mutex
	out    []string
	closed int
}

func newFakeDevice(events ...input.RawInputEvent) *fakeDevice {
	return &fakeDevice{script: events, played: make(chan struct{})}
}

func (d *fakeDevice) Send(code key.Code, pressed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = append(d.out, key.Event{Code: code, Pressed: pressed}.String())
	return nil
}

func (d *fakeDevice) Run(ctx context.Context, p input.Processor) error {
	for _, ev := range d.script {
		if !p.Process(ev) {
			_ = d.Send(key.Code(ev.Code), ev.Pressed)
		}
	}
	close(d.played)
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDevice) output() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.out, " ")
}

func tap(c key.Code) []input.RawInputEvent {
	return []input.RawInputEvent{
		{Code: uint32(c), Pressed: true},
		{Code: uint32(c), Pressed: false},
	}
}

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyshift.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func runApp(t *testing.T, app *Application) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return")
			return nil
		}
	}
}

func TestRunAppliesProfile(t *testing.T) {
	path := writeProfile(t, "[[layer]]\nindex = 0\nremap = { CapsLock = \"Esc\" }\n")
	dev := newFakeDevice(append(tap(key.CodeCapsLock), tap(key.CodeA)...)...)

	app, err := New(Options{ConfigPath: path, Logger: quietLogger()}, dev)
	require.NoError(t, err)
	stop := runApp(t, app)

	<-dev.played
	assert.Eventually(t, func() bool {
		return dev.output() == "+Esc -Esc +A -A"
	}, 2*time.Second, 5*time.Millisecond, dev.output())

	require.NoError(t, stop())
	assert.Equal(t, 1, dev.closed)

	require.NoError(t, app.Shutdown(), "shutdown is idempotent")
	assert.Equal(t, 1, dev.closed)
}

func TestRunWithoutProfilePassesThrough(t *testing.T) {
	dev := newFakeDevice(tap(key.CodeQ)...)
	app, err := New(Options{Logger: quietLogger()}, dev)
	require.NoError(t, err)
	stop := runApp(t, app)

	<-dev.played
	require.NoError(t, stop())
	assert.Equal(t, "+Q -Q", dev.output())
}

func TestRunTwice(t *testing.T) {
	dev := newFakeDevice()
	app, err := New(Options{Logger: quietLogger()}, dev)
	require.NoError(t, err)
	stop := runApp(t, app)
	<-dev.played

	assert.ErrorIs(t, app.Run(context.Background()), ErrAlreadyRunning)
	require.NoError(t, stop())
}

func TestProfileSettingsApplied(t *testing.T) {
	path := writeProfile(t, "[engine]\nlog_level = \"debug\"\n")
	log := quietLogger()

	_, err := New(Options{ConfigPath: path, Logger: log}, newFakeDevice())
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = quietLogger()
	_, err = New(Options{ConfigPath: path, Logger: log, LogLevel: "warn"}, newFakeDevice())
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel(), "explicit level wins")
}

func TestNewErrors(t *testing.T) {
	t.Run("bad profile", func(t *testing.T) {
		path := writeProfile(t, "[engine]\nworkers = \"many\"\n")
		_, err := New(Options{ConfigPath: path, Logger: quietLogger()}, newFakeDevice())
		var ierr *InitError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "config", ierr.Component)
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := New(Options{Logger: quietLogger(), LogLevel: "chatty"}, newFakeDevice())
		var ierr *InitError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "logging", ierr.Component)
	})
}

func TestRunFailsOnUnresolvableProfile(t *testing.T) {
	path := writeProfile(t, "[[layer]]\nindex = 0\nremap = { A = \"Hyper\" }\n")
	dev := newFakeDevice()
	app, err := New(Options{ConfigPath: path, Logger: quietLogger()}, dev)
	require.NoError(t, err)

	err = app.Run(context.Background())
	var ierr *InitError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "profile", ierr.Component)
	assert.Equal(t, 1, dev.closed)
}

func TestNamesHookRunsBeforeProfile(t *testing.T) {
	path := writeProfile(t, "[[layer]]\nindex = 0\nremap = { Hyper = \"Esc\" }\n")
	dev := newFakeDevice(tap(key.CodeCapsLock)...)
	app, err := New(Options{
		ConfigPath: path,
		Logger:     quietLogger(),
		Names:      func(n *key.Names) { n.Add("Hyper", key.CodeCapsLock) },
	}, dev)
	require.NoError(t, err)
	stop := runApp(t, app)

	<-dev.played
	assert.Eventually(t, func() bool {
		return dev.output() == "+Esc -Esc"
	}, 2*time.Second, 5*time.Millisecond, dev.output())
	require.NoError(t, stop())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LoggerConfig{Output: &buf, JSON: true})
	log.WithField("layer", 1).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(1), entry["layer"])

	buf.Reset()
	NewLogger(LoggerConfig{Output: &buf}).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
