package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/dispatch"
	"github.com/dshills/keyshift/internal/input/combo"
	"github.com/dshills/keyshift/internal/input/hotkey"
	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/layer"
	"github.com/dshills/keyshift/internal/input/pipe"
	"github.com/dshills/keyshift/internal/input/timer"
	"github.com/dshills/keyshift/internal/output"
)

// Engine lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrNotStarted     = errors.New("engine not started")
	ErrUnknownHandle  = errors.New("unknown handle")
)

// Config configures the engine.
type Config struct {
	// Term is the default tap-hold term.
	// Default: 200ms
	Term time.Duration

	// QuickTapTerm is the default quick-tap window. Zero disables it.
	QuickTapTerm time.Duration

	// ComboTerm is the default combo window.
	// Default: 50ms
	ComboTerm time.Duration

	// ComboFirst runs the combo matcher before the hotkey matcher.
	ComboFirst bool

	// Workers is the number of callback workers.
	// Default: 4
	Workers int

	// QueueSize bounds the callback queue.
	// Default: 1024
	QueueSize int

	// CallbackTimeout cancels the context passed to callbacks.
	// Default: 5s
	CallbackTimeout time.Duration

	// LatencyThreshold is the per-event processing budget. A peak above it
	// is reported as unhealthy when the engine stops.
	// Default: 10ms
	LatencyThreshold time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Term:             layer.DefaultTerm,
		QuickTapTerm:     layer.DefaultQuickTapTerm,
		ComboTerm:        combo.DefaultTerm,
		Workers:          4,
		QueueSize:        1024,
		CallbackTimeout:  5 * time.Second,
		LatencyThreshold: 10 * time.Millisecond,
	}
}

// Processor consumes raw key transitions and reports whether each one was
// swallowed. Platform hooks feed an Engine through it.
type Processor interface {
	Process(raw RawInputEvent) bool
}

// RawInputEvent is one event as delivered by the OS hook.
type RawInputEvent struct {
	Code      uint32
	Pressed   bool
	Synthetic bool
	Timestamp time.Time
}

// Handle identifies a registration for Unregister.
type Handle struct {
	id   uuid.UUID
	kind string
}

// String returns a representation like "hotkey:6ba7b810-...".
func (h Handle) String() string {
	return h.kind + ":" + h.id.String()
}

// IsZero reports whether h was never returned by a registration.
func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and every stage.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithScheduler replaces the timer wheel, typically with a timer.Manual
// in tests.
func WithScheduler(s timer.Scheduler) Option {
	return func(e *Engine) {
		e.timers = s
	}
}

// WithNames sets the key name table used by RegisterHotkeySpec.
func WithNames(n *key.Names) Option {
	return func(e *Engine) {
		e.names = n
	}
}

// WithLayerObserver registers fn to be told the active layers after each
// change.
func WithLayerObserver(fn func(active []int)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithCallbackErrorHandler sets a hook called for every failed callback
// after it has been logged.
func WithCallbackErrorHandler(fn func(*dispatch.CallbackError)) Option {
	return func(e *Engine) {
		e.onCallbackError = fn
	}
}

// Engine owns the layer router, the hotkey and combo matchers, the
// callback pool, the timers and the output sink.
type Engine struct {
	mu sync.Mutex

	config          Config
	log             logrus.FieldLogger
	names           *key.Names
	observer        func(active []int)
	onCallbackError func(*dispatch.CallbackError)

	pool    *dispatch.Pool
	wheel   *timer.Wheel
	timers  timer.Scheduler
	sink    *output.Sink
	metrics *Metrics

	router  *layer.Router
	hotkeys *hotkey.Matcher
	combos  *combo.Matcher
	head    pipe.Stage

	seq     uint64
	live    uint64
	regs    map[uuid.UUID]func() bool
	running bool
}

// New creates an engine that delivers synthesized input to sender.
func New(config Config, sender output.Sender, opts ...Option) *Engine {
	e := &Engine{
		config:  config,
		log:     logrus.StandardLogger(),
		names:   key.NewNames(),
		metrics: NewMetrics(),
		regs:    make(map[uuid.UUID]func() bool),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.pool = dispatch.NewPool(
		dispatch.WithWorkerCount(config.Workers),
		dispatch.WithQueueSize(config.QueueSize),
		dispatch.WithTimeout(config.CallbackTimeout),
		dispatch.WithLogger(e.log),
		dispatch.WithErrorHandler(func(cerr *dispatch.CallbackError) {
			e.metrics.RecordCallbackFailure()
			if e.onCallbackError != nil {
				e.onCallbackError(cerr)
			}
		}),
	)
	if e.timers == nil {
		e.wheel = timer.NewWheel(e.pool.Exec)
		e.timers = e.wheel
	}
	e.sink = output.NewSink(sender, output.WithLogger(e.log))

	env := pipe.Env{
		Lock:   &e.mu,
		Timers: e.timers,
		Runner: e.pool,
		Log:    e.log,
	}

	tail := pipe.StageFunc(e.tail)
	comboOpts := []combo.Option{combo.WithTerm(config.ComboTerm)}
	if config.ComboFirst {
		e.hotkeys = hotkey.NewMatcher(env, tail)
		e.combos = combo.NewMatcher(env, e.hotkeys, comboOpts...)
		e.router = e.newRouter(env, e.combos)
	} else {
		e.combos = combo.NewMatcher(env, tail, comboOpts...)
		e.hotkeys = hotkey.NewMatcher(env, e.combos)
		e.router = e.newRouter(env, e.hotkeys)
	}
	e.head = e.router

	return e
}

func (e *Engine) newRouter(env pipe.Env, next pipe.Stage) *layer.Router {
	opts := []layer.Option{
		layer.WithTerm(e.config.Term),
		layer.WithQuickTapTerm(e.config.QuickTapTerm),
	}
	if e.observer != nil {
		opts = append(opts, layer.WithObserver(e.observer))
	}
	return layer.NewRouter(env, next, opts...)
}

// Start starts the worker pool, the timer wheel and the output sink.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyStarted
	}
	if err := e.pool.Start(); err != nil {
		return fmt.Errorf("start callback pool: %w", err)
	}
	if e.wheel != nil {
		e.wheel.Start()
	}
	e.sink.Start()
	e.running = true

	e.log.WithFields(logrus.Fields{
		"workers":     e.config.Workers,
		"combo_first": e.config.ComboFirst,
	}).Info("engine: started")
	return nil
}

// Stop stops timers, waits for queued callbacks and drains the output
// sink, or gives up when ctx is done. Undecided tap-holds are dropped.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotStarted
	}
	e.running = false
	e.mu.Unlock()

	if e.wheel != nil {
		e.wheel.Close()
	}

	var errs []error
	if err := e.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop callback pool: %w", err))
	}
	if err := e.sink.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close output sink: %w", err))
	}

	snap := e.metrics.Snapshot()
	e.log.WithFields(logrus.Fields{
		"events":           snap.EventsTotal,
		"swallowed":        snap.SwallowedTotal,
		"echoes":           snap.EchoesDropped,
		"callbacks_failed": snap.CallbacksFailed,
		"peak_latency":     snap.PeakLatency,
	}).Info("engine: stopped")

	if e.config.LatencyThreshold > 0 {
		health := e.metrics.HealthCheck(e.config.LatencyThreshold)
		if !health.Healthy {
			e.log.WithFields(logrus.Fields{
				"peak_latency": health.PeakLatency,
				"threshold":    health.LatencyThreshold,
			}).Warn("engine: " + health.Message)
		}
	}

	return errors.Join(errs...)
}

// Process runs one raw event through the pipeline and reports whether
// the OS must suppress it. Synthetic events are never processed.
func (e *Engine) Process(raw RawInputEvent) bool {
	if raw.Synthetic {
		e.metrics.RecordEcho()
		return false
	}

	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return false
	}

	e.seq++
	ev := key.Event{
		Code:      key.Code(raw.Code),
		Pressed:   raw.Pressed,
		Origin:    key.OriginSystem,
		Timestamp: e.timers.Now(),
		Seq:       e.seq,
	}
	e.live = ev.Seq
	swallow := e.head.Handle(ev)
	e.live = 0

	e.metrics.RecordEvent(time.Since(start), swallow)
	return swallow
}

// tail is the last stage. The live event goes back to the OS unless the
// sink still holds earlier output, in which case it is re-sent behind it.
func (e *Engine) tail(ev key.Event) bool {
	if ev.Origin == key.OriginSystem && ev.Seq == e.live && e.sink.Pending() == 0 {
		return false
	}
	if err := e.sink.Emit(ev); err != nil {
		e.metrics.RecordSendFailure()
		e.log.WithField("event", ev.String()).WithError(err).Warn("engine: output dropped")
	}
	return true
}

func (e *Engine) register(kind string, undo func() bool) Handle {
	h := Handle{id: uuid.New(), kind: kind}
	e.regs[h.id] = undo
	e.log.WithField("handle", h.String()).Debug("engine: registered")
	return h
}

// RegisterLayer binds keys on layer index. Either every binding is added
// or none is.
func (e *Engine) RegisterLayer(index int, bindings map[key.Code]layer.Binding) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.router.Register(index, bindings); err != nil {
		return Handle{}, err
	}
	codes := make([]key.Code, 0, len(bindings))
	for c := range bindings {
		codes = append(codes, c)
	}
	return e.register("layer", func() bool {
		e.router.Unregister(index, codes)
		return true
	}), nil
}

// RegisterHotkey registers a chord whose last key is the trigger. The
// callback runs when the trigger is released.
func (e *Engine) RegisterHotkey(keys []key.Code, cb pipe.Callback, swallow bool) (Handle, error) {
	return e.registerChords([]key.Chord{key.Chord(keys)}, cb, swallow)
}

// RegisterHotkeySpec parses spec ("Ctrl+Shift+S") and registers every
// concrete chord it expands to under one handle.
func (e *Engine) RegisterHotkeySpec(spec string, cb pipe.Callback, swallow bool) (Handle, error) {
	chords, err := e.names.ParseChord(spec)
	if err != nil {
		return Handle{}, pipe.Configf(fmt.Sprintf("hotkey %q", spec), err)
	}
	return e.registerChords(chords, cb, swallow)
}

func (e *Engine) registerChords(chords []key.Chord, cb pipe.Callback, swallow bool) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.hotkeys.Register(chords, cb, swallow)
	if err != nil {
		return Handle{}, err
	}
	return e.register("hotkey", func() bool {
		return e.hotkeys.Unregister(id)
	}), nil
}

// RegisterCombo registers keys pressed together within term. A zero term
// uses the configured default.
func (e *Engine) RegisterCombo(keys []key.Code, onPress, onRelease pipe.Callback, term time.Duration) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.combos.Register(combo.Combo{
		Keys:      keys,
		Term:      term,
		OnPress:   onPress,
		OnRelease: onRelease,
	})
	if err != nil {
		return Handle{}, err
	}
	return e.register("combo", func() bool {
		return e.combos.Unregister(id)
	}), nil
}

// Unregister removes the registration behind h. Keys currently held keep
// their behavior until released.
func (e *Engine) Unregister(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	undo, ok := e.regs[h.id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(e.regs, h.id)
	undo()
	return nil
}

// ActivateLayer turns a layer on. Activations are counted.
func (e *Engine) ActivateLayer(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.router.Activate(index)
}

// DeactivateLayer undoes one ActivateLayer.
func (e *Engine) DeactivateLayer(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.router.Deactivate(index)
}

// ToggleLayer latches a layer on or releases the latch.
func (e *Engine) ToggleLayer(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.router.Toggle(index)
}

// ActiveLayers returns the active layers in ascending order.
func (e *Engine) ActiveLayers() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.router.ActiveLayers()
}

// Send emits one synthesized transition, bypassing the pipeline.
func (e *Engine) Send(code key.Code, pressed bool) error {
	return e.sink.Send(code, pressed)
}

// Tap presses codes in order and releases them in reverse, so
// Tap(LeftCtrl, C) produces Ctrl+C.
func (e *Engine) Tap(codes ...key.Code) error {
	for _, c := range codes {
		if err := e.sink.Send(c, true); err != nil {
			return err
		}
	}
	for i := len(codes) - 1; i >= 0; i-- {
		if err := e.sink.Send(codes[i], false); err != nil {
			return err
		}
	}
	return nil
}

// Flush waits until all synthesized output has been delivered.
func (e *Engine) Flush(ctx context.Context) error {
	return e.sink.Flush(ctx)
}

// Names returns the key name table used for chord specs.
func (e *Engine) Names() *key.Names {
	return e.names
}

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Stats returns callback pool statistics.
func (e *Engine) Stats() dispatch.Stats {
	return e.pool.Stats()
}
