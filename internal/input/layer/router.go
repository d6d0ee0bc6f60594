package layer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
)

// Default timings used when a TapHold leaves them zero.
const (
	DefaultTerm         = 200 * time.Millisecond
	DefaultQuickTapTerm = 0
)

// Router is the first pipeline stage. It resolves each fresh press against
// the active layers and remembers which handler claimed it, so the
// release reaches the same handler even if layers change in between.
//
// Router is not safe for concurrent use on its own; callers hold env.Lock.
type Router struct {
	env  pipe.Env
	next pipe.Stage

	term         time.Duration
	quickTapTerm time.Duration
	observer     func(active []int)

	layers    map[int]map[key.Code]handler
	active    map[int]int
	toggled   map[int]bool
	effective []int

	routes map[key.Code]handler
	order  []key.Code
	queue  []key.Event
}

// Option configures a Router.
type Option func(*Router)

// WithTerm sets the default tap-hold term.
func WithTerm(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.term = d
		}
	}
}

// WithQuickTapTerm sets the default quick-tap window.
func WithQuickTapTerm(d time.Duration) Option {
	return func(r *Router) {
		r.quickTapTerm = d
	}
}

// WithObserver registers fn to be told the active layers after every
// change. It runs on the env Runner.
func WithObserver(fn func(active []int)) Option {
	return func(r *Router) {
		r.observer = fn
	}
}

// NewRouter creates a router that forwards to next.
func NewRouter(env pipe.Env, next pipe.Stage, opts ...Option) *Router {
	r := &Router{
		env:          env,
		next:         next,
		term:         DefaultTerm,
		quickTapTerm: DefaultQuickTapTerm,
		layers:       make(map[int]map[key.Code]handler),
		active:       make(map[int]int),
		toggled:      make(map[int]bool),
		effective:    []int{0},
		routes:       make(map[key.Code]handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds keys on layer index. Either every binding is added or,
// on error, none is.
func (r *Router) Register(index int, bindings map[key.Code]Binding) error {
	if index < 0 {
		return pipe.Configf(fmt.Sprintf("layer %d", index), ErrInvalidLayer)
	}

	existing := r.layers[index]
	for code, b := range bindings {
		subject := fmt.Sprintf("layer %d key %s", index, code)
		if code == key.CodeNone {
			return pipe.Configf(subject, key.ErrUnknownKey)
		}
		if b == nil {
			return pipe.Configf(subject, ErrInvalidBinding)
		}
		if _, dup := existing[code]; dup {
			return pipe.Configf(subject, ErrDuplicateBinding)
		}
		if err := b.validate(); err != nil {
			return pipe.Configf(subject, err)
		}
	}

	if existing == nil {
		existing = make(map[key.Code]handler, len(bindings))
		r.layers[index] = existing
	}
	for code, b := range bindings {
		existing[code] = b.build(r, fmt.Sprintf("layer %d %s", index, code))
	}
	return nil
}

// Unregister removes the bindings for codes on layer index. Keys that are
// currently held keep their handler until released.
func (r *Router) Unregister(index int, codes []key.Code) {
	m := r.layers[index]
	for _, c := range codes {
		delete(m, c)
	}
	if len(m) == 0 {
		delete(r.layers, index)
	}
}

// Activate turns a layer on. Activations are counted; each needs a
// matching Deactivate.
func (r *Router) Activate(index int) {
	r.activate(index)
}

// Deactivate undoes one Activate.
func (r *Router) Deactivate(index int) {
	r.deactivate(index)
}

// Toggle latches a layer on, or releases a previous latch.
func (r *Router) Toggle(index int) {
	if index <= 0 {
		return
	}
	if r.toggled[index] {
		delete(r.toggled, index)
		r.deactivate(index)
		return
	}
	r.toggled[index] = true
	r.activate(index)
}

// ActiveLayers returns the active layer indexes in ascending order. Layer
// 0 is always included.
func (r *Router) ActiveLayers() []int {
	out := make([]int, len(r.effective))
	for i, idx := range r.effective {
		out[len(out)-1-i] = idx
	}
	return out
}

// Pending reports whether a press is waiting on a tap-hold decision.
func (r *Router) Pending() bool {
	for _, c := range r.order {
		if r.routes[c].undecided() {
			return true
		}
	}
	return false
}

// Handle routes e. See the package documentation for the ordering rules.
func (r *Router) Handle(e key.Event) bool {
	for _, c := range r.order {
		if c != e.Code {
			r.routes[c].otherKey(e)
		}
	}
	r.drain()

	if r.Pending() && !r.routedToUndecided(e.Code) {
		r.queue = append(r.queue, e)
		return true
	}

	swallow := r.route(e)
	r.drain()
	return swallow
}

func (r *Router) route(e key.Event) bool {
	if h, ok := r.routes[e.Code]; ok {
		if e.Pressed {
			return h.press(e)
		}
		swallow := h.release(e)
		r.removeRoute(e.Code)
		return swallow
	}

	if !e.Pressed {
		return r.next.Handle(e)
	}

	h := r.lookup(e.Code)
	if h == nil {
		return r.next.Handle(e)
	}
	r.routes[e.Code] = h
	r.order = append(r.order, e.Code)
	return h.press(e)
}

// drain replays queued events in arrival order while nothing is undecided.
func (r *Router) drain() {
	for len(r.queue) > 0 && !r.Pending() {
		e := r.queue[0]
		r.queue = r.queue[1:]
		r.route(e)
	}
	if len(r.queue) == 0 {
		r.queue = nil
	}
}

func (r *Router) routedToUndecided(c key.Code) bool {
	h, ok := r.routes[c]
	return ok && h.undecided()
}

func (r *Router) removeRoute(c key.Code) {
	delete(r.routes, c)
	for i, k := range r.order {
		if k == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// lookup finds the handler for c on the highest active layer that binds
// it. Keys a layer does not bind fall through to lower active layers.
func (r *Router) lookup(c key.Code) handler {
	for _, idx := range r.effective {
		if h, ok := r.layers[idx][c]; ok {
			return h
		}
	}
	return nil
}

func (r *Router) activate(index int) {
	if index <= 0 {
		return
	}
	r.active[index]++
	if r.active[index] == 1 {
		r.layersChanged()
	}
}

func (r *Router) deactivate(index int) {
	if r.active[index] == 0 {
		return
	}
	r.active[index]--
	if r.active[index] == 0 {
		delete(r.active, index)
		r.layersChanged()
	}
}

func (r *Router) layersChanged() {
	eff := make([]int, 0, len(r.active)+1)
	for idx := range r.active {
		eff = append(eff, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(eff)))
	r.effective = append(eff, 0)

	r.env.Log.WithField("active", r.ActiveLayers()).Debug("layer: active set changed")
	if r.observer != nil {
		active := r.ActiveLayers()
		r.env.Runner.Run("layer observer", func(context.Context) error {
			r.observer(active)
			return nil
		})
	}
}
