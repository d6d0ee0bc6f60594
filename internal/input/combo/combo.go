// Package combo detects keys pressed together within a short window,
// regardless of the order they arrive in.
//
// A single attempt is open at a time. The first press of a combo member
// opens it; member presses that keep at least one combo reachable inside
// its window are held back. When a combo's full set is down it fires,
// unless a larger combo containing it could still complete, in which case
// firing waits for that combo or for the window to close. An attempt that
// ends without a complete combo replays the held presses in arrival
// order.
//
// Keys of a fired combo are swallowed until released; OnRelease runs once
// the last of them is up.
package combo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
	"github.com/dshills/keyshift/internal/input/timer"
)

// DefaultTerm is the window used when a combo leaves Term zero.
const DefaultTerm = 50 * time.Millisecond

// Registration errors.
var (
	ErrTooFewKeys     = errors.New("combo needs at least two keys")
	ErrInvalidKey     = errors.New("combo has an empty or repeated key")
	ErrNoCallback     = errors.New("combo has no callback")
	ErrDuplicateCombo = errors.New("combo already registered")
)

// Combo describes one registration.
type Combo struct {
	Keys      []key.Code
	Term      time.Duration
	OnPress   pipe.Callback
	OnRelease pipe.Callback
}

type combo struct {
	id        int
	keys      map[key.Code]bool
	set       string
	name      string
	term      time.Duration
	onPress   pipe.Callback
	onRelease pipe.Callback
}

func (c *combo) containsAll(lit []key.Code) bool {
	for _, k := range lit {
		if !c.keys[k] {
			return false
		}
	}
	return true
}

type attempt struct {
	start    time.Time
	lit      []key.Code
	queue    []key.Event
	complete *combo
	epoch    uint64
	timer    timer.Timer
}

func (a *attempt) has(k key.Code) bool {
	for _, l := range a.lit {
		if l == k {
			return true
		}
	}
	return false
}

type fired struct {
	c    *combo
	held map[key.Code]bool
}

// Matcher is the combo pipeline stage.
//
// Matcher is not safe for concurrent use on its own; callers hold env.Lock.
type Matcher struct {
	env  pipe.Env
	next pipe.Stage
	term time.Duration

	combos  map[int]*combo
	members map[key.Code]int
	nextID  int

	cur    *attempt
	epoch  uint64
	active []*fired
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTerm sets the default window.
func WithTerm(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.term = d
		}
	}
}

// NewMatcher creates a combo matcher that forwards to next.
func NewMatcher(env pipe.Env, next pipe.Stage, opts ...Option) *Matcher {
	m := &Matcher{
		env:     env,
		next:    next,
		term:    DefaultTerm,
		combos:  make(map[int]*combo),
		members: make(map[key.Code]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a combo and returns an id for Unregister.
func (m *Matcher) Register(c Combo) (int, error) {
	subject := "combo " + joinKeys(c.Keys)
	if len(c.Keys) < 2 {
		return 0, pipe.Configf(subject, ErrTooFewKeys)
	}
	if c.OnPress == nil && c.OnRelease == nil {
		return 0, pipe.Configf(subject, ErrNoCallback)
	}
	keys := make(map[key.Code]bool, len(c.Keys))
	for _, k := range c.Keys {
		if k == key.CodeNone || keys[k] {
			return 0, pipe.Configf(subject, fmt.Errorf("%w: %s", ErrInvalidKey, k))
		}
		keys[k] = true
	}
	set := setKey(c.Keys)
	for _, other := range m.combos {
		if other.set == set {
			return 0, pipe.Configf(subject, ErrDuplicateCombo)
		}
	}

	term := c.Term
	if term <= 0 {
		term = m.term
	}
	m.nextID++
	cb := &combo{
		id:        m.nextID,
		keys:      keys,
		set:       set,
		name:      subject,
		term:      term,
		onPress:   c.OnPress,
		onRelease: c.OnRelease,
	}
	m.combos[cb.id] = cb
	for k := range keys {
		m.members[k]++
	}
	return cb.id, nil
}

// Unregister removes a combo. An open attempt is abandoned and its held
// presses replayed. A combo that already fired still gets its OnRelease.
func (m *Matcher) Unregister(id int) bool {
	c, ok := m.combos[id]
	if !ok {
		return false
	}
	delete(m.combos, id)
	for k := range c.keys {
		if m.members[k]--; m.members[k] == 0 {
			delete(m.members, k)
		}
	}
	if m.cur != nil {
		m.cur.complete = nil
		m.resolve()
	}
	return true
}

// Handle processes e.
func (m *Matcher) Handle(e key.Event) bool {
	if e.Pressed {
		return m.press(e)
	}
	return m.release(e)
}

func (m *Matcher) press(e key.Event) bool {
	k := e.Code
	if m.heldByFired(k) {
		return true
	}

	if a := m.cur; a != nil {
		if a.has(k) {
			return true
		}
		lit := append(append([]key.Code(nil), a.lit...), k)
		if cands := m.candidates(lit, a.start, e.Timestamp); len(cands) > 0 {
			a.lit = lit
			a.queue = append(a.queue, e)
			m.advance(cands)
			return true
		}
		m.resolve()
	}

	if m.members[k] == 0 {
		return m.next.Handle(e)
	}

	m.cur = &attempt{start: e.Timestamp, lit: []key.Code{k}, queue: []key.Event{e}}
	m.advance(m.candidates(m.cur.lit, e.Timestamp, e.Timestamp))
	return true
}

func (m *Matcher) release(e key.Event) bool {
	k := e.Code
	for i, f := range m.active {
		if !f.held[k] {
			continue
		}
		delete(f.held, k)
		if len(f.held) == 0 {
			m.active = append(m.active[:i], m.active[i+1:]...)
			if f.c.onRelease != nil {
				m.env.Runner.Run(f.c.name+" release", f.c.onRelease)
			}
		}
		return true
	}

	if m.cur != nil {
		m.resolve()
		// The release may belong to a combo that just fired.
		if m.heldByFired(k) {
			return m.release(e)
		}
	}
	return m.next.Handle(e)
}

// candidates returns the combos that contain every lit key and whose
// window, opened at start, is still open at now.
func (m *Matcher) candidates(lit []key.Code, start, now time.Time) []*combo {
	var out []*combo
	for _, c := range m.combos {
		if now.Sub(start) < c.term && c.containsAll(lit) {
			out = append(out, c)
		}
	}
	return out
}

// advance updates the open attempt after its lit set changed: it fires a
// complete combo when nothing larger can still complete, and otherwise
// re-arms the window timer.
func (m *Matcher) advance(cands []*combo) {
	a := m.cur
	larger := false
	for _, c := range cands {
		if len(c.keys) == len(a.lit) {
			a.complete = c
		} else {
			larger = true
		}
	}

	if a.complete != nil && !larger {
		m.resolve()
		return
	}

	var deadline time.Duration
	for _, c := range cands {
		if c.term > deadline {
			deadline = c.term
		}
	}
	m.arm(a.start.Add(deadline).Sub(m.env.Timers.Now()))
}

func (m *Matcher) arm(d time.Duration) {
	a := m.cur
	if a.timer != nil {
		a.timer.Stop()
	}
	m.epoch++
	a.epoch = m.epoch
	epoch := a.epoch
	a.timer = m.env.Timers.AfterFunc(d, func() {
		m.env.Lock.Lock()
		defer m.env.Lock.Unlock()
		if m.cur == nil || m.cur.epoch != epoch {
			return
		}
		m.env.Log.Debug("combo: window closed")
		m.resolve()
	})
}

// resolve closes the open attempt, firing its complete combo if it has
// one and replaying every other held press in order.
func (m *Matcher) resolve() {
	a := m.cur
	if a == nil {
		return
	}
	m.cur = nil
	m.epoch++
	if a.timer != nil {
		a.timer.Stop()
	}

	c := a.complete
	if c != nil {
		held := make(map[key.Code]bool, len(c.keys))
		for k := range c.keys {
			held[k] = true
		}
		m.active = append(m.active, &fired{c: c, held: held})
		m.env.Log.WithField("combo", c.name).Debug("combo: fired")
		if c.onPress != nil {
			m.env.Runner.Run(c.name+" press", c.onPress)
		}
	}

	for _, e := range a.queue {
		if c != nil && c.keys[e.Code] {
			continue
		}
		m.next.Handle(e)
	}
}

func (m *Matcher) heldByFired(k key.Code) bool {
	for _, f := range m.active {
		if f.held[k] {
			return true
		}
	}
	return false
}

func setKey(codes []key.Code) string {
	sorted := append([]key.Code(nil), codes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return joinKeys(sorted)
}

func joinKeys(codes []key.Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}
	return strings.Join(parts, "+")
}
