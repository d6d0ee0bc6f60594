package hotkey

import (
	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
)

// Matcher detects exact chords. A chord's callback runs when its trigger
// is released, provided the set of relevant keys held at that moment is
// exactly the chord and the trigger was the last of them pressed.
//
// Only keys that appear in some chord are tracked. Presses that could
// still become part of a swallowing chord are held back; anything that
// rules the chord out sends them on, in their original order, ahead of
// the event that did so.
//
// Matcher is not safe for concurrent use on its own; callers hold env.Lock.
type Matcher struct {
	env  pipe.Env
	next pipe.Stage
	reg  *registry

	pressed  map[key.Code]bool
	buffer   []key.Event
	armed    *chord
	consumed map[key.Code]bool
}

// NewMatcher creates a matcher that forwards to next.
func NewMatcher(env pipe.Env, next pipe.Stage) *Matcher {
	return &Matcher{
		env:      env,
		next:     next,
		reg:      newRegistry(),
		pressed:  make(map[key.Code]bool),
		consumed: make(map[key.Code]bool),
	}
}

// Register adds chords that share one callback, typically the left/right
// expansions of a single specification. It returns an id for Unregister.
// The last key of each chord is its trigger.
func (m *Matcher) Register(chords []key.Chord, cb pipe.Callback, swallow bool) (int, error) {
	return m.reg.add(chords, cb, swallow)
}

// Unregister removes a group added by Register. Held-back presses are
// sent on.
func (m *Matcher) Unregister(id int) bool {
	if !m.reg.remove(id) {
		return false
	}
	m.flush()
	m.armed = nil
	for k := range m.pressed {
		if !m.reg.isRelevant(k) {
			delete(m.pressed, k)
		}
	}
	for k := range m.consumed {
		if !m.reg.isRelevant(k) {
			delete(m.consumed, k)
		}
	}
	return true
}

// Handle processes e.
func (m *Matcher) Handle(e key.Event) bool {
	if !m.reg.isRelevant(e.Code) {
		// An unrelated release leaves held-back presses and the armed
		// chord alone.
		if !e.Pressed {
			return m.next.Handle(e)
		}
		m.armed = nil
		m.flush()
		return m.next.Handle(e)
	}
	if e.Pressed {
		return m.press(e)
	}
	return m.release(e)
}

func (m *Matcher) press(e key.Event) bool {
	k := e.Code
	if m.pressed[k] {
		if m.isBuffered(k) || m.consumed[k] {
			return true
		}
		return m.next.Handle(e)
	}
	m.pressed[k] = true
	set := m.pressedSet()

	if c := m.reg.find(set, k); c != nil {
		m.armed = c
		if c.swallow {
			m.buffer = append(m.buffer, e)
			return true
		}
		m.flush()
		return m.next.Handle(e)
	}

	m.armed = nil
	if m.reg.isPrefix(set) {
		m.buffer = append(m.buffer, e)
		return true
	}
	m.flush()
	return m.next.Handle(e)
}

func (m *Matcher) release(e key.Event) bool {
	k := e.Code
	snapshot := m.pressedSet()
	wasPressed := m.pressed[k]
	delete(m.pressed, k)

	if c := m.armed; wasPressed && c != nil && c.trigger() == k && c.set == snapshot {
		m.armed = nil
		m.env.Log.WithField("chord", c.name).Debug("hotkey: fired")
		m.env.Runner.Run(c.name, c.cb)
		if !c.swallow {
			return m.next.Handle(e)
		}
		for _, b := range m.buffer {
			if b.Code != k {
				m.consumed[b.Code] = true
			}
		}
		m.buffer = nil
		return true
	}

	m.armed = nil
	if m.consumed[k] {
		delete(m.consumed, k)
		return true
	}
	m.flush()
	return m.next.Handle(e)
}

// flush sends held-back presses on in arrival order.
func (m *Matcher) flush() {
	if len(m.buffer) == 0 {
		return
	}
	if m.armed != nil && m.armed.swallow {
		m.armed = nil
	}
	buf := m.buffer
	m.buffer = nil
	m.env.Log.WithField("count", len(buf)).Debug("hotkey: resending held keys")
	for _, b := range buf {
		m.next.Handle(b)
	}
}

func (m *Matcher) isBuffered(k key.Code) bool {
	for _, b := range m.buffer {
		if b.Code == k {
			return true
		}
	}
	return false
}

func (m *Matcher) pressedSet() string {
	codes := make([]key.Code, 0, len(m.pressed))
	for k := range m.pressed {
		codes = append(codes, k)
	}
	return setKey(codes)
}
