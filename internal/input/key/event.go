package key

import (
	"fmt"
	"time"
)

// Origin tells where an event came from.
type Origin uint8

const (
	// OriginSystem marks events delivered by the operating system.
	OriginSystem Origin = iota

	// OriginSynthetic marks events produced by the engine itself.
	OriginSynthetic
)

// String returns the origin name.
func (o Origin) String() string {
	if o == OriginSynthetic {
		return "synthetic"
	}
	return "system"
}

// Event is one logical key transition. It is a value type and is never
// modified after construction.
type Event struct {
	// Code identifies the key.
	Code Code

	// Pressed is true for a press, false for a release.
	Pressed bool

	// Origin tells whether the OS or the engine produced the event.
	Origin Origin

	// Timestamp is when the event occurred. Used only for timing.
	Timestamp time.Time

	// Seq is the arrival number assigned to system events by the engine.
	// Synthesized events have Seq 0.
	Seq uint64
}

// Press creates a synthetic press event stamped with t.
func Press(c Code, t time.Time) Event {
	return Event{Code: c, Pressed: true, Origin: OriginSynthetic, Timestamp: t}
}

// Release creates a synthetic release event stamped with t.
func Release(c Code, t time.Time) Event {
	return Event{Code: c, Pressed: false, Origin: OriginSynthetic, Timestamp: t}
}

// Equals compares two events by key and direction only.
func (e Event) Equals(other Event) bool {
	return e.Code == other.Code && e.Pressed == other.Pressed
}

// WithCode returns a copy of e for another key, keeping direction and
// timestamp. The copy is synthetic.
func (e Event) WithCode(c Code) Event {
	return Event{Code: c, Pressed: e.Pressed, Origin: OriginSynthetic, Timestamp: e.Timestamp}
}

// String returns a representation like "+A" for a press or "-A" for a release.
func (e Event) String() string {
	dir := "-"
	if e.Pressed {
		dir = "+"
	}
	return fmt.Sprintf("%s%s", dir, e.Code)
}
