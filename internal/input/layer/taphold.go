package layer

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/timer"
)

type tapHoldState uint8

const (
	stateIdle tapHoldState = iota
	statePressed
	stateHeld
	stateQuick
)

func (s tapHoldState) String() string {
	switch s {
	case statePressed:
		return "pressed"
	case stateHeld:
		return "held"
	case stateQuick:
		return "quick"
	default:
		return "idle"
	}
}

// tapHoldHandler decides between tap and hold for one key.
//
// The hold timer is guarded by epoch: every transition out of the pressed
// state bumps it, and an expiry whose captured epoch no longer matches
// does nothing.
type tapHoldHandler struct {
	binding TapHold
	r       *Router
	name    string

	state     tapHoldState
	epoch     uint64
	timer     timer.Timer
	pressedAt time.Time
	lastTap   time.Time
}

func (h *tapHoldHandler) press(e key.Event) bool {
	switch h.state {
	case stateIdle:
		if h.quickTap(e.Timestamp) {
			h.state = stateQuick
			h.log().Debug("taphold: quick tap")
			h.emitTapDown(e.Timestamp)
			return true
		}
		h.state = statePressed
		h.pressedAt = e.Timestamp
		h.epoch++
		epoch := h.epoch
		h.timer = h.r.env.Timers.AfterFunc(h.binding.Term, func() {
			h.r.env.Lock.Lock()
			defer h.r.env.Lock.Unlock()
			h.expire(epoch)
		})
	case stateHeld:
		if h.binding.Hold != key.CodeNone {
			h.r.next.Handle(key.Press(h.binding.Hold, e.Timestamp))
		}
	case stateQuick:
		if h.binding.Tap != key.CodeNone {
			h.r.next.Handle(key.Press(h.binding.Tap, e.Timestamp))
		}
	}
	// Auto-repeat while undecided is dropped.
	return true
}

func (h *tapHoldHandler) release(e key.Event) bool {
	switch h.state {
	case statePressed:
		if e.Timestamp.Sub(h.pressedAt) >= h.binding.Term {
			h.resolveHold(e.Timestamp)
			h.holdUp(e.Timestamp)
			break
		}
		h.cancel()
		h.log().Debug("taphold: resolved tap")
		h.emitTapDown(e.Timestamp)
		h.emitTapUp(e.Timestamp)
		h.lastTap = e.Timestamp
	case stateHeld:
		h.holdUp(e.Timestamp)
	case stateQuick:
		h.emitTapUp(e.Timestamp)
		h.lastTap = e.Timestamp
	}
	h.state = stateIdle
	return true
}

func (h *tapHoldHandler) otherKey(e key.Event) {
	if h.state == statePressed && e.Pressed {
		h.log().WithField("interrupt", e.Code).Debug("taphold: interrupted")
		h.resolveHold(e.Timestamp)
	}
}

func (h *tapHoldHandler) undecided() bool {
	return h.state == statePressed
}

func (h *tapHoldHandler) expire(epoch uint64) {
	if epoch != h.epoch || h.state != statePressed {
		return
	}
	h.resolveHold(h.r.env.Timers.Now())
	h.r.drain()
}

func (h *tapHoldHandler) quickTap(now time.Time) bool {
	if h.binding.QuickTapTerm <= 0 || h.lastTap.IsZero() {
		return false
	}
	return now.Sub(h.lastTap) < h.binding.QuickTapTerm
}

func (h *tapHoldHandler) cancel() {
	h.epoch++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *tapHoldHandler) resolveHold(at time.Time) {
	h.cancel()
	h.state = stateHeld
	h.log().Debug("taphold: resolved hold")

	b := h.binding
	if b.Hold != key.CodeNone {
		h.r.next.Handle(key.Press(b.Hold, at))
	}
	if b.HoldLayer > 0 {
		h.r.activate(b.HoldLayer)
	}
	if b.OnHoldDown != nil {
		h.r.env.Runner.Run(h.name+" hold down", b.OnHoldDown)
	}
}

func (h *tapHoldHandler) holdUp(at time.Time) {
	b := h.binding
	if b.Hold != key.CodeNone {
		h.r.next.Handle(key.Release(b.Hold, at))
	}
	if b.HoldLayer > 0 {
		h.r.deactivate(b.HoldLayer)
	}
	if b.OnHoldUp != nil {
		h.r.env.Runner.Run(h.name+" hold up", b.OnHoldUp)
	}
}

func (h *tapHoldHandler) emitTapDown(at time.Time) {
	if h.binding.Tap != key.CodeNone {
		h.r.next.Handle(key.Press(h.binding.Tap, at))
	}
	if h.binding.OnTap != nil {
		h.r.env.Runner.Run(h.name+" tap", h.binding.OnTap)
	}
}

func (h *tapHoldHandler) emitTapUp(at time.Time) {
	if h.binding.Tap != key.CodeNone {
		h.r.next.Handle(key.Release(h.binding.Tap, at))
	}
}

func (h *tapHoldHandler) log() logrus.FieldLogger {
	return h.r.env.Log.WithFields(logrus.Fields{"binding": h.name, "state": h.state})
}
