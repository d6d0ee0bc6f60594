package layer

import (
	"errors"
	"time"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
)

// Registration errors.
var (
	ErrDuplicateBinding = errors.New("key already bound on this layer")
	ErrInvalidLayer     = errors.New("layer index must not be negative")
	ErrInvalidBinding   = errors.New("binding needs exactly one of a target key or an action")
	ErrHoldConflict     = errors.New("hold key and hold layer are mutually exclusive")
	ErrNoTap            = errors.New("tap-hold has no tap behaviour")
	ErrNoHold           = errors.New("tap-hold has no hold behaviour")
)

// Binding is what a key does on a layer. The set of implementations is
// closed: Remap and TapHold.
type Binding interface {
	validate() error
	build(r *Router, name string) handler
}

// Remap maps a key to another key, or to an action run on press.
type Remap struct {
	// To is the replacement key.
	To key.Code

	// Action runs on press instead of emitting a key.
	Action pipe.Callback
}

func (b Remap) validate() error {
	if (b.To == key.CodeNone) == (b.Action == nil) {
		return ErrInvalidBinding
	}
	return nil
}

func (b Remap) build(r *Router, name string) handler {
	return &remapHandler{binding: b, r: r, name: name}
}

// TapHold yields one behaviour when tapped and another when held past
// Term.
type TapHold struct {
	// Tap is emitted as a press and release on tap.
	Tap key.Code

	// OnTap runs on tap, in addition to Tap if both are set.
	OnTap pipe.Callback

	// Hold is pressed when the key resolves to a hold and released with
	// the physical key.
	Hold key.Code

	// HoldLayer is activated while held. Zero means none.
	HoldLayer int

	// OnHoldDown and OnHoldUp run when the hold starts and ends.
	OnHoldDown pipe.Callback
	OnHoldUp   pipe.Callback

	// Term is how long the key must be held to count as a hold. Zero uses
	// the router default.
	Term time.Duration

	// QuickTapTerm is the window after a tap in which a new press of the
	// same key is passed straight through as the tap key. Zero uses the
	// router default; a negative value disables quick-tap.
	QuickTapTerm time.Duration
}

func (b TapHold) validate() error {
	switch {
	case b.HoldLayer < 0:
		return ErrInvalidLayer
	case b.Hold != key.CodeNone && b.HoldLayer > 0:
		return ErrHoldConflict
	case b.Tap == key.CodeNone && b.OnTap == nil:
		return ErrNoTap
	case b.Hold == key.CodeNone && b.HoldLayer == 0 && b.OnHoldDown == nil && b.OnHoldUp == nil:
		return ErrNoHold
	}
	return nil
}

func (b TapHold) build(r *Router, name string) handler {
	if b.Term <= 0 {
		b.Term = r.term
	}
	if b.QuickTapTerm == 0 {
		b.QuickTapTerm = r.quickTapTerm
	}
	return &tapHoldHandler{binding: b, r: r, name: name}
}

// handler is the runtime state created for one (layer, key) registration.
type handler interface {
	// press and release receive events for the key the handler is routed
	// from and report whether the live event is swallowed.
	press(e key.Event) bool
	release(e key.Event) bool

	// otherKey is called for every event of any other key while this
	// handler holds a route.
	otherKey(e key.Event)

	// undecided reports whether the handler is waiting on a timer or key
	// to decide what its press meant.
	undecided() bool
}
