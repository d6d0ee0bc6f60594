package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Validate checks the profile's structure. Key names are resolved later,
// by Apply, against the engine's name table.
func (p *Profile) Validate() error {
	var errs []error
	add := func(err *ValidationError) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	e := p.Engine
	if e.Workers < 0 {
		add(invalid("engine.workers", e.Workers, "must not be negative"))
	}
	if e.QueueSize < 0 {
		add(invalid("engine.queue_size", e.QueueSize, "must not be negative"))
	}
	if e.CallbackTimeout < 0 {
		add(invalid("engine.callback_timeout", e.CallbackTimeout, "must not be negative"))
	}
	if e.LogLevel != "" {
		if _, err := logrus.ParseLevel(e.LogLevel); err != nil {
			add(invalid("engine.log_level", e.LogLevel, "unknown level"))
		}
	}

	d := p.Defaults
	if d.Term < 0 {
		add(invalid("defaults.term", d.Term, "must not be negative"))
	}
	if d.ComboTerm < 0 {
		add(invalid("defaults.combo_term", d.ComboTerm, "must not be negative"))
	}

	for i, l := range p.Layers {
		path := fmt.Sprintf("layer[%d]", i)
		if l.Index < 0 {
			add(invalid(path+".index", l.Index, "must not be negative"))
		}
		for name, a := range l.Action {
			add(a.validate(fmt.Sprintf("%s.action.%s", path, name)))
			if _, dup := l.Remap[name]; dup {
				add(invalid(fmt.Sprintf("%s.action.%s", path, name), nil, "key is also remapped"))
			}
		}
		for name, th := range l.TapHold {
			add(th.validate(fmt.Sprintf("%s.taphold.%s", path, name)))
			_, inRemap := l.Remap[name]
			_, inAction := l.Action[name]
			if inRemap || inAction {
				add(invalid(fmt.Sprintf("%s.taphold.%s", path, name), nil, "key is bound twice"))
			}
		}
	}

	for i, h := range p.Hotkeys {
		path := fmt.Sprintf("hotkey[%d]", i)
		if h.Keys == "" {
			add(invalid(path+".keys", nil, "required"))
		}
		add(h.Action.validate(path + ".action"))
	}

	for i, c := range p.Combos {
		path := fmt.Sprintf("combo[%d]", i)
		if len(c.Keys) < 2 {
			add(invalid(path+".keys", c.Keys, "needs at least two keys"))
		}
		if c.Term < 0 {
			add(invalid(path+".term", c.Term, "must not be negative"))
		}
		if c.Hold == "" && c.OnPress == nil && c.OnRelease == nil {
			add(invalid(path, nil, "needs hold, on_press or on_release"))
		}
		if c.Hold != "" && (c.OnPress != nil || c.OnRelease != nil) {
			add(invalid(path+".hold", c.Hold, "cannot be combined with on_press or on_release"))
		}
		if c.OnPress != nil {
			add(c.OnPress.validate(path + ".on_press"))
		}
		if c.OnRelease != nil {
			add(c.OnRelease.validate(path + ".on_release"))
		}
	}

	return errors.Join(errs...)
}

func (a Action) validate(path string) *ValidationError {
	switch n := a.kinds(); {
	case n == 0:
		return invalid(path, nil, "needs one of send, lua or toggle_layer")
	case n > 1:
		return invalid(path, nil, "send, lua and toggle_layer are mutually exclusive")
	}
	if a.ToggleLayer != nil && *a.ToggleLayer < 0 {
		return invalid(path+".toggle_layer", *a.ToggleLayer, "must not be negative")
	}
	return nil
}

func (t TapHoldSection) validate(path string) *ValidationError {
	switch {
	case t.Tap == "" && t.OnTap == nil:
		return invalid(path, nil, "needs tap or on_tap")
	case t.Hold != "" && t.HoldLayer > 0:
		return invalid(path, nil, "hold and hold_layer are mutually exclusive")
	case t.Hold == "" && t.HoldLayer == 0 && t.OnHoldDown == nil && t.OnHoldUp == nil:
		return invalid(path, nil, "needs hold, hold_layer, on_hold_down or on_hold_up")
	case t.HoldLayer < 0:
		return invalid(path+".hold_layer", t.HoldLayer, "must not be negative")
	case t.Term < 0:
		return invalid(path+".term", t.Term, "must not be negative")
	}
	for field, a := range map[string]*Action{"on_tap": t.OnTap, "on_hold_down": t.OnHoldDown, "on_hold_up": t.OnHoldUp} {
		if a == nil {
			continue
		}
		if err := a.validate(path + "." + field); err != nil {
			return err
		}
	}
	return nil
}
