package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/input"
	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/layer"
	"github.com/dshills/keyshift/internal/input/pipe"
	"github.com/dshills/keyshift/internal/script"
)

// ErrNoScripting is returned when a profile uses lua actions but no
// runtime was given to Apply.
var ErrNoScripting = errors.New("lua actions need a script runtime")

// Target is what a profile is applied to. *input.Engine implements it.
type Target interface {
	script.Host
	RegisterLayer(index int, bindings map[key.Code]layer.Binding) (input.Handle, error)
	RegisterHotkeySpec(spec string, cb pipe.Callback, swallow bool) (input.Handle, error)
	RegisterCombo(keys []key.Code, onPress, onRelease pipe.Callback, term time.Duration) (input.Handle, error)
	Unregister(h input.Handle) error
	Names() *key.Names
}

// EngineConfig returns base with the profile's engine settings and timing
// defaults applied. Unset fields keep base's values. A negative
// quick_tap_term disables quick-tap.
func (p *Profile) EngineConfig(base input.Config) input.Config {
	cfg := base
	e, d := p.Engine, p.Defaults
	if e.Workers > 0 {
		cfg.Workers = e.Workers
	}
	if e.QueueSize > 0 {
		cfg.QueueSize = e.QueueSize
	}
	if e.CallbackTimeout > 0 {
		cfg.CallbackTimeout = time.Duration(e.CallbackTimeout)
	}
	if e.ComboFirst {
		cfg.ComboFirst = true
	}
	if d.Term > 0 {
		cfg.Term = time.Duration(d.Term)
	}
	switch {
	case d.QuickTapTerm > 0:
		cfg.QuickTapTerm = time.Duration(d.QuickTapTerm)
	case d.QuickTapTerm < 0:
		cfg.QuickTapTerm = 0
	}
	if d.ComboTerm > 0 {
		cfg.ComboTerm = time.Duration(d.ComboTerm)
	}
	return cfg
}

// Level returns the configured log level, if any.
func (p *Profile) Level() (logrus.Level, bool) {
	if p.Engine.LogLevel == "" {
		return logrus.InfoLevel, false
	}
	lvl, err := logrus.ParseLevel(p.Engine.LogLevel)
	if err != nil {
		return logrus.InfoLevel, false
	}
	return lvl, true
}

// Applied records the registrations made for one profile.
type Applied struct {
	handles []input.Handle
}

// Len returns the number of registrations.
func (a *Applied) Len() int {
	if a == nil {
		return 0
	}
	return len(a.handles)
}

// Remove unregisters everything Apply registered.
func (a *Applied) Remove(t Target) error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.handles) - 1; i >= 0; i-- {
		if err := t.Unregister(a.handles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	a.handles = nil
	return errors.Join(errs...)
}

// Apply registers the profile's layers, hotkeys and combos on t. rt
// compiles lua actions and may be nil for profiles without them. On error
// nothing stays registered.
func (p *Profile) Apply(t Target, rt *script.Runtime) (*Applied, error) {
	b := &applier{t: t, rt: rt, names: t.Names(), applied: &Applied{}}
	if err := b.apply(p); err != nil {
		if rerr := b.applied.Remove(t); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}
	return b.applied, nil
}

type applier struct {
	t       Target
	rt      *script.Runtime
	names   *key.Names
	applied *Applied
}

func (b *applier) keep(h input.Handle, err error) error {
	if err != nil {
		return err
	}
	b.applied.handles = append(b.applied.handles, h)
	return nil
}

func (b *applier) apply(p *Profile) error {
	for i, l := range p.Layers {
		bindings, err := b.layer(fmt.Sprintf("layer[%d]", i), l)
		if err != nil {
			return err
		}
		if len(bindings) == 0 {
			continue
		}
		if err := b.keep(b.t.RegisterLayer(l.Index, bindings)); err != nil {
			return err
		}
	}

	for i, h := range p.Hotkeys {
		path := fmt.Sprintf("hotkey[%d]", i)
		cb, err := b.action(path+".action", h.Action)
		if err != nil {
			return err
		}
		swallow := h.Swallow == nil || *h.Swallow
		if err := b.keep(b.t.RegisterHotkeySpec(h.Keys, cb, swallow)); err != nil {
			return err
		}
	}

	for i, c := range p.Combos {
		if err := b.combo(fmt.Sprintf("combo[%d]", i), c); err != nil {
			return err
		}
	}
	return nil
}

func (b *applier) layer(path string, l LayerSection) (map[key.Code]layer.Binding, error) {
	bindings := make(map[key.Code]layer.Binding)
	bind := func(src, field string, binding layer.Binding) error {
		codes, err := b.names.Lookup(src)
		if err != nil {
			return resolveError(path+"."+field+"."+src, err)
		}
		for _, c := range codes {
			if _, dup := bindings[c]; dup {
				return invalid(path+"."+field+"."+src, c.String(), "key is bound twice")
			}
			bindings[c] = binding
		}
		return nil
	}

	for _, src := range sortedKeys(l.Remap) {
		to, err := b.names.LookupOne(l.Remap[src])
		if err != nil {
			return nil, resolveError(path+".remap."+src, err)
		}
		if err := bind(src, "remap", layer.Remap{To: to}); err != nil {
			return nil, err
		}
	}

	for _, src := range sortedKeys(l.Action) {
		cb, err := b.action(path+".action."+src, l.Action[src])
		if err != nil {
			return nil, err
		}
		if err := bind(src, "action", layer.Remap{Action: cb}); err != nil {
			return nil, err
		}
	}

	for _, src := range sortedKeys(l.TapHold) {
		th, err := b.tapHold(path+".taphold."+src, l.TapHold[src])
		if err != nil {
			return nil, err
		}
		if err := bind(src, "taphold", th); err != nil {
			return nil, err
		}
	}
	return bindings, nil
}

func (b *applier) tapHold(path string, s TapHoldSection) (layer.TapHold, error) {
	th := layer.TapHold{
		HoldLayer:    s.HoldLayer,
		Term:         time.Duration(s.Term),
		QuickTapTerm: time.Duration(s.QuickTapTerm),
	}
	var err error
	if s.Tap != "" {
		if th.Tap, err = b.names.LookupOne(s.Tap); err != nil {
			return th, resolveError(path+".tap", err)
		}
	}
	if s.Hold != "" {
		if th.Hold, err = b.names.LookupOne(s.Hold); err != nil {
			return th, resolveError(path+".hold", err)
		}
	}
	callbacks := []struct {
		field string
		src   *Action
		dst   *pipe.Callback
	}{
		{"on_tap", s.OnTap, &th.OnTap},
		{"on_hold_down", s.OnHoldDown, &th.OnHoldDown},
		{"on_hold_up", s.OnHoldUp, &th.OnHoldUp},
	}
	for _, c := range callbacks {
		if c.src == nil {
			continue
		}
		if *c.dst, err = b.action(path+"."+c.field, *c.src); err != nil {
			return th, err
		}
	}
	return th, nil
}

func (b *applier) combo(path string, c ComboSection) error {
	keys := make([]key.Code, len(c.Keys))
	for i, name := range c.Keys {
		code, err := b.names.LookupOne(name)
		if err != nil {
			return resolveError(fmt.Sprintf("%s.keys[%d]", path, i), err)
		}
		keys[i] = code
	}

	var onPress, onRelease pipe.Callback
	if c.Hold != "" {
		hold, err := b.names.LookupOne(c.Hold)
		if err != nil {
			return resolveError(path+".hold", err)
		}
		onPress = func(context.Context) error { return b.t.Send(hold, true) }
		onRelease = func(context.Context) error { return b.t.Send(hold, false) }
	}
	var err error
	if c.OnPress != nil {
		if onPress, err = b.action(path+".on_press", *c.OnPress); err != nil {
			return err
		}
	}
	if c.OnRelease != nil {
		if onRelease, err = b.action(path+".on_release", *c.OnRelease); err != nil {
			return err
		}
	}
	return b.keep(b.t.RegisterCombo(keys, onPress, onRelease, time.Duration(c.Term)))
}

// action turns an Action into a callback.
func (b *applier) action(path string, a Action) (pipe.Callback, error) {
	switch {
	case a.Send != "":
		codes, err := b.sendKeys(a.Send)
		if err != nil {
			return nil, resolveError(path+".send", err)
		}
		return func(context.Context) error { return b.t.Tap(codes...) }, nil

	case a.Lua != "":
		if b.rt == nil {
			return nil, invalid(path+".lua", nil, ErrNoScripting.Error())
		}
		s, err := b.rt.Compile(path, a.Lua)
		if err != nil {
			return nil, &ValidationError{Path: path + ".lua", Message: err.Error()}
		}
		return s.Callback(), nil

	case a.ToggleLayer != nil:
		index := *a.ToggleLayer
		return func(context.Context) error {
			b.t.ToggleLayer(index)
			return nil
		}, nil
	}
	return nil, invalid(path, nil, "empty action")
}

// sendKeys resolves "Ctrl+Shift+Esc" into the keys to tap. Unlike hotkey
// specs any key may appear anywhere, and generic modifiers mean the left
// one.
func (b *applier) sendKeys(spec string) ([]key.Code, error) {
	parts := strings.Split(spec, "+")
	codes := make([]key.Code, 0, len(parts))
	for _, p := range parts {
		c, err := b.names.LookupOne(p)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, nil
}

func resolveError(path string, err error) *ValidationError {
	return &ValidationError{Path: path, Message: err.Error()}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
