// Package config loads keyshift profiles.
//
// A profile is a TOML or YAML file describing engine settings, layers,
// hotkeys and combos:
//
//	[engine]
//	workers = 4
//	combo_first = false
//	log_level = "info"
//
//	[defaults]
//	term = "200ms"
//	combo_term = "50ms"
//
//	[[layer]]
//	index = 0
//	remap = { CapsLock = "Esc" }
//	taphold.F = { tap = "F", hold = "LCtrl" }
//	taphold.Space = { tap = "Space", hold_layer = 1 }
//
//	[[layer]]
//	index = 1
//	remap = { H = "Left", J = "Down", K = "Up", L = "Right" }
//
//	[[hotkey]]
//	keys = "Ctrl+Alt+T"
//	action = { lua = 'tap("Meta", "Enter")' }
//
//	[[combo]]
//	keys = ["J", "K"]
//	on_press = { send = "Esc" }
//
// Profile.Apply registers everything on an engine; a Reloader swaps a
// running profile for a new one, and a Watcher triggers reloads when the
// file changes.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("150ms").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML parses a duration scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Profile is one configuration file.
type Profile struct {
	Engine   EngineSection   `toml:"engine" yaml:"engine"`
	Defaults DefaultsSection `toml:"defaults" yaml:"defaults"`
	Layers   []LayerSection  `toml:"layer" yaml:"layers"`
	Hotkeys  []HotkeySection `toml:"hotkey" yaml:"hotkeys"`
	Combos   []ComboSection  `toml:"combo" yaml:"combos"`
}

// EngineSection holds settings fixed for the life of the engine.
type EngineSection struct {
	Workers         int      `toml:"workers" yaml:"workers"`
	QueueSize       int      `toml:"queue_size" yaml:"queue_size"`
	CallbackTimeout Duration `toml:"callback_timeout" yaml:"callback_timeout"`
	ComboFirst      bool     `toml:"combo_first" yaml:"combo_first"`
	LogLevel        string   `toml:"log_level" yaml:"log_level"`
}

// DefaultsSection holds timing defaults.
type DefaultsSection struct {
	Term         Duration `toml:"term" yaml:"term"`
	QuickTapTerm Duration `toml:"quick_tap_term" yaml:"quick_tap_term"`
	ComboTerm    Duration `toml:"combo_term" yaml:"combo_term"`
}

// LayerSection binds keys on one layer. Keys are key names; generic
// modifier names bind both sides.
type LayerSection struct {
	Index   int                       `toml:"index" yaml:"index"`
	Remap   map[string]string         `toml:"remap" yaml:"remap"`
	Action  map[string]Action         `toml:"action" yaml:"action"`
	TapHold map[string]TapHoldSection `toml:"taphold" yaml:"taphold"`
}

// TapHoldSection configures one tap-hold key.
type TapHoldSection struct {
	Tap          string   `toml:"tap" yaml:"tap"`
	Hold         string   `toml:"hold" yaml:"hold"`
	HoldLayer    int      `toml:"hold_layer" yaml:"hold_layer"`
	Term         Duration `toml:"term" yaml:"term"`
	QuickTapTerm Duration `toml:"quick_tap_term" yaml:"quick_tap_term"`
	OnTap        *Action  `toml:"on_tap" yaml:"on_tap"`
	OnHoldDown   *Action  `toml:"on_hold_down" yaml:"on_hold_down"`
	OnHoldUp     *Action  `toml:"on_hold_up" yaml:"on_hold_up"`
}

// HotkeySection configures one chord.
type HotkeySection struct {
	Keys    string `toml:"keys" yaml:"keys"`
	Swallow *bool  `toml:"swallow" yaml:"swallow"`
	Action  Action `toml:"action" yaml:"action"`
}

// ComboSection configures one combo. Hold is shorthand for pressing a key
// while the combo is down.
type ComboSection struct {
	Keys      []string `toml:"keys" yaml:"keys"`
	Term      Duration `toml:"term" yaml:"term"`
	Hold      string   `toml:"hold" yaml:"hold"`
	OnPress   *Action  `toml:"on_press" yaml:"on_press"`
	OnRelease *Action  `toml:"on_release" yaml:"on_release"`
}

// Action is what a binding does. Exactly one field is set.
type Action struct {
	// Send taps a chord such as "Ctrl+C".
	Send string `toml:"send" yaml:"send"`
	// Lua runs a script.
	Lua string `toml:"lua" yaml:"lua"`
	// ToggleLayer latches a layer on or off.
	ToggleLayer *int `toml:"toggle_layer" yaml:"toggle_layer"`
}

func (a Action) kinds() int {
	n := 0
	if a.Send != "" {
		n++
	}
	if a.Lua != "" {
		n++
	}
	if a.ToggleLayer != nil {
		n++
	}
	return n
}

// String formats d like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}
