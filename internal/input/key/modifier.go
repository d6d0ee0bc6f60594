package key

import "strings"

// Modifier represents a side-agnostic modifier group.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModShift indicates either Shift key.
	ModShift Modifier = 1 << iota

	// ModCtrl indicates either Control key.
	ModCtrl

	// ModAlt indicates either Alt key.
	ModAlt

	// ModMeta indicates either Meta key (Win, Super, Cmd).
	ModMeta
)

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// Variants returns the concrete left/right codes for a single modifier
// group. Combined groups return the codes of every member.
func (m Modifier) Variants() []Code {
	var codes []Code
	if m.Has(ModCtrl) {
		codes = append(codes, CodeLeftCtrl, CodeRightCtrl)
	}
	if m.Has(ModShift) {
		codes = append(codes, CodeLeftShift, CodeRightShift)
	}
	if m.Has(ModAlt) {
		codes = append(codes, CodeLeftAlt, CodeRightAlt)
	}
	if m.Has(ModMeta) {
		codes = append(codes, CodeLeftMeta, CodeRightMeta)
	}
	return codes
}

// String returns a human-readable representation like "Ctrl+Shift".
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}

	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if m.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if m.Has(ModMeta) {
		parts = append(parts, "Meta")
	}
	return strings.Join(parts, "+")
}

// ModifierOf returns the modifier group of a concrete key, or ModNone.
func ModifierOf(c Code) Modifier {
	switch c {
	case CodeLeftCtrl, CodeRightCtrl:
		return ModCtrl
	case CodeLeftShift, CodeRightShift:
		return ModShift
	case CodeLeftAlt, CodeRightAlt:
		return ModAlt
	case CodeLeftMeta, CodeRightMeta:
		return ModMeta
	default:
		return ModNone
	}
}

// ModifierFromName returns the modifier group for a generic name.
// Returns ModNone if the name is not a generic modifier.
func ModifierFromName(name string) Modifier {
	switch strings.ToLower(name) {
	case "shift":
		return ModShift
	case "ctrl", "control", "ctl":
		return ModCtrl
	case "alt", "option", "opt":
		return ModAlt
	case "meta", "win", "super", "cmd", "command":
		return ModMeta
	default:
		return ModNone
	}
}
