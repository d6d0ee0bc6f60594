// Package key provides key codes, events and chord parsing for the
// remapping engine.
//
// This package defines the fundamental types for representing input:
//
//   - Code: identifies a physical key or mouse button
//   - Modifier: a side-agnostic modifier group (Ctrl, Shift, Alt, Meta)
//   - Event: one press or release with origin and timestamp
//   - Chord: an ordered key list whose last element is the trigger
//
// # Chord Specifications
//
// Chords are written as "KEY(+KEY)*":
//
//   - Single keys: "A", "F5", "Enter", "LButton"
//   - With modifiers: "Ctrl+S", "LAlt+Tab", "Ctrl+Shift+P"
//   - Numeric codes: "#30", "0x1e"
//
// Generic modifiers expand into their concrete left/right variants, so
// "Ctrl+S" parses to both "LCtrl+S" and "RCtrl+S".
package key
