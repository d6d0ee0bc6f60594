package key

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors
var (
	ErrEmptySpec        = errors.New("empty key specification")
	ErrInvalidSpec      = errors.New("invalid key specification")
	ErrUnknownKey       = errors.New("unknown key name")
	ErrNoTrigger        = errors.New("chord has no trigger key")
	ErrMultipleTriggers = errors.New("chord has more than one trigger key")
)

// Chord is an ordered list of keys. The last element is the trigger.
type Chord []Code

// Trigger returns the last key of the chord.
func (c Chord) Trigger() Code {
	if len(c) == 0 {
		return CodeNone
	}
	return c[len(c)-1]
}

// Contains reports whether the chord includes code.
func (c Chord) Contains(code Code) bool {
	for _, k := range c {
		if k == code {
			return true
		}
	}
	return false
}

// String formats the chord as "LCtrl+LShift+S".
func (c Chord) String() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = k.String()
	}
	return strings.Join(parts, "+")
}

// ParseChord parses a chord specification using the built-in name table.
func ParseChord(spec string) ([]Chord, error) {
	return defaultNames.ParseChord(spec)
}

// ParseChord parses a "KEY(+KEY)*" specification such as "Ctrl+Shift+S".
//
// Every element but the last must be a modifier and the last must not be,
// so a chord has exactly one trigger. Generic modifiers expand into every
// left/right combination; "Ctrl+Shift+S" yields four chords.
func (n *Names) ParseChord(spec string) ([]Chord, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrEmptySpec
	}

	parts := strings.Split(spec, "+")
	alternatives := make([][]Code, len(parts))
	triggers := 0
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: empty element in %q", ErrInvalidSpec, spec)
		}
		codes, err := n.Lookup(p)
		if err != nil {
			return nil, err
		}
		if !codes[0].IsModifier() {
			triggers++
			if i != len(parts)-1 {
				return nil, fmt.Errorf("%w: trigger %q must be last in %q", ErrInvalidSpec, p, spec)
			}
		}
		alternatives[i] = codes
	}
	switch {
	case triggers == 0:
		return nil, fmt.Errorf("%w: %q", ErrNoTrigger, spec)
	case triggers > 1:
		return nil, fmt.Errorf("%w: %q", ErrMultipleTriggers, spec)
	}

	chords := expand(alternatives)
	for _, c := range chords {
		if hasDuplicate(c) {
			return nil, fmt.Errorf("%w: repeated key in %q", ErrInvalidSpec, spec)
		}
	}
	return chords, nil
}

func expand(alternatives [][]Code) []Chord {
	out := []Chord{{}}
	for _, alts := range alternatives {
		next := make([]Chord, 0, len(out)*len(alts))
		for _, prefix := range out {
			for _, c := range alts {
				chord := make(Chord, len(prefix), len(prefix)+1)
				copy(chord, prefix)
				next = append(next, append(chord, c))
			}
		}
		out = next
	}
	return out
}

func hasDuplicate(c Chord) bool {
	seen := make(map[Code]struct{}, len(c))
	for _, k := range c {
		if _, ok := seen[k]; ok {
			return true
		}
		seen[k] = struct{}{}
	}
	return false
}
