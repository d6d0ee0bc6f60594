package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
)

// MaxChordKeys bounds the size of a chord.
const MaxChordKeys = 8

// Registration errors.
var (
	ErrInvalidChord   = errors.New("invalid chord")
	ErrDuplicateChord = errors.New("chord already registered")
	ErrNilCallback    = errors.New("chord has no callback")
)

// chord is one concrete registered key combination.
type chord struct {
	group   int
	keys    key.Chord
	set     string
	name    string
	cb      pipe.Callback
	swallow bool
}

func (c *chord) trigger() key.Code {
	return c.keys.Trigger()
}

// registry indexes chords by their unordered key set and keeps a count of
// the proper subsets of every swallowing chord's non-trigger keys, which
// are the partial states worth holding back.
type registry struct {
	bySet    map[string][]*chord
	prefixes map[string]int
	relevant map[key.Code]int
	groups   map[int][]*chord
	nextID   int
}

func newRegistry() *registry {
	return &registry{
		bySet:    make(map[string][]*chord),
		prefixes: make(map[string]int),
		relevant: make(map[key.Code]int),
		groups:   make(map[int][]*chord),
	}
}

// add registers chords as one group. Either all are added or none.
func (r *registry) add(chords []key.Chord, cb pipe.Callback, swallow bool) (int, error) {
	if cb == nil {
		return 0, pipe.Configf("hotkey", ErrNilCallback)
	}
	if len(chords) == 0 {
		return 0, pipe.Configf("hotkey", fmt.Errorf("%w: no keys", ErrInvalidChord))
	}

	built := make([]*chord, 0, len(chords))
	seen := make(map[string]bool, len(chords))
	for _, keys := range chords {
		subject := "hotkey " + keys.String()
		if err := validateChord(keys); err != nil {
			return 0, pipe.Configf(subject, err)
		}
		c := &chord{
			keys:    append(key.Chord(nil), keys...),
			set:     setKey(keys),
			name:    subject,
			cb:      cb,
			swallow: swallow,
		}
		id := c.set + ">" + strconv.FormatUint(uint64(c.trigger()), 10)
		if seen[id] || r.find(c.set, c.trigger()) != nil {
			return 0, pipe.Configf(subject, ErrDuplicateChord)
		}
		seen[id] = true
		built = append(built, c)
	}

	r.nextID++
	group := r.nextID
	for _, c := range built {
		c.group = group
		r.bySet[c.set] = append(r.bySet[c.set], c)
		for _, k := range c.keys {
			r.relevant[k]++
		}
		if c.swallow {
			for _, p := range prefixesOf(c.keys) {
				r.prefixes[p]++
			}
		}
	}
	r.groups[group] = built
	return group, nil
}

// remove drops a group. It reports whether the group existed.
func (r *registry) remove(group int) bool {
	built, ok := r.groups[group]
	if !ok {
		return false
	}
	delete(r.groups, group)

	for _, c := range built {
		list := r.bySet[c.set]
		for i, other := range list {
			if other == c {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(r.bySet, c.set)
		} else {
			r.bySet[c.set] = list
		}
		for _, k := range c.keys {
			if r.relevant[k]--; r.relevant[k] == 0 {
				delete(r.relevant, k)
			}
		}
		if c.swallow {
			for _, p := range prefixesOf(c.keys) {
				if r.prefixes[p]--; r.prefixes[p] == 0 {
					delete(r.prefixes, p)
				}
			}
		}
	}
	return true
}

func (r *registry) find(set string, trigger key.Code) *chord {
	for _, c := range r.bySet[set] {
		if c.trigger() == trigger {
			return c
		}
	}
	return nil
}

func (r *registry) isRelevant(c key.Code) bool {
	return r.relevant[c] > 0
}

func (r *registry) isPrefix(set string) bool {
	return r.prefixes[set] > 0
}

func validateChord(keys key.Chord) error {
	switch {
	case len(keys) == 0:
		return fmt.Errorf("%w: no keys", ErrInvalidChord)
	case len(keys) > MaxChordKeys:
		return fmt.Errorf("%w: more than %d keys", ErrInvalidChord, MaxChordKeys)
	}
	seen := make(map[key.Code]bool, len(keys))
	for _, k := range keys {
		if k == key.CodeNone {
			return fmt.Errorf("%w: empty key", ErrInvalidChord)
		}
		if seen[k] {
			return fmt.Errorf("%w: %s repeated", ErrInvalidChord, k)
		}
		seen[k] = true
	}
	return nil
}

// setKey returns a canonical string for an unordered set of codes.
func setKey(codes []key.Code) string {
	sorted := append([]key.Code(nil), codes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return b.String()
}

// prefixesOf returns the set keys of every non-empty subset of the
// chord's non-trigger keys.
func prefixesOf(keys key.Chord) []string {
	mods := keys[:len(keys)-1]
	out := make([]string, 0, (1<<len(mods))-1)
	for mask := 1; mask < 1<<len(mods); mask++ {
		var subset []key.Code
		for i, k := range mods {
			if mask&(1<<i) != 0 {
				subset = append(subset, k)
			}
		}
		out = append(out, setKey(subset))
	}
	return out
}
