package key

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// canonical maps codes to the names used by Code.String.
var canonical = map[Code]string{
	CodeEsc: "Esc", Code1: "1", Code2: "2", Code3: "3", Code4: "4", Code5: "5",
	Code6: "6", Code7: "7", Code8: "8", Code9: "9", Code0: "0",
	CodeMinus: "Minus", CodeEqual: "Equal", CodeBackspace: "Backspace", CodeTab: "Tab",
	CodeQ: "Q", CodeW: "W", CodeE: "E", CodeR: "R", CodeT: "T", CodeY: "Y",
	CodeU: "U", CodeI: "I", CodeO: "O", CodeP: "P",
	CodeLeftBrace: "LeftBrace", CodeRightBrace: "RightBrace", CodeEnter: "Enter",
	CodeLeftCtrl: "LCtrl", CodeA: "A", CodeS: "S", CodeD: "D", CodeF: "F", CodeG: "G",
	CodeH: "H", CodeJ: "J", CodeK: "K", CodeL: "L",
	CodeSemicolon: "Semicolon", CodeApostrophe: "Apostrophe", CodeGrave: "Grave",
	CodeLeftShift: "LShift", CodeBackslash: "Backslash",
	CodeZ: "Z", CodeX: "X", CodeC: "C", CodeV: "V", CodeB: "B", CodeN: "N", CodeM: "M",
	CodeComma: "Comma", CodeDot: "Dot", CodeSlash: "Slash", CodeRightShift: "RShift",
	CodeKPAsterisk: "KPAsterisk", CodeLeftAlt: "LAlt", CodeSpace: "Space", CodeCapsLock: "CapsLock",
	CodeF1: "F1", CodeF2: "F2", CodeF3: "F3", CodeF4: "F4", CodeF5: "F5", CodeF6: "F6",
	CodeF7: "F7", CodeF8: "F8", CodeF9: "F9", CodeF10: "F10", CodeF11: "F11", CodeF12: "F12",
	CodeNumLock: "NumLock", CodeScrollLock: "ScrollLock",
	CodeKP0: "KP0", CodeKP1: "KP1", CodeKP2: "KP2", CodeKP3: "KP3", CodeKP4: "KP4",
	CodeKP5: "KP5", CodeKP6: "KP6", CodeKP7: "KP7", CodeKP8: "KP8", CodeKP9: "KP9",
	CodeKPMinus: "KPMinus", CodeKPPlus: "KPPlus", CodeKPDot: "KPDot", CodeKPEnter: "KPEnter",
	CodeKPSlash: "KPSlash", CodeRightCtrl: "RCtrl", CodePrint: "Print", CodeRightAlt: "RAlt",
	CodeHome: "Home", CodeUp: "Up", CodePageUp: "PageUp", CodeLeft: "Left", CodeRight: "Right",
	CodeEnd: "End", CodeDown: "Down", CodePageDown: "PageDown", CodeInsert: "Insert",
	CodeDelete: "Delete", CodeMute: "Mute", CodeVolumeDown: "VolumeDown", CodeVolumeUp: "VolumeUp",
	CodePause: "Pause", CodeLeftMeta: "LWin", CodeRightMeta: "RWin", CodeCompose: "Menu",
	CodeF13: "F13", CodeF14: "F14", CodeF15: "F15", CodeF16: "F16", CodeF17: "F17", CodeF18: "F18",
	CodeF19: "F19", CodeF20: "F20", CodeF21: "F21", CodeF22: "F22", CodeF23: "F23", CodeF24: "F24",
	CodeMouseLeft: "LButton", CodeMouseRight: "RButton", CodeMouseMiddle: "MButton",
	CodeMouseSide: "XButton1", CodeMouseExtra: "XButton2",
}

// aliases are accepted in addition to the canonical names.
var aliases = map[string]Code{
	"escape": CodeEsc, "return": CodeEnter, "bs": CodeBackspace, "del": CodeDelete,
	"ins": CodeInsert, "pgup": CodePageUp, "pgdn": CodePageDown, "caps": CodeCapsLock,
	"lcontrol": CodeLeftCtrl, "leftctrl": CodeLeftCtrl, "rcontrol": CodeRightCtrl, "rightctrl": CodeRightCtrl,
	"leftshift": CodeLeftShift, "rightshift": CodeRightShift,
	"lmenu": CodeLeftAlt, "leftalt": CodeLeftAlt, "rmenu": CodeRightAlt, "rightalt": CodeRightAlt, "altgr": CodeRightAlt,
	"lmeta": CodeLeftMeta, "lsuper": CodeLeftMeta, "leftmeta": CodeLeftMeta,
	"rmeta": CodeRightMeta, "rsuper": CodeRightMeta, "rightmeta": CodeRightMeta,
	"apps": CodeCompose, "compose": CodeCompose, "printscreen": CodePrint, "sysrq": CodePrint,
	"-": CodeMinus, "=": CodeEqual, "[": CodeLeftBrace, "]": CodeRightBrace, ";": CodeSemicolon,
	"'": CodeApostrophe, "`": CodeGrave, "\\": CodeBackslash, ",": CodeComma, ".": CodeDot,
	"period": CodeDot, "/": CodeSlash, "plus": CodeEqual,
	"lbutton": CodeMouseLeft, "rbutton": CodeMouseRight, "mbutton": CodeMouseMiddle,
	"mouseleft": CodeMouseLeft, "mouseright": CodeMouseRight, "mousemiddle": CodeMouseMiddle,
}

// Names resolves key names to codes. The zero value is not usable; create
// one with NewNames.
type Names struct {
	mu     sync.RWMutex
	byName map[string]Code
}

// NewNames returns a name table populated with the built-in names and
// aliases.
func NewNames() *Names {
	n := &Names{byName: make(map[string]Code, len(canonical)+len(aliases))}
	for c, name := range canonical {
		n.byName[strings.ToLower(name)] = c
	}
	for name, c := range aliases {
		n.byName[name] = c
	}
	return n
}

// Add registers an extra name for a code. Names are case-insensitive.
// An existing name is replaced.
func (n *Names) Add(name string, c Code) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.byName[strings.ToLower(strings.TrimSpace(name))] = c
}

// Lookup resolves a single key name.
//
// Generic modifier names ("Ctrl", "Shift", "Alt", "Win") resolve to both
// concrete variants. Numeric codes are accepted as "#30" or "0x1e".
func (n *Names) Lookup(name string) ([]Code, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySpec
	}
	if mod := ModifierFromName(name); mod != ModNone {
		return mod.Variants(), nil
	}

	n.mu.RLock()
	c, ok := n.byName[strings.ToLower(name)]
	n.mu.RUnlock()
	if ok {
		return []Code{c}, nil
	}

	if c, ok := parseNumeric(name); ok {
		return []Code{c}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// LookupOne resolves a name to a single code. Generic modifiers resolve to
// their left variant.
func (n *Names) LookupOne(name string) (Code, error) {
	codes, err := n.Lookup(name)
	if err != nil {
		return CodeNone, err
	}
	return codes[0], nil
}

func parseNumeric(s string) (Code, bool) {
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(s[1:], 10, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	default:
		return CodeNone, false
	}
	if err != nil || v == 0 {
		return CodeNone, false
	}
	return Code(v), true
}

var defaultNames = NewNames()

// Lookup resolves a key name using the built-in table.
func Lookup(name string) ([]Code, error) {
	return defaultNames.Lookup(name)
}

// LookupOne resolves a key name to a single code using the built-in table.
func LookupOne(name string) (Code, error) {
	return defaultNames.LookupOne(name)
}
