package key

import "strconv"

// Code identifies a physical key or button.
//
// Values follow the Linux input event codes so that platform adapters on
// Linux can pass them through unchanged; other adapters translate into this
// space at the boundary.
type Code uint32

// CodeNone represents no key.
const CodeNone Code = 0

// Keyboard keys.
const (
	CodeEsc        Code = 1
	Code1          Code = 2
	Code2          Code = 3
	Code3          Code = 4
	Code4          Code = 5
	Code5          Code = 6
	Code6          Code = 7
	Code7          Code = 8
	Code8          Code = 9
	Code9          Code = 10
	Code0          Code = 11
	CodeMinus      Code = 12
	CodeEqual      Code = 13
	CodeBackspace  Code = 14
	CodeTab        Code = 15
	CodeQ          Code = 16
	CodeW          Code = 17
	CodeE          Code = 18
	CodeR          Code = 19
	CodeT          Code = 20
	CodeY          Code = 21
	CodeU          Code = 22
	CodeI          Code = 23
	CodeO          Code = 24
	CodeP          Code = 25
	CodeLeftBrace  Code = 26
	CodeRightBrace Code = 27
	CodeEnter      Code = 28
	CodeLeftCtrl   Code = 29
	CodeA          Code = 30
	CodeS          Code = 31
	CodeD          Code = 32
	CodeF          Code = 33
	CodeG          Code = 34
	CodeH          Code = 35
	CodeJ          Code = 36
	CodeK          Code = 37
	CodeL          Code = 38
	CodeSemicolon  Code = 39
	CodeApostrophe Code = 40
	CodeGrave      Code = 41
	CodeLeftShift  Code = 42
	CodeBackslash  Code = 43
	CodeZ          Code = 44
	CodeX          Code = 45
	CodeC          Code = 46
	CodeV          Code = 47
	CodeB          Code = 48
	CodeN          Code = 49
	CodeM          Code = 50
	CodeComma      Code = 51
	CodeDot        Code = 52
	CodeSlash      Code = 53
	CodeRightShift Code = 54
	CodeKPAsterisk Code = 55
	CodeLeftAlt    Code = 56
	CodeSpace      Code = 57
	CodeCapsLock   Code = 58
	CodeF1         Code = 59
	CodeF2         Code = 60
	CodeF3         Code = 61
	CodeF4         Code = 62
	CodeF5         Code = 63
	CodeF6         Code = 64
	CodeF7         Code = 65
	CodeF8         Code = 66
	CodeF9         Code = 67
	CodeF10        Code = 68
	CodeNumLock    Code = 69
	CodeScrollLock Code = 70
	CodeKP7        Code = 71
	CodeKP8        Code = 72
	CodeKP9        Code = 73
	CodeKPMinus    Code = 74
	CodeKP4        Code = 75
	CodeKP5        Code = 76
	CodeKP6        Code = 77
	CodeKPPlus     Code = 78
	CodeKP1        Code = 79
	CodeKP2        Code = 80
	CodeKP3        Code = 81
	CodeKP0        Code = 82
	CodeKPDot      Code = 83
	CodeF11        Code = 87
	CodeF12        Code = 88
	CodeKPEnter    Code = 96
	CodeRightCtrl  Code = 97
	CodeKPSlash    Code = 98
	CodePrint      Code = 99
	CodeRightAlt   Code = 100
	CodeHome       Code = 102
	CodeUp         Code = 103
	CodePageUp     Code = 104
	CodeLeft       Code = 105
	CodeRight      Code = 106
	CodeEnd        Code = 107
	CodeDown       Code = 108
	CodePageDown   Code = 109
	CodeInsert     Code = 110
	CodeDelete     Code = 111
	CodeMute       Code = 113
	CodeVolumeDown Code = 114
	CodeVolumeUp   Code = 115
	CodePause      Code = 119
	CodeLeftMeta   Code = 125
	CodeRightMeta  Code = 126
	CodeCompose    Code = 127
	CodeF13        Code = 183
	CodeF14        Code = 184
	CodeF15        Code = 185
	CodeF16        Code = 186
	CodeF17        Code = 187
	CodeF18        Code = 188
	CodeF19        Code = 189
	CodeF20        Code = 190
	CodeF21        Code = 191
	CodeF22        Code = 192
	CodeF23        Code = 193
	CodeF24        Code = 194
)

// Mouse buttons.
const (
	CodeMouseLeft   Code = 0x110
	CodeMouseRight  Code = 0x111
	CodeMouseMiddle Code = 0x112
	CodeMouseSide   Code = 0x113
	CodeMouseExtra  Code = 0x114
)

// IsMouseButton returns true if c is a mouse button.
func (c Code) IsMouseButton() bool {
	return c >= CodeMouseLeft && c <= CodeMouseExtra
}

// IsModifier returns true if c is one of the left/right modifier keys.
func (c Code) IsModifier() bool {
	return ModifierOf(c) != ModNone
}

// String returns the canonical name of the key, or "#<n>" for codes
// without a name.
func (c Code) String() string {
	if name, ok := canonical[c]; ok {
		return name
	}
	return "#" + strconv.FormatUint(uint64(c), 10)
}
