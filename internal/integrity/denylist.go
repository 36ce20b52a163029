package integrity

// DefaultForbiddenKeys are rejected regardless of modifiers.
var DefaultForbiddenKeys = []string{"F12", "F5", "F11"}

// Combo is a key plus the modifiers that must be held with it.
// Unset modifiers are not checked.
type Combo struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Matches reports whether ev presses this combination.
func (c Combo) Matches(ev Event) bool {
	if normalizeKey(ev.Key) != normalizeKey(c.Key) {
		return false
	}
	if c.Ctrl && !ev.Ctrl {
		return false
	}
	if c.Shift && !ev.Shift {
		return false
	}
	if c.Alt && !ev.Alt {
		return false
	}
	if c.Meta && !ev.Meta {
		return false
	}
	return true
}

// DefaultForbiddenCombos covers refresh, devtools, view-source and tab
// switching. Every Ctrl shortcut is repeated with Meta for macOS.
var DefaultForbiddenCombos = []Combo{
	{Key: "R", Ctrl: true},
	{Key: "R", Meta: true},
	{Key: "I", Ctrl: true, Shift: true},
	{Key: "I", Meta: true, Shift: true},
	{Key: "J", Ctrl: true, Shift: true},
	{Key: "J", Meta: true, Shift: true},
	{Key: "C", Ctrl: true, Shift: true},
	{Key: "C", Meta: true, Shift: true},
	{Key: "U", Ctrl: true},
	{Key: "U", Meta: true},
	{Key: "Tab", Alt: true},
	{Key: "Tab", Ctrl: true},
	{Key: "Tab", Ctrl: true, Shift: true},
	{Key: "Tab", Meta: true},
	{Key: "Tab", Meta: true, Shift: true},
}
