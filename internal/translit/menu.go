package translit

import (
	"fmt"

	"gobengali/internal/view"
)

// Key is a keyboard event routed to an open menu.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyEnter
	KeySpace
	KeyEscape
)

// ParseKey maps DOM-style key names to Key.
func ParseKey(name string) Key {
	switch name {
	case "ArrowUp", "up":
		return KeyUp
	case "ArrowDown", "down":
		return KeyDown
	case "Enter", "enter":
		return KeyEnter
	case " ", "Space", "space":
		return KeySpace
	case "Escape", "Esc", "escape":
		return KeyEscape
	}
	return KeyOther
}

// Action is what the caller should do after a key press.
type Action int

const (
	// ActionIgnore means the key was not for the menu.
	ActionIgnore Action = iota
	// ActionMove means the selection changed.
	ActionMove
	// ActionCommit means the selected suggestion should be inserted.
	ActionCommit
	// ActionDismiss means the menu closed without changes.
	ActionDismiss
)

// Menu is the open suggestion list with its selection cursor. The zero
// value is a closed menu.
type Menu struct {
	res      Result
	selected int
	open     bool
	// Anchor and Caret are the screen positions of the token start and the
	// caret, for placing the list.
	Anchor view.Point
	Caret  view.Point
}

// Open shows res with the first suggestion selected. An empty result closes
// the menu.
func (m *Menu) Open(res Result) {
	m.res = res
	m.selected = 0
	m.open = !res.Empty()
}

// Close hides the menu.
func (m *Menu) Close() {
	m.open = false
	m.res = Result{}
	m.selected = 0
}

// IsOpen reports whether suggestions are on display.
func (m Menu) IsOpen() bool { return m.open }

// Result returns the suggestions on display.
func (m Menu) Result() Result { return m.res }

// Selected returns the index of the highlighted suggestion.
func (m Menu) Selected() int { return m.selected }

// Choice returns the highlighted suggestion text.
func (m Menu) Choice() (string, bool) {
	if !m.open {
		return "", false
	}
	return m.res.Suggestions[m.selected].Text, true
}

// HandleKey applies k. Up and Down wrap around the list; Enter and Space
// commit; Escape dismisses. A closed menu ignores every key.
func (m *Menu) HandleKey(k Key) Action {
	if !m.open {
		return ActionIgnore
	}
	n := len(m.res.Suggestions)
	switch k {
	case KeyDown:
		m.selected = (m.selected + 1) % n
		return ActionMove
	case KeyUp:
		m.selected = (m.selected - 1 + n) % n
		return ActionMove
	case KeyEnter, KeySpace:
		return ActionCommit
	case KeyEscape:
		m.Close()
		return ActionDismiss
	}
	return ActionIgnore
}

// Select moves the cursor to i, e.g. on a mouse hover.
func (m *Menu) Select(i int) bool {
	if !m.open || i < 0 || i >= len(m.res.Suggestions) {
		return false
	}
	m.selected = i
	return true
}

// Commit replaces the token with the selected suggestion followed by a
// space and closes the menu.
func (m *Menu) Commit(ed view.Editor) (string, error) {
	choice, ok := m.Choice()
	if !ok {
		return "", fmt.Errorf("commit transliteration: menu closed")
	}
	tok := m.res.Token
	m.Close()
	if err := Replace(ed, tok, choice); err != nil {
		return "", err
	}
	return choice, nil
}

// Replace splices choice and a trailing space over [tok.Start, tok.End).
func Replace(ed view.Editor, tok Token, choice string) error {
	if err := ed.ReplaceRange(tok.Start, tok.End, choice+" "); err != nil {
		return fmt.Errorf("commit transliteration: %w", err)
	}
	return nil
}
