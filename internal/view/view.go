// Package view defines the boundary to the editor widget and provides an
// in-memory editor and a file-backed editor.
package view

import (
	"gobengali/internal/correction"
	"gobengali/internal/text"
)

// Point is a position on screen (or, for text editors, line and column).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Editor is what the controller needs from an editor view. Offsets are
// Unicode code points into PlainText.
type Editor interface {
	PlainText() string
	// SetContent replaces the whole content. Change subscribers are only
	// notified when emit is true.
	SetContent(s string, emit bool) error
	FocusEnd()
	CaretOffset() int
	CoordsAtOffset(offset int) Point
	// ReplaceRange splices [from, to) and notifies change subscribers.
	ReplaceRange(from, to int, s string) error
	// OnChange subscribes to content changes. The returned func unsubscribes.
	OnChange(fn func(s string)) (cancel func())
}

// Highlighter is implemented by editors that render correction spans
// natively.
type Highlighter interface {
	Highlight(cs []correction.Correction)
}

// lineCol maps an offset into s to a zero-based line and column.
func lineCol(s string, offset int) Point {
	var p Point
	i := 0
	for _, r := range s {
		if i >= offset {
			break
		}
		if r == '\n' {
			p.Y++
			p.X = 0
		} else {
			p.X++
		}
		i++
	}
	return p
}

func clampOffset(s string, offset int) int {
	return min(max(offset, 0), text.Len(s))
}
