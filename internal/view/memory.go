package view

import (
	"sync"

	"gobengali/internal/correction"
	"gobengali/internal/text"
)

// Memory is an in-process editor. With EchoOnSet it behaves like rich-text
// widgets that report a change for every programmatic content assignment,
// even when asked not to.
type Memory struct {
	mu         sync.Mutex
	content    string
	caret      int
	highlights []correction.Correction
	subs       map[int]func(string)
	nextSub    int
	sets       int

	EchoOnSet bool
}

// NewMemory returns an editor holding s with the caret at the end.
func NewMemory(s string) *Memory {
	return &Memory{content: s, caret: text.Len(s), subs: make(map[int]func(string))}
}

func (m *Memory) PlainText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

func (m *Memory) SetContent(s string, emit bool) error {
	m.mu.Lock()
	m.content = s
	m.caret = clampOffset(s, m.caret)
	m.sets++
	notify := emit || m.EchoOnSet
	m.mu.Unlock()

	if notify {
		m.emit(s)
	}
	return nil
}

func (m *Memory) FocusEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caret = text.Len(m.content)
}

func (m *Memory) CaretOffset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caret
}

// SetCaret moves the caret, clamped to the content.
func (m *Memory) SetCaret(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caret = clampOffset(m.content, offset)
}

func (m *Memory) CoordsAtOffset(offset int) Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lineCol(m.content, offset)
}

func (m *Memory) ReplaceRange(from, to int, s string) error {
	m.mu.Lock()
	from = clampOffset(m.content, from)
	to = max(clampOffset(m.content, to), from)
	m.content = text.Splice(m.content, from, to-from, s)
	m.caret = from + text.Len(s)
	content := m.content
	m.mu.Unlock()

	m.emit(content)
	return nil
}

// Type simulates the user typing: the content is replaced, the caret moves
// to the end and subscribers are notified.
func (m *Memory) Type(s string) {
	m.mu.Lock()
	m.content = s
	m.caret = text.Len(s)
	m.mu.Unlock()
	m.emit(s)
}

func (m *Memory) OnChange(fn func(string)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Highlight implements Highlighter.
func (m *Memory) Highlight(cs []correction.Correction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.highlights = append(m.highlights[:0:0], cs...)
}

// Highlights returns the spans last rendered.
func (m *Memory) Highlights() []correction.Correction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]correction.Correction(nil), m.highlights...)
}

// Sets returns how many times SetContent was called.
func (m *Memory) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func (m *Memory) emit(s string) {
	m.mu.Lock()
	fns := make([]func(string), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
