package view

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobengali/internal/correction"
)

var (
	_ Editor      = (*Memory)(nil)
	_ Editor      = (*File)(nil)
	_ Highlighter = (*Memory)(nil)
)

func TestMemoryEmitsOnlyWhenAsked(t *testing.T) {
	m := NewMemory("abc")
	var got []string
	cancel := m.OnChange(func(s string) { got = append(got, s) })

	require.NoError(t, m.SetContent("quiet", false))
	require.NoError(t, m.SetContent("loud", true))
	m.Type("typed")
	assert.Equal(t, []string{"loud", "typed"}, got)

	m.EchoOnSet = true
	require.NoError(t, m.SetContent("echo", false))
	assert.Equal(t, []string{"loud", "typed", "echo"}, got)

	cancel()
	m.Type("after")
	assert.Len(t, got, 3)
	assert.Equal(t, 3, m.Sets())
}

func TestMemoryCaretAndRange(t *testing.T) {
	m := NewMemory("ami bhat khai")
	assert.Equal(t, 13, m.CaretOffset())

	m.SetCaret(3)
	require.NoError(t, m.ReplaceRange(0, 3, "আমি "))
	assert.Equal(t, "আমি  bhat khai", m.PlainText())
	assert.Equal(t, 4, m.CaretOffset())

	m.FocusEnd()
	assert.Equal(t, 14, m.CaretOffset())

	m.SetCaret(99)
	assert.Equal(t, 14, m.CaretOffset())
}

func TestCoordsAtOffset(t *testing.T) {
	m := NewMemory("ab\nআমি\nx")
	assert.Equal(t, Point{X: 0, Y: 0}, m.CoordsAtOffset(0))
	assert.Equal(t, Point{X: 2, Y: 0}, m.CoordsAtOffset(2))
	assert.Equal(t, Point{X: 0, Y: 1}, m.CoordsAtOffset(3))
	assert.Equal(t, Point{X: 3, Y: 1}, m.CoordsAtOffset(6))
	assert.Equal(t, Point{X: 1, Y: 2}, m.CoordsAtOffset(99))
}

func TestMarkup(t *testing.T) {
	s := "আমি তোমাকে তিনশত টাকা <দিয়েছিলাম>"
	cs := []correction.Correction{
		{ID: "a", Kind: correction.KindGrammar, Anchor: correction.Anchor{Offset: 0, Length: 3}},
		{ID: "b", Kind: correction.KindSpelling, Anchor: correction.Anchor{Offset: 11, Length: 5}},
		{ID: "overlap", Kind: correction.KindSpelling, Anchor: correction.Anchor{Offset: 0, Length: 2}},
		{ID: "out", Kind: correction.KindSpelling, Anchor: correction.Anchor{Offset: 100, Length: 3}},
	}

	got := Markup(s, cs)
	want := `<span class="grammar-error" data-error-id="a">আমি</span> তোমাকে ` +
		`<span class="spelling-error" data-error-id="b">তিনশত</span> টাকা &lt;দিয়েছিলাম&gt;`
	assert.Equal(t, want, got)
	assert.Equal(t, "a &amp; b", Markup("a & b", nil))
}

func TestFileEditor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("আমি"), 0600))

	f, err := OpenFile(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "আমি", f.PlainText())
	assert.Equal(t, 3, f.CaretOffset())

	var (
		mu  sync.Mutex
		got []string
	)
	f.OnChange(func(s string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})

	require.NoError(t, f.SetContent("আমরা", false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "আমরা", string(data))

	require.NoError(t, os.WriteFile(path, []byte("আমরা ভাত খাই"), 0600))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "আমরা ভাত খাই"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "আমরা ভাত খাই", f.PlainText())

	require.NoError(t, f.Close())
	assert.NoError(t, f.Close())
}
