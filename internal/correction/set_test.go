package correction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mk(id string, offset int) Correction {
	return Correction{ID: id, Kind: KindSpelling, Anchor: Anchor{Offset: offset, Length: 1}, Suggestions: []string{"x"}}
}

func TestSetKeepsInsertionOrderAndUniqueness(t *testing.T) {
	s := NewSet(mk("b", 9), mk("a", 1), mk("b", 4))
	require.Equal(t, 2, s.Len())

	list := s.List()
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, 9, list[0].Anchor.Offset, "first occurrence wins")
	assert.Equal(t, "a", list[1].ID)

	assert.False(t, s.Add(mk("a", 3)))
	assert.True(t, s.Add(mk("c", 3)))
	assert.Equal(t, []string{"b", "a", "c"}, ids(s.List()))
}

func TestSetRemoveAndClear(t *testing.T) {
	s := NewSet(mk("a", 0), mk("b", 1), mk("c", 2))
	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.List()))

	assert.Equal(t, 2, s.Clear())
	assert.True(t, s.Empty())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestSetReturnsCopies(t *testing.T) {
	conf := 0.5
	c := mk("a", 0)
	c.Confidence = &conf
	s := NewSet(c)

	got, ok := s.Get("a")
	require.True(t, ok)
	got.Suggestions[0] = "mutated"
	*got.Confidence = 1

	again, _ := s.Get("a")
	assert.Equal(t, "x", again.Suggestions[0])
	assert.Equal(t, 0.5, *again.Confidence)
}

func TestByOffsetDesc(t *testing.T) {
	sorted := ByOffsetDesc([]Correction{mk("a", 5), mk("b", 20), mk("c", 5), mk("d", 0)})
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(sorted))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("grammar")
	require.NoError(t, err)
	assert.Equal(t, KindGrammar, k)

	_, err = ParseKind("style")
	assert.Error(t, err)
}

func TestAnchorOverlaps(t *testing.T) {
	assert.True(t, Anchor{0, 5}.Overlaps(Anchor{4, 2}))
	assert.False(t, Anchor{0, 5}.Overlaps(Anchor{5, 2}))
	assert.NotEqual(t, NewID(), NewID())
}

func ids(cs []Correction) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
