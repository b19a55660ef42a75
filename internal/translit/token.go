// Package translit suggests phonetic conversions for the word being typed.
//
// The word immediately before the caret is classified; qualifying words are
// sent to the transliteration service (or converted locally when it cannot
// be reached) and the ranked suggestions are offered through a Menu. Picking
// one replaces the word in the editor and never touches corrections.
package translit

import (
	"unicode"

	"gobengali/internal/text"
)

// DefaultLookback bounds how many code points before the caret are scanned
// for the current word.
const DefaultLookback = 50

// Class is the kind of word found under the caret.
type Class int

const (
	ClassNone Class = iota
	// ClassSource is a purely romanized word of two or more letters.
	ClassSource
	// ClassMixed contains romanized letters alongside other characters.
	ClassMixed
	// ClassTarget contains Bengali script; it qualifies from a single code
	// point so a word can be re-selected while deleting.
	ClassTarget
)

func (c Class) String() string {
	switch c {
	case ClassSource:
		return "source"
	case ClassMixed:
		return "mixed"
	case ClassTarget:
		return "target"
	}
	return "none"
}

// Reverse reports whether words of this class are converted back into
// romanized form.
func (c Class) Reverse() bool { return c == ClassTarget }

// Token is the word under the caret. Start and End are code point offsets
// into the buffer; End is the caret.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Class Class  `json:"class"`
}

// Qualifies reports whether the token is worth a lookup.
func (t Token) Qualifies() bool { return t.Class != ClassNone }

// ExtractToken returns the last whitespace separated fragment of the
// lookback window ending at caret. A caret right after whitespace yields an
// empty, non-qualifying token.
func ExtractToken(s string, caret, lookback int) Token {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	caret = min(max(caret, 0), text.Len(s))
	from := max(caret-lookback, 0)
	window := []rune(text.Slice(s, from, caret))

	i := len(window)
	for i > 0 && !unicode.IsSpace(window[i-1]) {
		i--
	}
	word := string(window[i:])
	return Token{
		Text:  word,
		Start: caret - (len(window) - i),
		End:   caret,
		Class: Classify(word),
	}
}

// Classify decides whether word is a transliteration candidate.
func Classify(word string) Class {
	n := text.Len(word)
	latin := 0
	for _, r := range word {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			latin++
		}
	}
	switch {
	case n >= 2 && latin == n:
		return ClassSource
	case n >= 2 && latin > 0:
		return ClassMixed
	case n >= 1 && text.Bengali.Contains(word):
		return ClassTarget
	}
	return ClassNone
}
