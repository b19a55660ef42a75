// Package text holds the plain-text buffer model: code point offsets,
// splicing, statistics and script detection.
//
// Offsets everywhere in gobengali count Unicode code points, which is how the
// analysis service addresses its corrections.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Stats are the derived counts of a buffer snapshot.
type Stats struct {
	Words int `json:"words"`
	Chars int `json:"chars"`
}

// Measure computes Stats for s. Words are whitespace separated fields; chars
// are code points.
func Measure(s string) Stats {
	return Stats{Words: CountWords(s), Chars: CountChars(s)}
}

// CountWords returns the number of whitespace separated words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// CountChars returns the number of code points in s.
func CountChars(s string) int {
	return utf8.RuneCountInString(s)
}

// Len is an alias for CountChars used where s is treated as an offset space.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Slice returns the code points [from, to) of s, clamped to the buffer.
func Slice(s string, from, to int) string {
	start, end := byteRange(s, from, to)
	return s[start:end]
}

// Splice replaces length code points at offset with repl. The range
// [offset, offset+length) is clamped to the buffer as a whole, so a range
// lying entirely before the start becomes an insertion at 0.
func Splice(s string, offset, length int, repl string) string {
	if length < 0 {
		length = 0
	}
	start, end := byteRange(s, offset, offset+length)
	var b strings.Builder
	b.Grow(start + len(repl) + len(s) - end)
	b.WriteString(s[:start])
	b.WriteString(repl)
	b.WriteString(s[end:])
	return b.String()
}

// byteRange converts a code point range into byte indexes of s.
func byteRange(s string, from, to int) (int, int) {
	if from < 0 {
		from = 0
	}
	if to < from {
		to = from
	}
	start, end := len(s), len(s)
	i := 0
	for bi := range s {
		if i == from {
			start = bi
		}
		if i == to {
			end = bi
			break
		}
		i++
	}
	if start > end {
		start = end
	}
	return start, end
}

// Script identifies the writing system the analysis pipeline targets.
type Script struct {
	Name  string
	Table *unicode.RangeTable
}

// Known scripts, matching the service's supported targets.
var (
	Bengali    = Script{Name: "bengali", Table: unicode.Bengali}
	Devanagari = Script{Name: "devanagari", Table: unicode.Devanagari}
	Arabic     = Script{Name: "arabic", Table: unicode.Arabic}
	Latin      = Script{Name: "latin", Table: unicode.Latin}
)

// LookupScript returns the script registered under name.
func LookupScript(name string) (Script, bool) {
	switch strings.ToLower(name) {
	case "bengali", "bangla", "bn":
		return Bengali, true
	case "devanagari", "hindi", "hi":
		return Devanagari, true
	case "arabic", "ar":
		return Arabic, true
	case "latin", "en":
		return Latin, true
	}
	return Script{}, false
}

// Contains reports whether s has at least one code point of the script.
func (sc Script) Contains(s string) bool {
	for _, r := range s {
		if unicode.Is(sc.Table, r) {
			return true
		}
	}
	return false
}

// Is reports whether r belongs to the script.
func (sc Script) Is(r rune) bool {
	return unicode.Is(sc.Table, r)
}

// DetectLanguage guesses a language code from the scripts present in s,
// falling back to "en".
func DetectLanguage(s string) string {
	switch {
	case Bengali.Contains(s):
		return "bn"
	case Devanagari.Contains(s):
		return "hi"
	case Arabic.Contains(s):
		return "ar"
	}
	return "en"
}
