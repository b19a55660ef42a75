// Package correction defines correction records produced by an analysis pass
// and the insertion-ordered set that holds the pending ones.
package correction

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies a detected issue.
type Kind string

const (
	KindSpelling    Kind = "spelling"
	KindGrammar     Kind = "grammar"
	KindTranslation Kind = "translation"
)

// ParseKind validates a kind received from the analysis service.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSpelling, KindGrammar, KindTranslation:
		return k, nil
	}
	return "", fmt.Errorf("unknown correction kind %q", s)
}

// Anchor locates a correction in the buffer snapshot it was computed against.
// Offset and Length count code points.
type Anchor struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// End returns the exclusive end offset.
func (a Anchor) End() int { return a.Offset + a.Length }

// Overlaps reports whether a and b share at least one code point.
func (a Anchor) Overlaps(b Anchor) bool {
	return a.Offset < b.End() && b.Offset < a.End()
}

// Correction is one detected issue plus its suggested replacements.
type Correction struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	Anchor       Anchor   `json:"anchor"`
	OriginalText string   `json:"original_text"`
	Suggestions  []string `json:"suggestions"`
	Message      string   `json:"message,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// Primary returns the first suggestion, if any.
func (c Correction) Primary() (string, bool) {
	if len(c.Suggestions) == 0 {
		return "", false
	}
	return c.Suggestions[0], true
}

// Clone returns a deep copy.
func (c Correction) Clone() Correction {
	out := c
	out.Suggestions = append([]string(nil), c.Suggestions...)
	if c.Confidence != nil {
		v := *c.Confidence
		out.Confidence = &v
	}
	return out
}

// NewID returns a fresh, never reused identity.
func NewID() string {
	return uuid.New().String()
}
