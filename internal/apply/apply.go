// Package apply implements the offset based splicing behind accepting
// corrections. Functions here are pure: they never touch quota, sets or views.
package apply

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"gobengali/internal/correction"
	"gobengali/internal/text"
)

// Single replaces the anchored range of c in buf with choice.
func Single(buf string, c correction.Correction, choice string) string {
	return text.Splice(buf, c.Anchor.Offset, c.Anchor.Length, choice)
}

// All applies the primary suggestion of every correction, highest offset
// first, so each splice only shifts text after its own anchor and the earlier
// anchors stay valid. Corrections without suggestions are skipped. It returns
// the new buffer and the IDs actually resolved, in application order.
func All(buf string, cs []correction.Correction) (string, []string) {
	resolved := make([]string, 0, len(cs))
	for _, c := range correction.ByOffsetDesc(cs) {
		choice, ok := c.Primary()
		if !ok {
			continue
		}
		buf = Single(buf, c, choice)
		resolved = append(resolved, c.ID)
	}
	return buf, resolved
}

// Reoffset maps the anchors of cs from oldBuf into newBuf using a character
// diff of the two snapshots. Corrections whose mapped range no longer spells
// their original text are returned in dropped.
func Reoffset(oldBuf, newBuf string, cs []correction.Correction) (kept, dropped []correction.Correction) {
	if oldBuf == newBuf {
		return cs, nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes([]rune(oldBuf), []rune(newBuf), false)

	for _, c := range cs {
		start := MapPosition(c.Anchor.Offset, diffs)
		end := start
		if c.Anchor.Length > 0 {
			// Map the last covered code point so text inserted right after
			// the anchor is not swallowed.
			end = MapPosition(c.Anchor.End()-1, diffs) + 1
		}
		if end < start {
			end = start
		}
		moved := c.Clone()
		moved.Anchor = correction.Anchor{Offset: start, Length: end - start}
		if c.OriginalText != "" && text.Slice(newBuf, start, end) != c.OriginalText {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, moved)
	}
	return kept, dropped
}

// MapPosition translates a code point offset in the old text of diffs to the
// corresponding offset in the new text. Positions inside deleted runs map to
// where the deletion happened.
func MapPosition(oldPos int, diffs []diffmatchpatch.Diff) int {
	oldAt, newAt := 0, 0
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			if oldPos >= oldAt && oldPos < oldAt+n {
				return newAt
			}
			oldAt += n
		case diffmatchpatch.DiffInsert:
			newAt += n
		case diffmatchpatch.DiffEqual:
			if oldPos >= oldAt && oldPos < oldAt+n {
				return newAt + (oldPos - oldAt)
			}
			oldAt += n
			newAt += n
		}
	}
	return newAt
}
