package view

import (
	"fmt"
	"html"
	"strings"

	"gobengali/internal/correction"
	"gobengali/internal/text"
)

// Markup renders s as HTML with a span around every anchored correction, for
// views that cannot highlight natively. Corrections are applied from the
// highest offset down; ones that overlap an already wrapped span or fall
// outside s are left out.
func Markup(s string, cs []correction.Correction) string {
	n := text.Len(s)
	var parts []string
	end := n
	for _, c := range correction.ByOffsetDesc(cs) {
		a := c.Anchor
		if a.Offset < 0 || a.Length <= 0 || a.End() > end {
			continue
		}
		parts = append(parts,
			html.EscapeString(text.Slice(s, a.End(), end)),
			"</span>",
			html.EscapeString(text.Slice(s, a.Offset, a.End())),
			fmt.Sprintf(`<span class="%s-error" data-error-id="%s">`, c.Kind, html.EscapeString(c.ID)),
		)
		end = a.Offset
	}
	parts = append(parts, html.EscapeString(text.Slice(s, 0, end)))

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
	}
	return b.String()
}
