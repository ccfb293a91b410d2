package assemble

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragdir/core"
)

// FormatSpan renders a span as "chars 10-200" or "page 2, chars 10-200".
func FormatSpan(span core.Span) string {
	if span.Page > 0 {
		return fmt.Sprintf("page %d, chars %d-%d", span.Page, span.Start, span.End)
	}
	return fmt.Sprintf("chars %d-%d", span.Start, span.End)
}

// FormatSources renders a "Sources:" listing with one line per citation.
// It returns an empty string when there are no citations.
func FormatSources(citations []core.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Sources:")
	for _, c := range citations {
		spans := make([]string, len(c.Spans))
		for i, s := range c.Spans {
			spans[i] = FormatSpan(s)
		}
		b.WriteString("\n- ")
		b.WriteString(c.Path)
		if len(spans) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(spans, "; "))
			b.WriteString(")")
		}
	}
	return b.String()
}
