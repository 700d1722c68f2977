package diag

import (
	"fmt"
	"strings"

	"consteval/internal/source"
)

// FormatShort renders one line per diagnostic (and per note when
// includeNotes is set): `severity CODE path:line:col message`.
func FormatShort(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	var b strings.Builder
	line := func(sev, code string, sp source.Span, msg string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s %s", sev, code, fs.Position(sp), sanitizeMessage(msg))
	}
	for _, d := range diags {
		line(d.Severity.Label(), d.Code.ID(), d.Primary, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			line("note", d.Code.ID(), n.Span, n.Msg)
		}
	}
	return b.String()
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
