package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"consteval/internal/diag"
	"consteval/internal/source"
)

type palette struct {
	err, warn, info, note, bold, gutter, caret *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		note:   color.New(color.FgGreen, color.Bold),
		bold:   color.New(color.Bold),
		gutter: color.New(color.FgBlue, color.Bold),
		caret:  color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.bold, p.gutter, p.caret} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty renders diagnostics for a terminal:
//
//	error[EVAL1001]: evaluation of constant value failed
//	 --> consts.cir:3:9
//	  |
//	3 | const Q: i32 = 1 / 0;
//	  |                ^^^^^ attempt to divide `1_i32` by zero
//	  = note: inside `Q`
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		prettyOne(w, d, fs, opts, p)
	}
}

func prettyOne(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette) {
	sev := d.Severity.Label()
	head, rest, _ := strings.Cut(d.Message, "\n")
	fmt.Fprintf(w, "%s%s\n", p.severity(d.Severity).Sprintf("%s[%s]", sev, d.Code.ID()), p.bold.Sprint(": "+head))

	if f, start, end, ok := resolve(fs, d.Primary); ok {
		line := f.GetLine(start.Line)
		num := fmt.Sprint(start.Line)
		pad := strings.Repeat(" ", len(num))
		fmt.Fprintf(w, "%s%s %s:%d:%d\n", pad, p.gutter.Sprint("-->"), formatPath(f, opts.PathMode), start.Line, start.Col)
		fmt.Fprintf(w, "%s %s\n", pad, p.gutter.Sprint("|"))
		fmt.Fprintf(w, "%s %s %s\n", p.gutter.Sprint(num), p.gutter.Sprint("|"), line)
		fmt.Fprintf(w, "%s %s %s%s", pad, p.gutter.Sprint("|"), strings.Repeat(" ", prefixWidth(line, start.Col)), p.caret.Sprint(carets(line, start, end)))
		if rest != "" {
			fmt.Fprintf(w, " %s", p.caret.Sprint(firstLine(rest)))
			_, rest, _ = strings.Cut(rest, "\n")
		}
		fmt.Fprintln(w)
	}
	for _, extra := range strings.Split(rest, "\n") {
		if extra != "" {
			fmt.Fprintf(w, "  %s\n", extra)
		}
	}

	if opts.ShowNotes {
		for _, n := range d.Notes {
			where := ""
			if f, start, _, ok := resolve(fs, n.Span); ok {
				where = fmt.Sprintf(" at %s:%d:%d", formatPath(f, opts.PathMode), start.Line, start.Col)
			}
			fmt.Fprintf(w, "  %s %s%s\n", p.note.Sprint("= note:"), n.Msg, where)
		}
	}
	if opts.ShowDetail && d.Detail != "" {
		for _, l := range strings.Split(strings.TrimRight(d.Detail, "\n"), "\n") {
			fmt.Fprintf(w, "  %s %s\n", p.gutter.Sprint("|"), l)
		}
	}
}

func resolve(fs *source.FileSet, sp source.Span) (*source.File, source.LineCol, source.LineCol, bool) {
	if fs == nil || (sp.Start == 0 && sp.End == 0) {
		return nil, source.LineCol{}, source.LineCol{}, false
	}
	f := fs.Get(sp.File)
	if f == nil {
		return nil, source.LineCol{}, source.LineCol{}, false
	}
	start, end := fs.Resolve(sp)
	return f, start, end, true
}

// prefixWidth is the display width of the text before byte column col.
func prefixWidth(line string, col uint32) int {
	n := min(int(col)-1, len(line))
	if n <= 0 {
		return 0
	}
	return runewidth.StringWidth(line[:n])
}

func carets(line string, start, end source.LineCol) string {
	from := min(int(start.Col)-1, len(line))
	to := len(line)
	if end.Line == start.Line {
		to = min(int(end.Col)-1, len(line))
	}
	width := 1
	if from >= 0 && to > from {
		width = max(runewidth.StringWidth(line[from:to]), 1)
	}
	return strings.Repeat("^", width)
}

func firstLine(s string) string {
	head, _, _ := strings.Cut(s, "\n")
	return head
}
