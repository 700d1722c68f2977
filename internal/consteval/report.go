package consteval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"consteval/internal/diag"
	"consteval/internal/interp"
	"consteval/internal/layout"
	"consteval/internal/query"
	"consteval/internal/source"
)

// ErrorHandled is the failure of an evaluation as seen by its callers. A
// reported failure already produced a diagnostic; a too-generic one did not
// and may succeed once the generic arguments are known.
type ErrorHandled struct {
	TooGeneric bool
	Span       source.Span
	Err        error
}

// Reported reports whether a diagnostic was emitted for the failure.
func (e *ErrorHandled) Reported() bool {
	return !e.TooGeneric
}

func (e *ErrorHandled) Error() string {
	if e.TooGeneric {
		return "constant evaluation is too generic: " + e.Err.Error()
	}
	return "constant evaluation failed: " + e.Err.Error()
}

func (e *ErrorHandled) Unwrap() error {
	return e.Err
}

// report classifies a failed evaluation of gid, emits its diagnostic and
// returns the error cached for the key. root is the allocation of the
// evaluated value when there is one.
func (e *Engine) report(gid GlobalID, err error, root interp.AllocID) *ErrorHandled {
	def := gid.Instance.Def
	defSpan := e.spans.DefSpan(def)

	var handled *ErrorHandled
	if errors.As(err, &handled) {
		// Another evaluation failed and has been dealt with already.
		return &ErrorHandled{TooGeneric: handled.TooGeneric, Span: defSpan, Err: err}
	}

	var ie *interp.InterpError
	if !errors.As(err, &ie) {
		code := interp.CodeTypeMismatch
		if layout.TooGeneric(err) {
			code = interp.CodeTooGeneric
		}
		ie = &interp.InterpError{Code: code, Message: err.Error(), Cause: err}
	}
	if ie.Code == interp.CodeTooGeneric {
		return &ErrorHandled{TooGeneric: true, Span: defSpan, Err: err}
	}
	if ie.Backtrace != nil && e.opts.Backtrace == interp.BacktraceCapture {
		fmt.Fprintf(e.opts.BacktraceOut, "%s\n%s\n", ie.Error(), ie.Backtrace)
	}

	primary := ie.Span
	if !primary.Known() {
		primary = defSpan
	}

	var cycle *query.CycleError
	if errors.As(err, &cycle) {
		b := diag.ReportError(e.opts.Reporter, diag.EvalCycle, primary,
			fmt.Sprintf("cycle detected when evaluating `%s`", e.describe(gid)))
		for _, f := range cycle.Frames {
			b.WithNote(source.NoSpan, "...which requires "+f.String())
		}
		b.Emit()
		return &ErrorHandled{Span: primary, Err: err}
	}

	code, header := e.classify(gid, ie)
	b := diag.ReportError(e.opts.Reporter, code, primary, header+"\n"+ie.Message)
	for _, n := range frameNotes(ie.Frames) {
		b.WithNote(n.Span, n.Msg)
	}
	if ie.Code.IsValidation() && root != interp.NoAlloc {
		b.WithDetail(func() string {
			alloc, ok := e.globals.Get(root)
			if !ok {
				return ""
			}
			return RawBytesNote(alloc)
		})
	}
	b.Emit()
	return &ErrorHandled{Span: primary, Err: ie}
}

// classify picks the diagnostic code and headline for a failure of gid.
func (e *Engine) classify(gid GlobalID, ie *interp.InterpError) (diag.Code, string) {
	if ie.Code.IsValidation() {
		return diag.EvalUndefined, diag.EvalUndefined.Title()
	}
	if ie.Code == interp.CodeReferencedFailed {
		return diag.EvalReferencedError, "evaluation of constant value failed"
	}
	switch {
	case !gid.Promoted.IsSet() && e.defs.IsStatic(gid.Instance.Def):
		return diag.EvalStaticFailed, diag.EvalStaticFailed.Title()
	case len(gid.Instance.Args) > 0:
		return diag.EvalConstFailed, fmt.Sprintf("evaluation of `%s` failed", e.describe(gid))
	default:
		return diag.EvalConstFailed, diag.EvalConstFailed.Title()
	}
}

// frameNotes renders a backtrace, innermost first. Runs of identical frames
// collapse into one note.
func frameNotes(frames []interp.FrameInfo) []diag.Note {
	if len(frames) < 2 {
		return nil
	}
	var notes []diag.Note
	for i := 0; i < len(frames); {
		f := frames[i]
		j := i + 1
		for j < len(frames) && frames[j].Name == f.Name && frames[j].Span == f.Span {
			j++
		}
		notes = append(notes, diag.Note{Span: f.Span, Msg: fmt.Sprintf("inside `%s`", f.Name)})
		if extra := j - i - 1; extra > 0 {
			notes = append(notes, diag.Note{Span: f.Span, Msg: fmt.Sprintf("[... %d additional calls inside `%s` ...]", extra, f.Name)})
		}
		i = j
	}
	return notes
}

const bytesPerLine = 16

// RawBytesNote dumps an allocation: hex bytes with `__` for uninitialized
// ones and boxed allocation names for pointers, followed by a text column.
func RawBytesNote(a *interp.Allocation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "the raw bytes of the constant (size: %d, align: %d) {", a.Size(), a.Align)
	if a.Size() == 0 {
		sb.WriteString("}")
		return sb.String()
	}
	sb.WriteByte('\n')
	hexWidth := bytesPerLine*3 - 1
	withOffset := a.Size() > bytesPerLine
	for off := uint64(0); off < a.Size(); {
		var hexCol, textCol strings.Builder
		start := off
		for off < a.Size() && off-start < bytesPerLine {
			if hexCol.Len() > 0 {
				hexCol.WriteByte(' ')
			}
			if target, ok := a.Prov[off]; ok && a.PtrSize > 0 {
				n := min(a.PtrSize, a.Size()-off)
				hexCol.WriteString(pointerBox(target.String(), int(n)*3-1))
				textCol.WriteString(strings.Repeat("~", int(n)))
				off += n
				continue
			}
			if !a.IsInit(off, 1) {
				hexCol.WriteString("__")
				textCol.WriteString("░")
			} else {
				c := a.Bytes[off]
				fmt.Fprintf(&hexCol, "%02x", c)
				if c >= 0x20 && c < 0x7f {
					textCol.WriteByte(c)
				} else {
					textCol.WriteByte('.')
				}
			}
			off++
		}
		sb.WriteString("    ")
		if withOffset {
			fmt.Fprintf(&sb, "0x%02x │ ", start)
		}
		sb.WriteString(runewidth.FillRight(hexCol.String(), hexWidth))
		sb.WriteString(" │ ")
		sb.WriteString(textCol.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("}")
	return sb.String()
}

// pointerBox renders ╾─allocN─╼ in width columns.
func pointerBox(label string, width int) string {
	inner := width - 2 - runewidth.StringWidth(label)
	if inner < 0 {
		return "╾" + label + "╼"
	}
	left := inner / 2
	return "╾" + strings.Repeat("─", left) + label + strings.Repeat("─", inner-left) + "╼"
}
