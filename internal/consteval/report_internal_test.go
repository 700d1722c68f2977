package consteval

import (
	"encoding/binary"
	"strings"
	"testing"

	"consteval/internal/interp"
	"consteval/internal/mir"
	"consteval/internal/source"
)

func TestFrameNotesCollapseRecursion(t *testing.T) {
	call := source.Span{File: 0, Start: 10, End: 14}
	frames := []interp.FrameInfo{
		{Name: "fact", Span: call},
		{Name: "fact", Span: call},
		{Name: "fact", Span: call},
		{Name: "FACT", Span: source.Span{Start: 0, End: 4}},
	}
	notes := frameNotes(frames)
	want := []string{
		"inside `fact`",
		"[... 2 additional calls inside `fact` ...]",
		"inside `FACT`",
	}
	if len(notes) != len(want) {
		t.Fatalf("expected %d notes, got %+v", len(want), notes)
	}
	for i, n := range notes {
		if n.Msg != want[i] {
			t.Fatalf("note %d: expected %q, got %q", i, want[i], n.Msg)
		}
	}
	if got := frameNotes(frames[3:]); got != nil {
		t.Fatalf("a lone root frame needs no notes, got %+v", got)
	}
}

func TestRawBytesNote(t *testing.T) {
	a := interp.AllocationFromBytes([]byte{0x02}, 1, mir.Not, 8)
	got := RawBytesNote(a)
	if !strings.HasPrefix(got, "the raw bytes of the constant (size: 1, align: 1) {\n    02") {
		t.Fatalf("unexpected dump:\n%s", got)
	}
	if !strings.HasSuffix(got, "│ .\n}") {
		t.Fatalf("unexpected text column:\n%s", got)
	}

	empty := interp.NewAllocation(0, 1, mir.Not, 8)
	if got := RawBytesNote(empty); got != "the raw bytes of the constant (size: 0, align: 1) {}" {
		t.Fatalf("unexpected dump of empty allocation: %q", got)
	}
}

func TestRawBytesNoteMarksUninitAndPointers(t *testing.T) {
	a := interp.NewAllocation(24, 8, mir.Not, 8)
	if err := a.WriteBytes(0, []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ptr := interp.ScalarFromPointer(interp.Pointer{Prov: 7}, 8)
	if err := a.WriteScalar(binary.LittleEndian, 8, ptr); err != nil {
		t.Fatalf("write pointer: %v", err)
	}
	got := RawBytesNote(a)
	for _, want := range []string{"size: 24, align: 8", "0x00 │ 68 69 __", "alloc7", "╾", "╼", "0x10 │ __"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
}
