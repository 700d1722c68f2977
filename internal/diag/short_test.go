package diag

import (
	"testing"

	"consteval/internal/source"
)

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.Add("consts.cir", []byte("const A\nconst B\n"))

	diags := []Diagnostic{
		NewError(EvalConstFailed, source.Span{File: file, Start: 0, End: 7}, "evaluation of constant value failed\nattempt to divide `1_i32` by zero").
			WithNote(source.Span{File: file, Start: 8, End: 15}, "inside `B`"),
		New(SevWarning, EvalInfo, source.Span{File: file, Start: 8, End: 9}, "warn"),
	}
	want := "error EVAL1001 consts.cir:1:1 evaluation of constant value failed attempt to divide `1_i32` by zero\n" +
		"note EVAL1001 consts.cir:2:1 inside `B`\n" +
		"warning EVAL1000 consts.cir:2:1 warn"
	if got := FormatShort(diags, fs, true); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestReportBuilderDetailIsLazy(t *testing.T) {
	bag := NewBag(0)
	calls := 0
	b := ReportError(&BagReporter{Bag: bag}, EvalUndefined, source.Span{}, "bad").
		WithDetail(func() string { calls++; return "bytes" })
	if calls != 0 {
		t.Fatalf("detail produced before emit")
	}
	b.Emit()
	b.Emit()
	if calls != 1 || bag.Len() != 1 {
		t.Fatalf("expected one emission with detail, got calls=%d len=%d", calls, bag.Len())
	}
	if bag.Items()[0].Detail != "bytes" {
		t.Fatalf("detail not attached: %+v", bag.Items()[0])
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(&BagReporter{Bag: bag})
	d := NewError(EvalConstFailed, source.Span{Start: 1, End: 2}, "x")
	r.Report(d)
	r.Report(d)
	r.Report(d.WithNote(source.Span{}, "different notes are ignored"))
	if bag.Len() != 1 || r.Dropped() != 2 {
		t.Fatalf("expected 1 diagnostic and 2 dropped, got %d and %d", bag.Len(), r.Dropped())
	}
	if len(d.Notes) != 0 {
		t.Fatalf("WithNote must not modify its receiver")
	}
}

func TestSeverityNames(t *testing.T) {
	tests := []struct {
		sev          Severity
		upper, label string
		isErr        bool
	}{
		{SevInfo, "INFO", "info", false},
		{SevWarning, "WARNING", "warning", false},
		{SevError, "ERROR", "error", true},
		{Severity(9), "UNKNOWN", "unknown", true},
	}
	for _, tt := range tests {
		if tt.sev.String() != tt.upper || tt.sev.Label() != tt.label || tt.sev.IsError() != tt.isErr {
			t.Fatalf("severity %d: got %s/%s/%v", tt.sev, tt.sev.String(), tt.sev.Label(), tt.sev.IsError())
		}
	}
}

func TestBagSortAndLimit(t *testing.T) {
	bag := NewBag(2)
	bag.Add(NewError(EvalUndefined, source.Span{Start: 5, End: 6}, "b"))
	bag.Add(NewError(EvalConstFailed, source.Span{Start: 1, End: 2}, "a"))
	if bag.Add(NewError(EvalConstFailed, source.Span{}, "c")) {
		t.Fatalf("bag must refuse items beyond its limit")
	}
	bag.Sort()
	if bag.Items()[0].Message != "a" || !bag.HasErrors() {
		t.Fatalf("unexpected order: %+v", bag.Items())
	}
}
