package observ

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"consteval/internal/diag"
)

func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(2 * time.Millisecond)

	load := tm.Begin("load")
	tm.End(load, "")
	if err := tm.Track("eval", func() error { return errors.New("boom") }); err == nil {
		t.Fatalf("Track must return the error of fn")
	}
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(r.Phases))
	}
	if r.Phases[0].DurationMS != 2 || r.Phases[1].Note != "failed" {
		t.Fatalf("unexpected phases: %+v", r.Phases)
	}
	if r.TotalMS != 4 {
		t.Fatalf("expected total 4ms, got %v", r.TotalMS)
	}

	sum := tm.Summary()
	for _, want := range []string{"load", "eval", "// failed", "total"} {
		if !strings.Contains(sum, want) {
			t.Fatalf("summary misses %q:\n%s", want, sum)
		}
	}
}

func TestTimerEmpty(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("expected empty report, got %+v", r)
	}
}

func TestTimerDiagnostic(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(time.Millisecond)
	tm.End(tm.Begin("eval"), "")

	d, err := tm.Diagnostic("sample.cir")
	if err != nil {
		t.Fatalf("Diagnostic: %v", err)
	}
	if d.Code != diag.ObsTimings || d.Severity != diag.SevInfo {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if !strings.HasSuffix(d.Message, "for sample.cir") {
		t.Fatalf("unexpected message %q", d.Message)
	}
	var payload struct {
		Path   string        `json:"path"`
		Phases []PhaseReport `json:"phases"`
	}
	if err := json.Unmarshal([]byte(d.Notes[0].Msg), &payload); err != nil {
		t.Fatalf("note is not JSON: %v", err)
	}
	if payload.Path != "sample.cir" || len(payload.Phases) != 1 || payload.Phases[0].Name != "eval" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
