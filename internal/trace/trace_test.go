package trace_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"consteval/internal/trace"
)

func TestRingTracerFiltersByLevel(t *testing.T) {
	ring := trace.NewRingTracer(8, trace.LevelPhase)
	q := trace.Begin(ring, trace.ScopeQuery, "query:FOO", 0)
	e := trace.Begin(ring, trace.ScopeEval, "eval", q.ID())
	e.End("")
	q.WithExtra("result", "ok").End("")

	events := ring.Snapshot()
	if len(events) != 2 {
		t.Fatalf("expected begin/end of the query only, got %d events", len(events))
	}
	if events[1].Kind != trace.KindSpanEnd || events[1].Extra["result"] != "ok" {
		t.Fatalf("unexpected end event: %+v", events[1])
	}
}

func TestRingTracerWraps(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDebug)
	for range 5 {
		trace.Point(ring, trace.ScopeStep, "step", "", 0)
	}
	if got := len(ring.Snapshot()); got != 3 {
		t.Fatalf("snapshot len = %d, want 3", got)
	}
	last := ring.Last(2)
	if len(last) != 2 || last[0].Seq >= last[1].Seq {
		t.Fatalf("Last must return the newest events oldest first: %+v", last)
	}
	if got := len(ring.Last(-1)); got != 0 {
		t.Fatalf("Last(-1) = %d events", got)
	}
	var buf bytes.Buffer
	if err := ring.Dump(&buf, trace.FormatNDJSON, 2); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("Dump wrote %d lines:\n%s", lines, buf.String())
	}
}

func TestStartSpanPropagatesLane(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	ctx, batch := trace.StartSpan(ctx, nil, trace.ScopeDriver, "eval_all")
	item := trace.WithLane(ctx, 3)
	qctx, q := trace.StartSpan(item, nil, trace.ScopeQuery, "query:FOO")
	if sc := trace.CurrentSpan(qctx); sc.SpanID != q.ID() || sc.Lane != 3 {
		t.Fatalf("unexpected span context %+v", sc)
	}
	// Step scope is filtered at detail level: the context stays unchanged.
	sctx, step := trace.StartSpan(qctx, nil, trace.ScopeStep, "step")
	if step.ID() != 0 || trace.CurrentSpan(sctx) != trace.CurrentSpan(qctx) {
		t.Fatalf("filtered spans must be inert")
	}
	q.End("")
	batch.End("")

	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[1].ParentID != batch.ID() || events[1].Lane != 3 || events[0].Lane != 0 {
		t.Fatalf("query span misses its parent or lane: %+v", events[1])
	}
}

func TestHeartbeatReportsStatus(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelPhase)
	hb := trace.StartHeartbeat(ring, time.Millisecond, func() string { return "evaluated=2" })
	deadline := time.Now().Add(2 * time.Second)
	for len(ring.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	hb.Stop()
	hb.Stop()
	events := ring.Snapshot()
	if len(events) == 0 {
		t.Fatalf("no heartbeat within the deadline")
	}
	if ev := events[0]; ev.Kind != trace.KindHeartbeat || ev.Detail != "#1 evaluated=2" {
		t.Fatalf("unexpected heartbeat %+v", ev)
	}
	if trace.StartHeartbeat(trace.Nop, time.Millisecond, nil) != nil {
		t.Fatalf("disabled tracers get no heartbeat")
	}
}

func TestNewFindsRing(t *testing.T) {
	tr, err := trace.New(trace.Config{Level: trace.LevelPhase, Mode: trace.ModeBoth, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if trace.Ring(tr) == nil {
		t.Fatalf("both mode must keep a ring")
	}
	if off, _ := trace.New(trace.Config{Level: trace.LevelOff}); off != trace.Nop || trace.Ring(off) != nil {
		t.Fatalf("off level must yield Nop")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	st := trace.NewStreamTracer(&buf, trace.LevelDetail, trace.FormatText)
	sp := trace.Begin(st, trace.ScopeEval, "intern", 0)
	sp.WithExtra("b", "2").WithExtra("a", "1").End("done")
	trace.Point(st, trace.ScopeStep, "step", "bb0[0]", 0)
	if buf.Len() != 0 {
		t.Fatalf("output to a buffer must wait for Flush")
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "intern (done) {a=1, b=2}") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "bb0[0]") {
		t.Fatalf("step events must be filtered at detail level:\n%s", out)
	}
}

func TestContextCarriesTracer(t *testing.T) {
	if trace.FromContext(context.Background()) != trace.Nop {
		t.Fatal("expected Nop tracer by default")
	}
	ring := trace.NewRingTracer(4, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	if trace.FromContext(ctx) != trace.Tracer(ring) {
		t.Fatal("tracer not propagated")
	}
}

func TestParseHelpers(t *testing.T) {
	if l, err := trace.ParseLevel(" Detail"); err != nil || l != trace.LevelDetail {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
	if f, err := trace.ParseFormat("ndjson"); err != nil || f != trace.FormatNDJSON {
		t.Fatalf("ParseFormat = %v, %v", f, err)
	}
	if _, err := trace.ParseMode("tape"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
