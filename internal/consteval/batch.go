package consteval

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"consteval/internal/interp"
	"consteval/internal/mir"
	"consteval/internal/trace"
)

// Result is the outcome of evaluating one item in a batch.
type Result struct {
	Def  mir.DefID
	Name string
	Kind mir.DefKind
	// Value is set for constants; statics only have Alloc.
	Value    interp.ConstValue
	Alloc    ConstAlloc
	Err      error
	Duration time.Duration
}

// EventKind tags batch progress events.
type EventKind uint8

const (
	EventStarted EventKind = iota
	EventFinished
)

// Event reports batch progress. Index is the position of the item in the
// requested list.
type Event struct {
	Kind   EventKind
	Index  int
	Total  int
	Name   string
	Failed bool
}

// Items lists the definitions a whole-program evaluation covers: every
// non-generic constant and static.
func (e *Engine) Items() []mir.DefID {
	var out []mir.DefID
	for i := range e.prog.Defs {
		d := &e.prog.Defs[i]
		if d.Kind.IsConstLike() && len(d.Generics) == 0 && d.Body != nil {
			out = append(out, d.ID)
		}
	}
	return out
}

// EvalAll evaluates defs with up to jobs concurrent evaluations. Failures of
// single items are recorded in their Result; the returned error is only
// set when ctx is cancelled. events, when non-nil, receives progress and
// is not closed.
func (e *Engine) EvalAll(ctx context.Context, defs []mir.DefID, jobs int, events chan<- Event) ([]Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(defs))
	if len(defs) == 0 {
		return results, nil
	}

	ctx, span := trace.StartSpan(ctx, e.tracer(ctx), trace.ScopeDriver, "eval_all")
	span.WithExtra("items", strconv.Itoa(len(defs)))
	defer span.End("")

	send := func(gctx context.Context, ev Event) {
		if events == nil {
			return
		}
		select {
		case events <- ev:
		case <-gctx.Done():
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(defs)))
	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := e.spans.DefPath(def)
			send(gctx, Event{Kind: EventStarted, Index: i, Total: len(defs), Name: name})
			start := time.Now()
			res := e.evalItem(trace.WithLane(gctx, uint64(i)+1), def)
			res.Name = name
			res.Duration = time.Since(start)
			results[i] = res
			send(gctx, Event{Kind: EventFinished, Index: i, Total: len(defs), Name: name, Failed: res.Err != nil})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) evalItem(ctx context.Context, def mir.DefID) Result {
	res := Result{Def: def, Kind: e.defs.DefKind(def)}
	if e.defs.IsStatic(def) {
		res.Alloc, res.Err = e.EvalStaticInitializer(ctx, def)
		return res
	}
	key := For(Item(mir.Mono(def)))
	res.Value, res.Err = e.EvalToValue(ctx, key)
	if res.Err == nil {
		if ca, err := e.evalToAllocation(ctx, key); err == nil {
			res.Alloc = ca
		}
	}
	return res
}

// RenderResult prints the value of a successful batch result. Statics are
// read from their interned allocation.
func (e *Engine) RenderResult(r Result) string {
	if r.Err != nil {
		return ""
	}
	if r.Kind == mir.DefStatic {
		return e.Render(interp.IndirectValue(r.Alloc.Alloc, 0), r.Alloc.Type)
	}
	d, ok := e.prog.Def(r.Def)
	if !ok {
		return r.Value.String()
	}
	return e.Render(r.Value, d.Type)
}
