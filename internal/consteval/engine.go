package consteval

import (
	"context"
	"fmt"
	"io"
	"os"

	"consteval/internal/diag"
	"consteval/internal/interp"
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/query"
	"consteval/internal/trace"
	"consteval/internal/types"
)

// Options configures an Engine. New fills in a zero Target, BacktraceOut or
// Reporter; a zero StepLimit or StackLimit means no limit. Start from
// DefaultOptions for the CLI defaults.
type Options struct {
	Target     layout.Target
	StepLimit  uint64
	StackLimit int
	// CheckAlignment rejects misaligned accesses while a body runs.
	CheckAlignment  bool
	Backtrace       interp.BacktraceMode
	BacktraceOut    io.Writer
	ValidationOrder interp.ValidationOrder

	// Tracer overrides the tracer found in the request context.
	Tracer   trace.Tracer
	Reporter diag.Reporter

	Bodies BodySource
	Defs   DefInfo
	Spans  SpanResolver

	// Disk persists portable values. DiskPrefix must identify the program.
	Disk       *query.DiskCache
	DiskPrefix string
}

// DefaultOptions returns the options used by the CLI without a config file.
func DefaultOptions() Options {
	return Options{
		Target:          layout.X86_64LinuxGNU(),
		StepLimit:       1_000_000,
		StackLimit:      128,
		CheckAlignment:  true,
		ValidationOrder: interp.DepthFirst,
	}
}

// ConstAlloc is an evaluated constant left in interned memory. Alloc is
// NoAlloc for zero-sized results of constants.
type ConstAlloc struct {
	Alloc interp.AllocID
	Type  types.TypeID
}

// Engine evaluates the constants of one program. It is safe for concurrent
// use.
type Engine struct {
	prog    *mir.Program
	types   *types.Interner
	layouts *layout.LayoutEngine
	globals *interp.Globals
	opts    Options

	bodies BodySource
	defs   DefInfo
	spans  SpanResolver

	allocs *query.Cache[cacheKey, ConstAlloc]
	values *query.Cache[cacheKey, interp.ConstValue]
}

// New creates an engine for prog.
func New(prog *mir.Program, opts Options) (*Engine, error) {
	if prog == nil || prog.Types == nil {
		return nil, fmt.Errorf("consteval: nil program")
	}
	if opts.Target.PtrSize == 0 {
		opts.Target = layout.X86_64LinuxGNU()
	}
	if err := opts.Target.Validate(); err != nil {
		return nil, fmt.Errorf("consteval: %w", err)
	}
	if opts.BacktraceOut == nil {
		opts.BacktraceOut = os.Stderr
	}
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	src := ProgramSource{Program: prog}
	e := &Engine{
		prog:    prog,
		types:   prog.Types,
		layouts: layout.New(opts.Target, prog.Types),
		globals: interp.NewGlobals(),
		opts:    opts,
		bodies:  opts.Bodies,
		defs:    opts.Defs,
		spans:   opts.Spans,
	}
	if e.bodies == nil {
		e.bodies = src
	}
	if e.defs == nil {
		e.defs = src
	}
	if e.spans == nil {
		e.spans = src
	}
	g := query.NewGraph()
	e.allocs = query.NewCache[cacheKey, ConstAlloc]("eval_to_allocation", g)
	e.values = query.NewCache[cacheKey, interp.ConstValue]("eval_to_value", g)
	return e, nil
}

// Program returns the program being evaluated.
func (e *Engine) Program() *mir.Program {
	return e.prog
}

// Globals returns the interned memory shared by all evaluations.
func (e *Engine) Globals() *interp.Globals {
	return e.globals
}

// Layouts returns the layout engine.
func (e *Engine) Layouts() *layout.LayoutEngine {
	return e.layouts
}

// Stats summarizes cache activity.
type Stats struct {
	Allocations query.Stats
	Values      query.Stats
	Interned    int
}

func (e *Engine) Stats() Stats {
	return Stats{
		Allocations: e.allocs.Stats(),
		Values:      e.values.Stats(),
		Interned:    e.globals.Len(),
	}
}

func (e *Engine) tracer(ctx context.Context) trace.Tracer {
	if e.opts.Tracer != nil {
		return e.opts.Tracer
	}
	return trace.FromContext(ctx)
}

// machineMode selects per-evaluation machine policy.
type machineMode struct {
	// canAccessMutGlobal is only set for the body of a static.
	canAccessMutGlobal bool
	checkAlignment     bool
}

func (e *Engine) newMachine(ctx context.Context, mode machineMode) *interp.Machine {
	cfg := interp.Config{
		StepLimit:          e.opts.StepLimit,
		StackLimit:         e.opts.StackLimit,
		CheckAlignment:     mode.checkAlignment,
		CanAccessMutGlobal: mode.canAccessMutGlobal,
		Backtrace:          e.opts.Backtrace,
		BacktraceOut:       e.opts.BacktraceOut,
		Tracer:             e.tracer(ctx),
		TraceParent:        trace.CurrentSpan(ctx).SpanID,
		Reveal:             layout.RevealAll,
	}
	return interp.NewMachine(e.prog, e.layouts, e.opts.Target, e.globals, &evalHost{e: e, ctx: ctx}, cfg)
}

// evalHost is the machine's way back into the engine. It carries the
// request context so nested evaluations extend the caller's query chain.
type evalHost struct {
	e   *Engine
	ctx context.Context
}

func (h *evalHost) EvalToAllocation(inst mir.Instance, promoted mir.Promoted) (interp.AllocID, error) {
	gid := GlobalID{Instance: inst, Promoted: promoted}
	var (
		ca  ConstAlloc
		err error
	)
	if !promoted.IsSet() && h.e.defs.IsStatic(inst.Def) {
		ca, err = h.e.EvalStaticInitializer(h.ctx, inst.Def)
	} else {
		ca, err = h.e.evalToAllocation(h.ctx, For(gid))
	}
	return ca.Alloc, err
}

func (h *evalHost) EnsureStatic(def mir.DefID) error {
	_, err := h.e.EvalStaticInitializer(h.ctx, def)
	return err
}

func (h *evalHost) ResolveBody(inst mir.Instance, promoted mir.Promoted) (*mir.Body, error) {
	return h.e.bodies.ResolveBody(inst, promoted)
}
