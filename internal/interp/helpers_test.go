package interp_test

import (
	"errors"
	"testing"

	"consteval/internal/interp"
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/source"
	"consteval/internal/types"
)

type testHost struct {
	prog *mir.Program
}

func (h testHost) EvalToAllocation(mir.Instance, mir.Promoted) (interp.AllocID, error) {
	return interp.NoAlloc, errors.New("nested constants are not available in this test")
}

func (h testHost) EnsureStatic(mir.DefID) error {
	return errors.New("statics are not available in this test")
}

func (h testHost) ResolveBody(inst mir.Instance, _ mir.Promoted) (*mir.Body, error) {
	d, ok := h.prog.Def(inst.Def)
	if !ok || d.Body == nil {
		return nil, errors.New("no body")
	}
	return d.Body, nil
}

type harness struct {
	pb  *mir.ProgramBuilder
	in  *types.Interner
	b   types.Builtins
	sp  source.Span
	cfg interp.Config
}

func newHarness() *harness {
	pb := mir.NewProgramBuilder()
	file := pb.AddFile("test.cir", []byte("const TEST: i32 = 0;\n"))
	return &harness{
		pb:  pb,
		in:  pb.Types(),
		b:   pb.Types().Builtins(),
		sp:  source.Span{File: file, Start: 6, End: 10},
		cfg: interp.Config{StepLimit: 10_000, StackLimit: 32, CheckAlignment: true, Reveal: layout.RevealAll},
	}
}

func (h *harness) machine() *interp.Machine {
	prog := h.pb.Program()
	target := layout.X86_64LinuxGNU()
	return interp.NewMachine(prog, layout.New(target, prog.Types), target, interp.NewGlobals(), testHost{prog: prog}, h.cfg)
}

// run evaluates body as the root frame of a const and returns the machine and its result place.
func (h *harness) run(t *testing.T, def mir.DefID) (*interp.Machine, interp.MPlace, error) {
	t.Helper()
	prog := h.pb.Program()
	if err := mir.Validate(prog); err != nil {
		t.Fatalf("invalid test program: %v", err)
	}
	target := layout.X86_64LinuxGNU()
	m := interp.NewMachine(prog, layout.New(target, prog.Types), target, interp.NewGlobals(), testHost{prog: prog}, h.cfg)
	d, _ := prog.Def(def)
	ty := d.Body.ResultType()
	l, err := m.LayoutOf(ty)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	ret := m.AllocateResult(ty, l, interp.MemStack, mir.Mut, interp.NoAlloc)
	if err := m.PushFrame(mir.Mono(def), mir.NoPromoted, d.Body, ret, interp.StackPopCleanup{Root: true}, mir.NoBlockID); err != nil {
		return m, ret, err
	}
	if err := m.MarkAlwaysLive(); err != nil {
		return m, ret, err
	}
	return m, ret, m.Run()
}

func (h *harness) constDef(name string, body *mir.Body) mir.DefID {
	return h.pb.AddDef(mir.Def{Name: name, Kind: mir.DefConst, Span: h.sp, Type: body.ResultType(), Body: body})
}

func codeOf(t *testing.T, err error) interp.Code {
	t.Helper()
	var ie *interp.InterpError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *interp.InterpError, got %T: %v", err, err)
	}
	return ie.Code
}

func (h *harness) i32(v int32) mir.Operand {
	return mir.ScalarConst(h.b.I32, uint64(uint32(v)))
}

func (h *harness) usize(v uint64) mir.Operand {
	return mir.ScalarConst(h.b.Usize, v)
}
