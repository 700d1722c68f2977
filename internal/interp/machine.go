package interp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"fortio.org/safecast"

	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/trace"
	"consteval/internal/types"
)

// Config holds the policy knobs of one machine.
type Config struct {
	// StepLimit bounds executed statements and terminators; 0 means unlimited.
	StepLimit uint64
	// StackLimit bounds the call depth; 0 means unlimited.
	StackLimit int
	// CheckAlignment rejects misaligned memory accesses.
	CheckAlignment bool
	// CanAccessMutGlobal allows reading interned mutable memory (statics only).
	CanAccessMutGlobal bool
	Backtrace          BacktraceMode
	// BacktraceOut receives immediate backtraces; defaults to stderr.
	BacktraceOut io.Writer
	Tracer       trace.Tracer
	// TraceParent is the span id step events are attached to.
	TraceParent uint64
	Reveal      layout.Reveal
}

// Machine is the abstract machine for one evaluation. It is not safe for
// concurrent use; concurrent evaluations use separate machines that share
// Globals.
type Machine struct {
	cfg     Config
	Program *mir.Program
	Types   *types.Interner
	Layouts LayoutOracle
	Target  layout.Target
	Mem     *Memory
	host    Host

	stack []*Frame
	steps uint64
	// maxDepth records the deepest stack seen.
	maxDepth int
}

// NewMachine creates a machine with an empty stack.
func NewMachine(prog *mir.Program, layouts LayoutOracle, target layout.Target, globals *Globals, host Host, cfg Config) *Machine {
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
	if cfg.BacktraceOut == nil {
		cfg.BacktraceOut = os.Stderr
	}
	mem := NewMemory(target, globals, host)
	mem.CheckAlignment = cfg.CheckAlignment
	mem.CanAccessMutGlobal = cfg.CanAccessMutGlobal
	return &Machine{
		cfg:     cfg,
		Program: prog,
		Types:   prog.Types,
		Layouts: layouts,
		Target:  target,
		Mem:     mem,
		host:    host,
	}
}

// Config returns the machine policy.
func (m *Machine) Config() Config {
	return m.cfg
}

// Steps reports how many statements and terminators have run.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// MaxDepth reports the deepest call stack seen.
func (m *Machine) MaxDepth() int {
	return m.maxDepth
}

// PtrSize is the target pointer width in bytes.
func (m *Machine) PtrSize() int {
	return m.Target.PtrSize
}

// LayoutOf computes a layout under the machine's reveal mode.
func (m *Machine) LayoutOf(ty types.TypeID) (layout.TypeLayout, error) {
	l, err := m.Layouts.LayoutOf(ty, m.cfg.Reveal)
	if err != nil {
		if layout.TooGeneric(err) {
			return l, &InterpError{Code: CodeTooGeneric, Message: fmt.Sprintf("the type `%s` has an unknown layout: %v", m.Types.Name(ty), err)}
		}
		return l, &InterpError{Code: CodeLayout, Message: fmt.Sprintf("unable to compute the layout of `%s`: %v", m.Types.Name(ty), err)}
	}
	return l, nil
}

// monoType substitutes the frame's generic arguments into ty.
func (m *Machine) monoType(f *Frame, ty types.TypeID) types.TypeID {
	if f == nil || len(f.Instance.Args) == 0 {
		return ty
	}
	return m.Types.Subst(ty, f.Instance.Args)
}

func (m *Machine) monoInstance(f *Frame, inst mir.Instance) mir.Instance {
	if f == nil || len(f.Instance.Args) == 0 || len(inst.Args) == 0 {
		return inst
	}
	args := make([]types.TypeID, len(inst.Args))
	for i, a := range inst.Args {
		args[i] = m.Types.Subst(a, f.Instance.Args)
	}
	return mir.Instance{Def: inst.Def, Args: args}
}

func (m *Machine) top() *Frame {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// Depth returns the number of active frames.
func (m *Machine) Depth() int {
	return len(m.stack)
}

// Frames returns the backtrace, innermost first.
func (m *Machine) Frames() []FrameInfo {
	out := make([]FrameInfo, 0, len(m.stack))
	for i := len(m.stack) - 1; i >= 0; i-- {
		out = append(out, m.stack[i].Info())
	}
	return out
}

// AllocateResult creates the destination of an evaluation. Zero-sized results
// get a dangling place and no allocation.
func (m *Machine) AllocateResult(ty types.TypeID, l layout.TypeLayout, kind MemoryKind, mut mir.Mutability, reserved AllocID) MPlace {
	mp := MPlace{Type: ty, Layout: l}
	if l.IsZST() && kind != MemStatic {
		mp.Ptr = danglingFor(l.Align)
		return mp
	}
	size, align := uint64(l.Size), uint64(l.Align)
	if reserved != NoAlloc {
		mp.Ptr = m.Mem.AllocateWithID(reserved, size, align, kind, mut)
	} else {
		mp.Ptr = m.Mem.Allocate(size, align, kind, mut)
	}
	return mp
}

// PushFrame starts executing body with ret as its return place.
func (m *Machine) PushFrame(inst mir.Instance, promoted mir.Promoted, body *mir.Body, ret MPlace, cleanup StackPopCleanup, returnBlock mir.BlockID) error {
	if m.cfg.StackLimit > 0 && len(m.stack) >= m.cfg.StackLimit {
		return errorf(CodeStackOverflow, "reached the configured maximum number of stack frames (%d)", m.cfg.StackLimit)
	}
	f := &Frame{
		Instance:    inst,
		Promoted:    promoted,
		Body:        body,
		Name:        m.Program.InstanceString(inst),
		ReturnPlace: ret,
		ReturnBlock: returnBlock,
		Cleanup:     cleanup,
		Locals:      make([]LocalState, len(body.Locals)),
	}
	if promoted.IsSet() {
		f.Name += "::" + promoted.String()
	}
	for i, local := range body.Locals {
		f.Locals[i].Type = m.monoType(f, local.Type)
	}
	f.Locals[mir.ReturnLocal] = LocalState{Live: true, Ptr: ret.Ptr, Type: ret.Type, Layout: ret.Layout}
	m.stack = append(m.stack, f)
	m.maxDepth = max(m.maxDepth, len(m.stack))
	trace.Point(m.cfg.Tracer, trace.ScopeStep, "push", f.Name, m.cfg.TraceParent)
	return nil
}

// MarkAlwaysLive gives storage to every local of the top frame that has no
// StorageLive/StorageDead statements.
func (m *Machine) MarkAlwaysLive() error {
	f := m.top()
	if f == nil {
		Bugf("MarkAlwaysLive with an empty stack")
	}
	for i, live := range mir.AlwaysLiveLocals(f.Body) {
		if !live || mir.LocalID(i) == mir.ReturnLocal {
			continue
		}
		if err := m.storageLive(f, mir.LocalID(i)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) storageLive(f *Frame, l mir.LocalID) error {
	if l == mir.ReturnLocal {
		return nil
	}
	st := &f.Locals[l]
	if st.Live {
		if err := m.freeLocal(st); err != nil {
			return err
		}
	}
	lay, err := m.LayoutOf(st.Type)
	if err != nil {
		return err
	}
	if !lay.Sized {
		Bugf("unsized local L%d of type %s", l, m.Types.Name(st.Type))
	}
	st.Layout = lay
	if lay.IsZST() {
		st.Ptr = danglingFor(lay.Align)
	} else {
		size, err := safecast.Conv[uint64](lay.Size)
		if err != nil {
			return errorf(CodeLayout, "local L%d: %v", l, err)
		}
		st.Ptr = m.Mem.Allocate(size, uint64(lay.Align), MemStack, mir.Mut)
	}
	st.Live = true
	return nil
}

func (m *Machine) storageDead(f *Frame, l mir.LocalID) error {
	if l == mir.ReturnLocal {
		Bugf("StorageDead on the return place")
	}
	st := &f.Locals[l]
	if !st.Live {
		return nil
	}
	if err := m.freeLocal(st); err != nil {
		return err
	}
	st.Live = false
	return nil
}

func (m *Machine) freeLocal(st *LocalState) error {
	if !st.Ptr.HasProv() {
		return nil
	}
	return m.Mem.Deallocate(st.Ptr)
}

// popFrame returns from the top frame.
func (m *Machine) popFrame() error {
	f := m.top()
	m.stack = m.stack[:len(m.stack)-1]
	trace.Point(m.cfg.Tracer, trace.ScopeStep, "pop", f.Name, m.cfg.TraceParent)
	if f.Cleanup.Cleanup {
		for i := 1; i < len(f.Locals); i++ {
			if f.Locals[i].Live {
				if err := m.freeLocal(&f.Locals[i]); err != nil {
					return err
				}
				f.Locals[i].Live = false
			}
		}
	}
	if f.Cleanup.Root {
		return nil
	}
	caller := m.top()
	if caller == nil {
		Bugf("non-root frame %s returned to an empty stack", f.Name)
	}
	caller.jump(f.ReturnBlock)
	return nil
}

// Run steps until the stack is empty.
func (m *Machine) Run() error {
	for {
		ok, err := m.Step()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// decorate attaches location, frames and a Go backtrace to an error raised
// while the stack is still intact.
func (m *Machine) decorate(err error) error {
	var ie *InterpError
	if !errors.As(err, &ie) {
		return err
	}
	if ie.Frames == nil {
		ie.Frames = m.Frames()
		if len(ie.Frames) > 0 {
			ie.Span = ie.Frames[0].Span
		}
	}
	if ie.Backtrace == nil && m.cfg.Backtrace != BacktraceOff {
		ie.Backtrace = debug.Stack()
		if m.cfg.Backtrace == BacktraceImmediate {
			fmt.Fprintf(m.cfg.BacktraceOut, "%s\n%s\n", ie.Error(), ie.Backtrace)
		}
	}
	return ie
}
