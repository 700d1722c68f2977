package interp

import (
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/source"
	"consteval/internal/types"
)

// StackPopCleanup controls what happens when a frame returns.
type StackPopCleanup struct {
	// Root frames have no caller to return to.
	Root bool
	// Cleanup deallocates the frame's locals on pop. Root frames of a
	// constant keep them so referenced temporaries can be interned.
	Cleanup bool
}

// LocalState is the storage of one local.
type LocalState struct {
	Live   bool
	Ptr    Pointer
	Type   types.TypeID
	Layout layout.TypeLayout
}

// Frame is one activation record.
type Frame struct {
	Instance mir.Instance
	Promoted mir.Promoted
	Body     *mir.Body
	Name     string

	ReturnPlace MPlace
	// ReturnBlock is where the caller resumes.
	ReturnBlock mir.BlockID
	Cleanup     StackPopCleanup

	Locals []LocalState
	Block  mir.BlockID
	Stmt   int
}

// Span returns the location of the statement or terminator about to run.
func (f *Frame) Span() source.Span {
	bb := f.Body.Block(f.Block)
	if bb == nil {
		return f.Body.Span
	}
	if f.Stmt < len(bb.Stmts) {
		return bb.Stmts[f.Stmt].Span
	}
	return bb.Term.Span
}

// Info returns the backtrace entry for the frame.
func (f *Frame) Info() FrameInfo {
	return FrameInfo{
		Instance: f.Instance,
		Promoted: f.Promoted,
		Name:     f.Name,
		Span:     f.Span(),
	}
}

func (f *Frame) jump(target mir.BlockID) {
	f.Block = target
	f.Stmt = 0
}
