package mir

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"consteval/internal/source"
	"consteval/internal/types"
)

// ProgramBuilder assembles a Program the way a front-end would.
type ProgramBuilder struct {
	prog *Program
}

func NewProgramBuilder() *ProgramBuilder {
	return &ProgramBuilder{prog: &Program{Types: types.NewInterner()}}
}

func (pb *ProgramBuilder) Types() *types.Interner {
	return pb.prog.Types
}

// AddFile registers source text; the returned id is valid inside spans.
func (pb *ProgramBuilder) AddFile(path string, content []byte) source.FileID {
	pb.prog.Files = append(pb.prog.Files, SourceFile{Path: path, Content: content})
	return source.FileID(uint32(mustIndex(len(pb.prog.Files) - 1)))
}

// AddDef appends a definition and assigns its id.
func (pb *ProgramBuilder) AddDef(d Def) DefID {
	d.ID = DefID(mustIndex(len(pb.prog.Defs)))
	pb.prog.Defs = append(pb.prog.Defs, d)
	return d.ID
}

// SetBody replaces the body of an existing definition, for items that refer to themselves.
func (pb *ProgramBuilder) SetBody(id DefID, body *Body, promoted ...*Body) {
	d, ok := pb.prog.Def(id)
	if !ok {
		panic(fmt.Sprintf("mir: unknown def %d", id))
	}
	d.Body = body
	d.Promoted = promoted
}

// Program returns the assembled program.
func (pb *ProgramBuilder) Program() *Program {
	return pb.prog
}

// Str builds a `&str` literal operand. Literal text is stored in NFC form.
func (pb *ProgramBuilder) Str(s string) Operand {
	in := pb.prog.Types
	ty := in.Ref(in.Builtins().Str)
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstStr, Type: ty, Str: norm.NFC.String(s)}}
}

// BodyBuilder assembles a single Body.
type BodyBuilder struct {
	body *Body
	span source.Span
}

// NewBody starts a body whose return place has type result.
func NewBody(result types.TypeID, span source.Span) *BodyBuilder {
	b := &BodyBuilder{body: &Body{Span: span}, span: span}
	b.body.Locals = append(b.body.Locals, Local{Name: "_0", Type: result, Span: span, Mutable: true})
	return b
}

// Arg declares the next argument local. Arguments must be declared before other locals.
func (b *BodyBuilder) Arg(name string, ty types.TypeID) LocalID {
	if len(b.body.Locals) != b.body.ArgCount+1 {
		panic("mir: arguments must be declared before locals")
	}
	b.body.ArgCount++
	return b.Local(name, ty)
}

func (b *BodyBuilder) Local(name string, ty types.TypeID) LocalID {
	id := LocalID(mustIndex(len(b.body.Locals)))
	b.body.Locals = append(b.body.Locals, Local{Name: name, Type: ty, Span: b.span, Mutable: true})
	return id
}

// At sets the span used for statements and terminators added afterwards.
func (b *BodyBuilder) At(span source.Span) *BodyBuilder {
	b.span = span
	return b
}

func (b *BodyBuilder) Block() BlockID {
	id := BlockID(mustIndex(len(b.body.Blocks)))
	b.body.Blocks = append(b.body.Blocks, Block{ID: id})
	return id
}

func (b *BodyBuilder) push(bb BlockID, st Stmt) {
	blk := b.body.Block(bb)
	if blk == nil {
		panic(fmt.Sprintf("mir: unknown block bb%d", bb))
	}
	st.Span = b.span
	blk.Stmts = append(blk.Stmts, st)
}

func (b *BodyBuilder) Assign(bb BlockID, dst Place, src RValue) {
	b.push(bb, Stmt{Kind: StmtAssign, Assign: AssignStmt{Dst: dst, Src: src}})
}

func (b *BodyBuilder) StorageLive(bb BlockID, l LocalID) {
	b.push(bb, Stmt{Kind: StmtStorageLive, Local: l})
}

func (b *BodyBuilder) StorageDead(bb BlockID, l LocalID) {
	b.push(bb, Stmt{Kind: StmtStorageDead, Local: l})
}

func (b *BodyBuilder) Nop(bb BlockID) {
	b.push(bb, Stmt{Kind: StmtNop})
}

func (b *BodyBuilder) terminate(bb BlockID, t Terminator) {
	blk := b.body.Block(bb)
	if blk == nil {
		panic(fmt.Sprintf("mir: unknown block bb%d", bb))
	}
	t.Span = b.span
	blk.Term = t
}

func (b *BodyBuilder) Return(bb BlockID) {
	b.terminate(bb, Terminator{Kind: TermReturn})
}

func (b *BodyBuilder) Goto(bb, target BlockID) {
	b.terminate(bb, Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}})
}

func (b *BodyBuilder) Unreachable(bb BlockID) {
	b.terminate(bb, Terminator{Kind: TermUnreachable})
}

func (b *BodyBuilder) SwitchInt(bb BlockID, discr Operand, values []uint64, targets []BlockID, otherwise BlockID) {
	b.terminate(bb, Terminator{Kind: TermSwitchInt, SwitchInt: SwitchIntTerm{
		Discr: discr, Values: values, Targets: targets, Otherwise: otherwise,
	}})
}

func (b *BodyBuilder) Call(bb BlockID, callee Instance, args []Operand, dest Place, target BlockID) {
	b.terminate(bb, Terminator{Kind: TermCall, Call: CallTerm{
		Callee: callee, Args: args, Dest: dest, Target: target,
	}})
}

func (b *BodyBuilder) Assert(bb BlockID, cond Operand, expected bool, msg AssertMsg, target BlockID) {
	b.terminate(bb, Terminator{Kind: TermAssert, Assert: AssertTerm{
		Cond: cond, Expected: expected, Msg: msg, Target: target,
	}})
}

// Finish returns the body. The builder must not be used afterwards.
func (b *BodyBuilder) Finish() *Body {
	out := b.body
	b.body = nil
	return out
}

func mustIndex(n int) int32 {
	v, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("mir: index out of range: %w", err))
	}
	return v
}
