package testkit

import (
	"strings"

	"fortio.org/safecast"

	"consteval/internal/mir"
	"consteval/internal/source"
	"consteval/internal/types"
)

// FixturePath is the file name spans of fixture programs point into.
const FixturePath = "fixture.cir"

// Fixture builds small programs together with the source text their spans
// refer to. Each declaration is one line of that text.
type Fixture struct {
	PB    *mir.ProgramBuilder
	Types *types.Interner
	B     types.Builtins
	File  source.FileID

	src strings.Builder
}

func NewFixture() *Fixture {
	pb := mir.NewProgramBuilder()
	return &Fixture{
		PB:    pb,
		Types: pb.Types(),
		B:     pb.Types().Builtins(),
		File:  pb.AddFile(FixturePath, nil),
	}
}

// Decl appends a source line and returns its span.
func (f *Fixture) Decl(line string) source.Span {
	start := mustU32(f.src.Len())
	f.src.WriteString(line)
	end := mustU32(f.src.Len())
	f.src.WriteByte('\n')
	return source.Span{File: f.File, Start: start, End: end}
}

// At returns the span of the first occurrence of part inside decl, which
// must have been added with Decl.
func (f *Fixture) At(decl source.Span, part string) source.Span {
	text := f.src.String()[decl.Start:decl.End]
	i := strings.Index(text, part)
	if i < 0 {
		return decl
	}
	start := decl.Start + mustU32(i)
	return source.Span{File: f.File, Start: start, End: start + mustU32(len(part))}
}

func (f *Fixture) Const(name string, sp source.Span, body *mir.Body, promoted ...*mir.Body) mir.DefID {
	return f.PB.AddDef(mir.Def{Name: name, Kind: mir.DefConst, Span: sp, Type: body.ResultType(), Body: body, Promoted: promoted})
}

// GenericConst declares a constant with type parameters.
func (f *Fixture) GenericConst(name string, generics []string, sp source.Span, body *mir.Body) mir.DefID {
	return f.PB.AddDef(mir.Def{Name: name, Kind: mir.DefConst, Span: sp, Generics: generics, Type: body.ResultType(), Body: body})
}

func (f *Fixture) Static(name string, mut mir.Mutability, sp source.Span, body *mir.Body, promoted ...*mir.Body) mir.DefID {
	return f.PB.AddDef(mir.Def{Name: name, Kind: mir.DefStatic, Mutability: mut, Span: sp, Type: body.ResultType(), Body: body, Promoted: promoted})
}

// Fn declares a function usable as a call target.
func (f *Fixture) Fn(name string, sp source.Span, body *mir.Body) mir.DefID {
	return f.PB.AddDef(mir.Def{Name: name, Kind: mir.DefFn, Span: sp, Type: body.ResultType(), Body: body})
}

// Intrinsic declares a generic intrinsic like `size_of<T>`.
func (f *Fixture) Intrinsic(name string) mir.DefID {
	return f.PB.AddDef(mir.Def{Name: name, Kind: mir.DefIntrinsic, Generics: []string{"T"}, Intrinsic: name})
}

// Program finishes the source text and returns the program.
func (f *Fixture) Program() *mir.Program {
	p := f.PB.Program()
	p.Files[f.File].Content = []byte(f.src.String())
	return p
}

func (f *Fixture) I32(v int32) mir.Operand {
	return mir.ScalarConst(f.B.I32, uint64(uint32(v)))
}

func (f *Fixture) U8(v uint8) mir.Operand {
	return mir.ScalarConst(f.B.U8, uint64(v))
}

func (f *Fixture) Usize(v uint64) mir.Operand {
	return mir.ScalarConst(f.B.Usize, v)
}

func (f *Fixture) Bool(v bool) mir.Operand {
	return mir.BoolConst(f.B.Bool, v)
}

// Simple declares `const name: ty = rv;` as a single assignment to the
// return place.
func (f *Fixture) Simple(name string, ty types.TypeID, decl string, rv mir.RValue) mir.DefID {
	sp := f.Decl(decl)
	b := mir.NewBody(ty, sp)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), rv)
	b.Return(bb)
	return f.Const(name, sp, b.Finish())
}

func mustU32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(err)
	}
	return v
}
