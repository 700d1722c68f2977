package mir_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"consteval/internal/mir"
	"consteval/internal/source"
	"consteval/internal/types"
)

// buildSum builds `const SUM: u32 = { let x = 40; x + 2 };`
func buildSum(t *testing.T) *mir.Program {
	t.Helper()
	pb := mir.NewProgramBuilder()
	u32 := pb.Types().Builtins().U32
	file := pb.AddFile("sum.src", []byte("const SUM: u32 = { let x = 40; x + 2 };\n"))

	b := mir.NewBody(u32, source.Span{File: file, Start: 0, End: 38})
	x := b.Local("x", u32)
	bb0 := b.Block()
	b.StorageLive(bb0, x)
	b.Assign(bb0, mir.LocalPlace(x), mir.Use(mir.ScalarConst(u32, 40)))
	b.Assign(bb0, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinAdd, mir.Copy(mir.LocalPlace(x)), mir.ScalarConst(u32, 2)))
	b.StorageDead(bb0, x)
	b.Return(bb0)

	pb.AddDef(mir.Def{Name: "SUM", Kind: mir.DefConst, Type: u32, Body: b.Finish()})
	return pb.Program()
}

func TestValidateAcceptsBuiltProgram(t *testing.T) {
	p := buildSum(t)
	if err := mir.Validate(p); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateReportsBrokenBodies(t *testing.T) {
	pb := mir.NewProgramBuilder()
	u8 := pb.Types().Builtins().U8
	b := mir.NewBody(u8, source.NoSpan)
	bb0 := b.Block()
	b.Goto(bb0, 7)
	bb1 := b.Block()
	b.Assign(bb1, mir.LocalPlace(42), mir.Use(mir.ScalarConst(u8, 1)))
	pb.AddDef(mir.Def{Name: "BAD", Kind: mir.DefConst, Type: u8, Body: b.Finish()})

	err := mir.Validate(pb.Program())
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"target bb7 does not exist", "local L42 does not exist", "bb1: unterminated block"} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}

func TestValidateChecksPromotedAndStatics(t *testing.T) {
	pb := mir.NewProgramBuilder()
	in := pb.Types()
	u8 := in.Builtins().U8
	fn := pb.AddDef(mir.Def{Name: "f", Kind: mir.DefFn, Body: emptyBody(in.Builtins().Unit)})

	b := mir.NewBody(in.Ref(u8), source.NoSpan)
	bb0 := b.Block()
	b.Assign(bb0, mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.PromotedConst(in.Ref(u8), 3)))
	b.Assign(bb0, mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.StaticRef(in.Ref(u8), fn)))
	b.Return(bb0)
	pb.AddDef(mir.Def{Name: "C", Kind: mir.DefConst, Body: b.Finish()})

	err := mir.Validate(pb.Program())
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "promoted[3] does not exist") || !strings.Contains(err.Error(), "not a static") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func emptyBody(ty types.TypeID) *mir.Body {
	b := mir.NewBody(ty, source.NoSpan)
	b.Return(b.Block())
	return b.Finish()
}

func TestAlwaysLiveLocals(t *testing.T) {
	p := buildSum(t)
	d, _ := p.Def(0)
	live := mir.AlwaysLiveLocals(d.Body)
	if len(live) != 2 || !live[0] || live[1] {
		t.Fatalf("AlwaysLiveLocals = %v, want [true false]", live)
	}
}

func TestStrLiteralIsNFC(t *testing.T) {
	pb := mir.NewProgramBuilder()
	// "e" followed by a combining acute accent composes to U+00E9.
	op := pb.Str("cafe\u0301")
	if op.Const.Str != "caf\u00e9" {
		t.Fatalf("literal not normalized: %q", op.Const.Str)
	}
	if got := pb.Types().Name(op.Const.Type); got != "&str" {
		t.Fatalf("literal type = %s", got)
	}
}

func TestDumpShowsBlocks(t *testing.T) {
	var buf bytes.Buffer
	if err := mir.Dump(&buf, buildSum(t), mir.DumpOptions{}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"const SUM: u32:", "L0: u32 [ret]", "storage_live L1", "L0 = Add(copy L1, const 0x2_u32)", "return"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestEncodeDecodeProgram(t *testing.T) {
	p := buildSum(t)
	var buf bytes.Buffer
	if err := mir.Encode(&buf, p); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := mir.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := mir.Validate(got); err != nil {
		t.Fatalf("decoded program invalid: %v", err)
	}
	var a, b bytes.Buffer
	_ = mir.Dump(&a, p, mir.DumpOptions{})
	_ = mir.Dump(&b, got, mir.DumpOptions{})
	if a.String() != b.String() {
		t.Fatalf("dump differs after decode:\n%s\nvs\n%s", a.String(), b.String())
	}
	fs := got.FileSet()
	if fs.Len() != 1 || fs.Get(0).Path != "sum.src" {
		t.Fatalf("embedded files lost")
	}
}

func TestDecodeRejectsOtherSchema(t *testing.T) {
	p := buildSum(t)
	raw, err := msgpack.Marshal(&mir.ProgramFile{Schema: 9, Types: p.Types.Snapshot()})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, err = mir.Decode(bytes.NewReader(raw))
	if !errors.Is(err, mir.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
