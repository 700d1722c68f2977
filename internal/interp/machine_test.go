package interp_test

import (
	"bytes"
	"strings"
	"testing"

	"consteval/internal/interp"
	"consteval/internal/mir"
	"consteval/internal/types"
)

func TestMachineArithmetic(t *testing.T) {
	h := newHarness()
	b := mir.NewBody(h.b.I32, h.sp)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinMul, h.i32(-6), h.i32(7)))
	b.Return(bb)
	def := h.constDef("PRODUCT", b.Finish())

	m, ret, err := h.run(t, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s, err := m.ReadScalar(interp.PlaceOp(ret))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	v, _ := s.ToInt()
	if v != -42 {
		t.Fatalf("expected -42, got %d", v)
	}
	if m.Steps() != 2 {
		t.Fatalf("expected 2 steps, got %d", m.Steps())
	}
}

func TestMachineUncheckedDivisionByZeroIsUB(t *testing.T) {
	h := newHarness()
	b := mir.NewBody(h.b.I32, h.sp)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinDiv, h.i32(1), h.i32(0)))
	b.Return(bb)
	def := h.constDef("DIV", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeDivisionByZero {
		t.Fatalf("expected %s, got %s", interp.CodeDivisionByZero, code)
	}
	ie := err.(*interp.InterpError)
	if ie.Kind() != interp.KindUndefinedBehavior {
		t.Fatalf("expected undefined behavior, got %s", ie.Kind())
	}
	if len(ie.Frames) != 1 || ie.Frames[0].Name != "DIV" {
		t.Fatalf("expected one frame named DIV, got %+v", ie.Frames)
	}
	if ie.Span != h.sp {
		t.Fatalf("expected span %+v, got %+v", h.sp, ie.Span)
	}
}

func TestMachineCheckedOverflowPanics(t *testing.T) {
	h := newHarness()
	pair := h.in.RegisterTuple([]types.TypeID{h.b.I32, h.b.Bool})
	b := mir.NewBody(h.b.I32, h.sp)
	tmp := b.Local("tmp", pair)
	bb0, bb1 := b.Block(), b.Block()
	b.Assign(bb0, mir.LocalPlace(tmp), mir.CheckedBinary(mir.BinAdd, h.i32(2147483647), h.i32(1)))
	b.Assert(bb0, mir.Copy(mir.LocalPlace(tmp).Field(1)), false,
		mir.AssertMsg{Kind: mir.AssertOverflow, Op: mir.BinAdd, Left: h.i32(2147483647), Right: h.i32(1)}, bb1)
	b.Assign(bb1, mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.Copy(mir.LocalPlace(tmp).Field(0))))
	b.Return(bb1)
	def := h.constDef("OVERFLOW", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodePanicOverflow {
		t.Fatalf("expected %s, got %s: %v", interp.CodePanicOverflow, code, err)
	}
	want := "attempt to compute `2147483647_i32 + 1_i32`, which would overflow"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q in %q", want, err.Error())
	}
}

func TestMachineCheckedAddWithoutOverflow(t *testing.T) {
	h := newHarness()
	pair := h.in.RegisterTuple([]types.TypeID{h.b.I32, h.b.Bool})
	b := mir.NewBody(h.b.I32, h.sp)
	tmp := b.Local("tmp", pair)
	bb0, bb1 := b.Block(), b.Block()
	b.Assign(bb0, mir.LocalPlace(tmp), mir.CheckedBinary(mir.BinAdd, h.i32(40), h.i32(2)))
	b.Assert(bb0, mir.Copy(mir.LocalPlace(tmp).Field(1)), false,
		mir.AssertMsg{Kind: mir.AssertOverflow, Op: mir.BinAdd, Left: h.i32(40), Right: h.i32(2)}, bb1)
	b.Assign(bb1, mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.Copy(mir.LocalPlace(tmp).Field(0))))
	b.Return(bb1)
	def := h.constDef("SUM", b.Finish())

	m, ret, err := h.run(t, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s, _ := m.ReadScalar(interp.PlaceOp(ret))
	if s.Bits != 42 {
		t.Fatalf("expected 42, got %d", s.Bits)
	}
}

func TestMachineCallsFunction(t *testing.T) {
	h := newHarness()
	fb := mir.NewBody(h.b.I32, h.sp)
	x := fb.Arg("x", h.b.I32)
	fbb := fb.Block()
	fb.Assign(fbb, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinShl, mir.Copy(mir.LocalPlace(x)), h.i32(1)))
	fb.Return(fbb)
	double := h.pb.AddDef(mir.Def{Name: "double", Kind: mir.DefFn, Span: h.sp, Body: fb.Finish()})

	b := mir.NewBody(h.b.I32, h.sp)
	bb0, bb1 := b.Block(), b.Block()
	b.Call(bb0, mir.Mono(double), []mir.Operand{h.i32(21)}, mir.LocalPlace(mir.ReturnLocal), bb1)
	b.Return(bb1)
	def := h.constDef("DOUBLED", b.Finish())

	m, ret, err := h.run(t, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s, _ := m.ReadScalar(interp.PlaceOp(ret))
	if s.Bits != 42 {
		t.Fatalf("expected 42, got %d", s.Bits)
	}
	if m.MaxDepth() != 2 {
		t.Fatalf("expected max depth 2, got %d", m.MaxDepth())
	}
}

func TestMachineStepLimit(t *testing.T) {
	h := newHarness()
	h.cfg.StepLimit = 50
	b := mir.NewBody(h.b.Unit, h.sp)
	bb := b.Block()
	b.Goto(bb, bb)
	def := h.constDef("LOOP", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeStepLimit {
		t.Fatalf("expected %s, got %s", interp.CodeStepLimit, code)
	}
	if err.(*interp.InterpError).Kind() != interp.KindResourceExhaustion {
		t.Fatalf("expected resource exhaustion")
	}
}

func TestMachineStackLimit(t *testing.T) {
	h := newHarness()
	h.cfg.StackLimit = 8
	fnID := h.pb.AddDef(mir.Def{Name: "forever", Kind: mir.DefFn, Span: h.sp})
	fb := mir.NewBody(h.b.Unit, h.sp)
	fbb0, fbb1 := fb.Block(), fb.Block()
	fb.Call(fbb0, mir.Mono(fnID), nil, mir.LocalPlace(mir.ReturnLocal), fbb1)
	fb.Return(fbb1)
	h.pb.SetBody(fnID, fb.Finish())

	b := mir.NewBody(h.b.Unit, h.sp)
	bb0, bb1 := b.Block(), b.Block()
	b.Call(bb0, mir.Mono(fnID), nil, mir.LocalPlace(mir.ReturnLocal), bb1)
	b.Return(bb1)
	def := h.constDef("RECURSE", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeStackOverflow {
		t.Fatalf("expected %s, got %s", interp.CodeStackOverflow, code)
	}
	if n := len(err.(*interp.InterpError).Frames); n != 8 {
		t.Fatalf("expected 8 frames in the backtrace, got %d", n)
	}
}

func TestMachineDeadLocal(t *testing.T) {
	h := newHarness()
	b := mir.NewBody(h.b.I32, h.sp)
	x := b.Local("x", h.b.I32)
	bb := b.Block()
	b.StorageLive(bb, x)
	b.Assign(bb, mir.LocalPlace(x), mir.Use(h.i32(1)))
	b.StorageDead(bb, x)
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Use(mir.Copy(mir.LocalPlace(x))))
	b.Return(bb)
	def := h.constDef("DEAD", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeDeadLocal {
		t.Fatalf("expected %s, got %s", interp.CodeDeadLocal, code)
	}
}

func TestMachineUninitRead(t *testing.T) {
	h := newHarness()
	b := mir.NewBody(h.b.I32, h.sp)
	x := b.Local("x", h.b.I32)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinAdd, mir.Copy(mir.LocalPlace(x)), h.i32(1)))
	b.Return(bb)
	def := h.constDef("UNINIT", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeUninitBytes {
		t.Fatalf("expected %s, got %s", interp.CodeUninitBytes, code)
	}
}

func TestMachineArrayIndexAndLen(t *testing.T) {
	h := newHarness()
	arr := h.in.Array(h.b.I32, 3)
	b := mir.NewBody(h.b.I32, h.sp)
	a := b.Local("a", arr)
	i := b.Local("i", h.b.Usize)
	n := b.Local("n", h.b.Usize)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(a), mir.Aggregate(arr, h.i32(10), h.i32(20), h.i32(30)))
	b.Assign(bb, mir.LocalPlace(n), mir.Len(mir.LocalPlace(a)))
	b.Assign(bb, mir.LocalPlace(i), mir.Use(h.usize(2)))
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinAdd,
		mir.Copy(mir.LocalPlace(a).Index(i)), mir.Copy(mir.LocalPlace(a).ConstIndex(3, true))))
	b.Return(bb)
	def := h.constDef("INDEX", b.Finish())

	m, ret, err := h.run(t, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s, _ := m.ReadScalar(interp.PlaceOp(ret))
	if s.Bits != 40 {
		t.Fatalf("expected 30+10=40, got %d", s.Bits)
	}
}

func TestMachineSwitchInt(t *testing.T) {
	h := newHarness()
	b := mir.NewBody(h.b.I32, h.sp)
	bb0, yes, no := b.Block(), b.Block(), b.Block()
	b.SwitchInt(bb0, mir.BoolConst(h.b.Bool, true), []uint64{0}, []mir.BlockID{no}, yes)
	b.Assign(yes, mir.LocalPlace(mir.ReturnLocal), mir.Use(h.i32(1)))
	b.Return(yes)
	b.Unreachable(no)
	def := h.constDef("BRANCH", b.Finish())

	m, ret, err := h.run(t, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s, _ := m.ReadScalar(interp.PlaceOp(ret))
	if s.Bits != 1 {
		t.Fatalf("expected 1, got %d", s.Bits)
	}
}

func TestMachineUnreachable(t *testing.T) {
	h := newHarness()
	b := mir.NewBody(h.b.Unit, h.sp)
	bb := b.Block()
	b.Unreachable(bb)
	def := h.constDef("NEVER", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeUnreachable {
		t.Fatalf("expected %s, got %s", interp.CodeUnreachable, code)
	}
}

func TestMachineWriteThroughSharedStrIsRejected(t *testing.T) {
	h := newHarness()
	strRef := h.in.Ref(h.b.Str)
	b := mir.NewBody(h.b.Unit, h.sp)
	s := b.Local("s", strRef)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(s), mir.Use(h.pb.Str("ab")))
	b.Assign(bb, mir.LocalPlace(s).Deref().ConstIndex(0, false), mir.Use(mir.ScalarConst(h.b.U8, 'x')))
	b.Return(bb)
	def := h.constDef("WRITE", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodeWriteToReadOnly {
		t.Fatalf("expected %s, got %s", interp.CodeWriteToReadOnly, code)
	}
}

func TestMachinePointerToAddressIsUnsupported(t *testing.T) {
	h := newHarness()
	ptr := h.in.Ptr(h.b.I32, false)
	b := mir.NewBody(h.b.Usize, h.sp)
	x := b.Local("x", h.b.I32)
	p := b.Local("p", ptr)
	bb := b.Block()
	b.Assign(bb, mir.LocalPlace(x), mir.Use(h.i32(5)))
	b.Assign(bb, mir.LocalPlace(p), mir.AddressOf(mir.LocalPlace(x), false))
	b.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Cast(mir.CastPtrToAddr, mir.Copy(mir.LocalPlace(p)), h.b.Usize))
	b.Return(bb)
	def := h.constDef("ADDR", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodePointerToInt {
		t.Fatalf("expected %s, got %s", interp.CodePointerToInt, code)
	}
	if err.(*interp.InterpError).Kind() != interp.KindUnsupported {
		t.Fatalf("expected unsupported operation")
	}
}

func TestMachinePanicIntrinsic(t *testing.T) {
	h := newHarness()
	panicID := h.pb.AddDef(mir.Def{Name: "panic", Kind: mir.DefIntrinsic, Intrinsic: "panic", Span: h.sp})
	b := mir.NewBody(h.b.Unit, h.sp)
	bb0, bb1 := b.Block(), b.Block()
	b.Call(bb0, mir.Mono(panicID), []mir.Operand{h.pb.Str("boom")}, mir.LocalPlace(mir.ReturnLocal), bb1)
	b.Return(bb1)
	def := h.constDef("PANICS", b.Finish())

	_, _, err := h.run(t, def)
	if code := codeOf(t, err); code != interp.CodePanicExplicit {
		t.Fatalf("expected %s, got %s", interp.CodePanicExplicit, code)
	}
	if !strings.Contains(err.Error(), "evaluation panicked: boom") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestMachineSizeOfIntrinsicCall(t *testing.T) {
	h := newHarness()
	sizeOf := h.pb.AddDef(mir.Def{Name: "size_of", Kind: mir.DefIntrinsic, Intrinsic: "size_of", Span: h.sp})
	pair := h.in.RegisterTuple([]types.TypeID{h.b.U8, h.b.U32})
	b := mir.NewBody(h.b.Usize, h.sp)
	bb0, bb1 := b.Block(), b.Block()
	b.Call(bb0, mir.Instance{Def: sizeOf, Args: []types.TypeID{pair}}, nil, mir.LocalPlace(mir.ReturnLocal), bb1)
	b.Return(bb1)
	def := h.constDef("SIZE", b.Finish())

	m, ret, err := h.run(t, def)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s, _ := m.ReadScalar(interp.PlaceOp(ret))
	if s.Bits != 8 {
		t.Fatalf("expected size 8, got %d", s.Bits)
	}
}

func TestMachineBacktraceModes(t *testing.T) {
	tests := []struct {
		mode     interp.BacktraceMode
		captured bool
		printed  bool
	}{
		{interp.BacktraceOff, false, false},
		{interp.BacktraceCapture, true, false},
		{interp.BacktraceImmediate, true, true},
	}
	for _, tt := range tests {
		h := newHarness()
		var out bytes.Buffer
		h.cfg.Backtrace = tt.mode
		h.cfg.BacktraceOut = &out
		b := mir.NewBody(h.b.Unit, h.sp)
		b.Unreachable(b.Block())
		def := h.constDef("NEVER", b.Finish())

		_, _, err := h.run(t, def)
		if code := codeOf(t, err); code != interp.CodeUnreachable {
			t.Fatalf("%s: expected %s, got %s", tt.mode, interp.CodeUnreachable, code)
		}
		ie := err.(*interp.InterpError)
		if got := len(ie.Backtrace) > 0; got != tt.captured {
			t.Fatalf("%s: captured = %v, want %v", tt.mode, got, tt.captured)
		}
		if got := out.Len() > 0; got != tt.printed {
			t.Fatalf("%s: printed = %v, want %v", tt.mode, got, tt.printed)
		}
	}
}

func TestMachineUnsizeChecksTargetElement(t *testing.T) {
	h := newHarness()
	cases := []struct {
		name   string
		elem   types.TypeID
		target types.TypeID
		ok     bool
	}{
		{"array to slice", h.b.I32, h.in.Slice(h.b.I32), true},
		{"bytes to str", h.b.U8, h.b.Str, true},
		{"element mismatch", h.b.I32, h.in.Slice(h.b.U8), false},
		{"non-byte str", h.b.I32, h.b.Str, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			arr := h.in.Array(tc.elem, 2)
			b := mir.NewBody(h.b.Unit, h.sp)
			a := b.Local("a", arr)
			r := b.Local("r", h.in.Ref(arr))
			s := b.Local("s", h.in.Ref(tc.target))
			bb := b.Block()
			zero := mir.ScalarConst(tc.elem, 0)
			b.Assign(bb, mir.LocalPlace(a), mir.Aggregate(arr, zero, zero))
			b.Assign(bb, mir.LocalPlace(r), mir.Ref(mir.LocalPlace(a), false))
			b.Assign(bb, mir.LocalPlace(s), mir.Cast(mir.CastUnsize, mir.Copy(mir.LocalPlace(r)), h.in.Ref(tc.target)))
			b.Return(bb)
			def := h.constDef("UNSIZE", b.Finish())

			_, _, err := h.run(t, def)
			if tc.ok {
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				return
			}
			if code := codeOf(t, err); code != interp.CodeTypeMismatch {
				t.Fatalf("expected %s, got %s", interp.CodeTypeMismatch, code)
			}
		})
	}
}
