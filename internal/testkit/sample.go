package testkit

import (
	"consteval/internal/mir"
	"consteval/internal/types"
)

// Sample is a small program exercising the common shapes of constants:
// scalars, strings, aggregates, statics, intrinsics and a few failures.
//
//	ANSWER       42_i32
//	GREETING     "hello"
//	UNIT         ()
//	PAIR         (7_i32, true)
//	COUNTER      static 1_i32
//	COUNTER_REF  &COUNTER
//	WORD_SIZE    size_of::<u64>()
//	DIV_ZERO     panics: attempt to divide by zero
//	BAD_BOOL     undefined behavior: 0x02 as bool
func Sample() *mir.Program {
	f := NewFixture()
	b := f.B

	f.Simple("ANSWER", b.I32, "const ANSWER: i32 = 6 * 7;", mir.Binary(mir.BinMul, f.I32(6), f.I32(7)))
	f.Simple("GREETING", f.Types.Ref(b.Str), `const GREETING: &str = "hello";`, mir.Use(f.PB.Str("hello")))
	f.Simple("UNIT", b.Unit, "const UNIT: () = ();", mir.Use(mir.ZeroSizedConst(b.Unit)))

	pair := f.Types.RegisterTuple([]types.TypeID{b.I32, b.Bool})
	f.Simple("PAIR", pair, "const PAIR: (i32, bool) = (7, true);", mir.Aggregate(pair, f.I32(7), f.Bool(true)))

	sp := f.Decl("static COUNTER: i32 = 1;")
	body := mir.NewBody(b.I32, sp)
	bb := body.Block()
	body.Assign(bb, mir.LocalPlace(mir.ReturnLocal), mir.Use(f.I32(1)))
	body.Return(bb)
	counter := f.Static("COUNTER", mir.Not, sp, body.Finish())

	refI32 := f.Types.Ref(b.I32)
	f.Simple("COUNTER_REF", refI32, "const COUNTER_REF: &i32 = &COUNTER;", mir.Use(mir.StaticRef(refI32, counter)))

	sizeOf := f.Intrinsic("size_of")
	sp = f.Decl("const WORD_SIZE: usize = size_of::<u64>();")
	body = mir.NewBody(b.Usize, sp)
	bb0, bb1 := body.Block(), body.Block()
	body.Call(bb0, mir.Instance{Def: sizeOf, Args: []types.TypeID{b.U64}}, nil, mir.LocalPlace(mir.ReturnLocal), bb1)
	body.Return(bb1)
	f.Const("WORD_SIZE", sp, body.Finish())

	DivByZero(f, "DIV_ZERO")

	f.Simple("BAD_BOOL", b.Bool, "const BAD_BOOL: bool = unsafe { transmute(2_u8) };",
		mir.Cast(mir.CastIntToInt, f.U8(2), b.Bool))

	return f.Program()
}

// DivByZero declares `const name: i32 = 1 / 0;` lowered with the usual
// division check.
func DivByZero(f *Fixture, name string) mir.DefID {
	sp := f.Decl("const " + name + ": i32 = 1 / 0;")
	at := f.At(sp, "1 / 0")
	body := mir.NewBody(f.B.I32, sp)
	isZero := body.Local("is_zero", f.B.Bool)
	bb0, bb1 := body.Block(), body.Block()
	body.At(at)
	body.Assign(bb0, mir.LocalPlace(isZero), mir.Binary(mir.BinEq, f.I32(0), f.I32(0)))
	body.Assert(bb0, mir.Copy(mir.LocalPlace(isZero)), false,
		mir.AssertMsg{Kind: mir.AssertDivisionByZero, Left: f.I32(1)}, bb1)
	body.Assign(bb1, mir.LocalPlace(mir.ReturnLocal), mir.Binary(mir.BinDiv, f.I32(1), f.I32(0)))
	body.Return(bb1)
	return f.Const(name, sp, body.Finish())
}
