package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Unit == NoTypeID || b.Bool == NoTypeID || b.Usize == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	unit, _ := in.Lookup(b.Unit)
	if unit.Kind != KindUnit {
		t.Fatalf("expected unit kind, got %v", unit.Kind)
	}
	if in.RegisterTuple(nil) != b.Unit {
		t.Fatalf("empty tuple must be unit")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	arr1 := in.Array(b.U8, 4)
	arr2 := in.Intern(MakeArray(b.U8, 4))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	tup1 := in.RegisterTuple([]TypeID{b.I32, b.Bool})
	tup2 := in.RegisterTuple([]TypeID{b.I32, b.Bool})
	if tup1 != tup2 {
		t.Fatalf("tuple types should be deduplicated")
	}
	if s1, s2 := in.RegisterStruct("S", nil), in.RegisterStruct("S", nil); s1 == s2 {
		t.Fatalf("nominal structs must stay distinct")
	}
}

func TestReferenceMutabilityAffectsIdentity(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().I32
	if in.RefMut(elem) == in.Ref(elem) {
		t.Fatalf("mutable and immutable references must differ")
	}
	if in.Ptr(elem, true) == in.Ptr(elem, false) {
		t.Fatalf("mutable and immutable pointers must differ")
	}
}

func TestSubstReplacesParams(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	p := in.Param("T", 0)
	if in.Param("T", 0) != p {
		t.Fatalf("params should be deduplicated")
	}
	generic := in.RegisterTuple([]TypeID{in.Ref(p), in.Array(p, 2)})
	if !in.HasParams(generic) {
		t.Fatalf("expected generic tuple")
	}
	got := in.Subst(generic, []TypeID{b.U16})
	want := in.RegisterTuple([]TypeID{in.Ref(b.U16), in.Array(b.U16, 2)})
	if got != want {
		t.Fatalf("subst: got %s, want %s", in.Name(got), in.Name(want))
	}
	if in.Subst(generic, nil) != generic {
		t.Fatalf("subst without args must be identity")
	}
}

func TestNameFormatting(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	cell := in.Cell(b.I32)
	st := in.RegisterStruct("Wrapper", []StructField{{Name: "0", Type: cell}})
	cases := []struct {
		id   TypeID
		want string
	}{
		{b.Unit, "()"},
		{b.Never, "!"},
		{b.Isize, "isize"},
		{b.U64, "u64"},
		{in.Ref(b.Str), "&str"},
		{in.RefMut(in.Slice(b.U8)), "&mut [u8]"},
		{in.Ptr(b.I8, false), "*const i8"},
		{in.Array(b.Char, 3), "[char; 3]"},
		{in.RegisterTuple([]TypeID{b.Bool}), "(bool,)"},
		{in.RegisterTuple([]TypeID{b.Bool, b.U8}), "(bool, u8)"},
		{cell, "Cell<i32>"},
		{st, "Wrapper"},
		{in.RegisterOpaque("Foo", b.U32), "impl Foo"},
	}
	for _, tc := range cases {
		if got := in.Name(tc.id); got != tc.want {
			t.Errorf("Name(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}
	if !in.ContainsCell(st) {
		t.Fatalf("expected struct to contain a cell")
	}
	if in.ContainsCell(in.Ref(cell)) {
		t.Fatalf("references hide interior mutability")
	}
}

func TestSnapshotRoundTripKeepsIDs(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	tup := in.RegisterTuple([]TypeID{b.I64, in.Ref(b.Str)})
	st := in.RegisterStruct("P", []StructField{{Name: "x", Type: b.U8}})

	out, err := FromTable(in.Snapshot())
	if err != nil {
		t.Fatalf("FromTable: %v", err)
	}
	if out.Builtins() != b {
		t.Fatalf("builtins changed across snapshot")
	}
	if out.RegisterTuple([]TypeID{b.I64, out.Ref(b.Str)}) != tup {
		t.Fatalf("tuple id changed across snapshot")
	}
	info, ok := out.StructInfo(st)
	if !ok || info.Name != "P" || len(info.Fields) != 1 {
		t.Fatalf("struct info lost: %+v", info)
	}
}
