package layout_test

import (
	"errors"
	"sync"
	"testing"

	"consteval/internal/layout"
	"consteval/internal/types"
)

func newEngine() (*layout.LayoutEngine, *types.Interner) {
	in := types.NewInterner()
	return layout.New(layout.X86_64LinuxGNU(), in), in
}

func TestPrimitiveLayouts(t *testing.T) {
	eng, in := newEngine()
	b := in.Builtins()
	cases := []struct {
		name  string
		id    types.TypeID
		size  int
		align int
		abi   layout.Abi
	}{
		{"unit", b.Unit, 0, 1, layout.AbiAggregate},
		{"never", b.Never, 0, 1, layout.AbiUninhabited},
		{"bool", b.Bool, 1, 1, layout.AbiScalar},
		{"char", b.Char, 4, 4, layout.AbiScalar},
		{"i16", b.I16, 2, 2, layout.AbiScalar},
		{"usize", b.Usize, 8, 8, layout.AbiScalar},
		{"&u8", in.Ref(b.U8), 8, 8, layout.AbiScalar},
		{"&str", in.Ref(b.Str), 16, 8, layout.AbiScalarPair},
		{"*const [u32]", in.Ptr(in.Slice(b.U32), false), 16, 8, layout.AbiScalarPair},
		{"[u16; 3]", in.Array(b.U16, 3), 6, 2, layout.AbiAggregate},
		{"Cell<i32>", in.Cell(b.I32), 4, 4, layout.AbiScalar},
	}
	for _, tc := range cases {
		l, err := eng.LayoutOf(tc.id, layout.RevealAll)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if l.Size != tc.size || l.Align != tc.align || l.Abi != tc.abi || !l.Sized {
			t.Errorf("%s: got size=%d align=%d abi=%s sized=%v", tc.name, l.Size, l.Align, l.Abi, l.Sized)
		}
	}
}

func TestStructPaddingAndNewtype(t *testing.T) {
	eng, in := newEngine()
	b := in.Builtins()
	st := in.RegisterStruct("S", []types.StructField{
		{Name: "a", Type: b.U8},
		{Name: "b", Type: b.U32},
		{Name: "c", Type: b.U16},
	})
	l, err := eng.LayoutOf(st, layout.RevealAll)
	if err != nil {
		t.Fatalf("LayoutOf: %v", err)
	}
	if l.Size != 12 || l.Align != 4 {
		t.Fatalf("got size=%d align=%d, want 12/4", l.Size, l.Align)
	}
	if want := []int{0, 4, 8}; len(l.FieldOffsets) != 3 || l.FieldOffsets[1] != want[1] || l.FieldOffsets[2] != want[2] {
		t.Fatalf("offsets = %v, want %v", l.FieldOffsets, want)
	}

	wrap := in.RegisterStruct("Wrap", []types.StructField{{Name: "0", Type: in.Ref(b.Str)}})
	wl, err := eng.LayoutOf(wrap, layout.RevealAll)
	if err != nil {
		t.Fatalf("LayoutOf: %v", err)
	}
	if wl.Abi != layout.AbiScalarPair || wl.Pair.SecondOffset != 8 {
		t.Fatalf("newtype should keep the pair ABI, got %s %+v", wl.Abi, wl.Pair)
	}
}

func TestUnsizedTypes(t *testing.T) {
	eng, in := newEngine()
	b := in.Builtins()
	for _, id := range []types.TypeID{b.Str, in.Slice(b.U64)} {
		l, err := eng.LayoutOf(id, layout.RevealAll)
		if err != nil {
			t.Fatalf("LayoutOf: %v", err)
		}
		if l.Sized {
			t.Fatalf("%s should be unsized", in.Name(id))
		}
	}
	bad := in.RegisterTuple([]types.TypeID{b.Str, b.U8})
	if _, err := eng.LayoutOf(bad, layout.RevealAll); err == nil {
		t.Fatalf("unsized field in non-tail position must fail")
	}
}

func TestOpaqueRequiresReveal(t *testing.T) {
	eng, in := newEngine()
	op := in.RegisterOpaque("Hidden", in.Builtins().U64)

	_, err := eng.LayoutOf(op, layout.RevealUserFacing)
	var le *layout.LayoutError
	if !errors.As(err, &le) || le.Kind != layout.LayoutErrOpaqueHidden {
		t.Fatalf("expected opaque error, got %v", err)
	}
	l, err := eng.LayoutOf(op, layout.RevealAll)
	if err != nil || l.Size != 8 {
		t.Fatalf("reveal all: size=%d err=%v", l.Size, err)
	}
}

func TestGenericParamIsTooGeneric(t *testing.T) {
	eng, in := newEngine()
	p := in.Param("T", 0)
	_, err := eng.LayoutOf(in.Array(p, 2), layout.RevealAll)
	if !layout.TooGeneric(err) {
		t.Fatalf("expected too-generic error, got %v", err)
	}
}

func TestRecursiveStructReportsCycle(t *testing.T) {
	eng, in := newEngine()
	node := in.RegisterStruct("Node", nil)
	in.SetStructFields(node, []types.StructField{{Name: "next", Type: node}})
	_, err := eng.LayoutOf(node, layout.RevealAll)
	var le *layout.LayoutError
	if !errors.As(err, &le) || le.Kind != layout.LayoutErrRecursiveUnsized {
		t.Fatalf("expected recursive error, got %v", err)
	}
	if len(le.Cycle) < 2 {
		t.Fatalf("expected a cycle, got %v", le.Cycle)
	}
}

func TestArrayOverflow(t *testing.T) {
	eng, in := newEngine()
	big := in.Array(in.Array(in.Builtins().U64, 1<<30), 1<<30)
	_, err := eng.LayoutOf(big, layout.RevealAll)
	var le *layout.LayoutError
	if !errors.As(err, &le) || le.Kind != layout.LayoutErrSizeOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestConcurrentLayoutQueries(t *testing.T) {
	eng, in := newEngine()
	b := in.Builtins()
	ids := []types.TypeID{b.U8, in.Ref(b.Str), in.Array(b.U32, 7), in.RegisterTuple([]types.TypeID{b.Bool, b.U64})}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				if _, err := eng.LayoutOf(id, layout.RevealAll); err != nil {
					t.Errorf("LayoutOf: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	if eng.CachedLen() < len(ids) {
		t.Fatalf("expected cached entries, got %d", eng.CachedLen())
	}
}

func TestTargetValidate(t *testing.T) {
	tgt := layout.X86_64LinuxGNU()
	if err := tgt.Validate(); err != nil {
		t.Fatalf("default target: %v", err)
	}
	tgt.PtrSize = 3
	if err := tgt.Validate(); err == nil {
		t.Fatalf("expected error for pointer size 3")
	}
	if e, err := layout.ParseEndian("big"); err != nil || e != layout.BigEndian {
		t.Fatalf("ParseEndian(big) = %v, %v", e, err)
	}
}
