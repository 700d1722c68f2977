package interp

import (
	"encoding/binary"
	"errors"
	"testing"

	"consteval/internal/mir"
)

func TestAllocationScalarRoundTrip(t *testing.T) {
	a := NewAllocation(16, 8, mir.Mut, 8)
	if err := a.WriteScalar(binary.LittleEndian, 4, ScalarFromUint(0xdeadbeef, 4)); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := a.ReadScalar(binary.LittleEndian, 4, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if s.Bits != 0xdeadbeef || s.Size != 4 {
		t.Fatalf("unexpected scalar %v", s)
	}
	if a.Bytes[4] != 0xef {
		t.Fatalf("expected little-endian layout, got % x", a.Bytes)
	}
	if _, err := a.ReadScalar(binary.LittleEndian, 0, 8); !isCode(err, CodeUninitBytes) {
		t.Fatalf("expected uninit error, got %v", err)
	}
}

func TestAllocationBigEndian(t *testing.T) {
	a := NewAllocation(2, 2, mir.Mut, 8)
	if err := a.WriteScalar(binary.BigEndian, 0, ScalarFromUint(0x0102, 2)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if a.Bytes[0] != 0x01 || a.Bytes[1] != 0x02 {
		t.Fatalf("expected big-endian layout, got % x", a.Bytes)
	}
	s, _ := a.ReadScalar(binary.BigEndian, 0, 2)
	if s.Bits != 0x0102 {
		t.Fatalf("expected 0x0102, got %#x", s.Bits)
	}
}

func TestAllocationPointerProvenance(t *testing.T) {
	a := NewAllocation(16, 8, mir.Mut, 8)
	ptr := ScalarFromPointer(Pointer{Prov: 7, Offset: 3}, 8)
	if err := a.WriteScalar(binary.LittleEndian, 8, ptr); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := a.ReadScalar(binary.LittleEndian, 8, 8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != ptr {
		t.Fatalf("expected %v, got %v", ptr, got)
	}
	if _, err := a.ReadScalar(binary.LittleEndian, 8, 4); !isCode(err, CodePartialPointer) {
		t.Fatalf("expected partial pointer error, got %v", err)
	}
	if _, err := got.ToBits(); !isCode(err, CodePointerToInt) {
		t.Fatalf("expected pointer-to-int error, got %v", err)
	}
	if err := a.WriteScalar(binary.LittleEndian, 12, ScalarFromUint(0, 4)); !isCode(err, CodePartialPointer) {
		t.Fatalf("expected error overwriting half a pointer, got %v", err)
	}
	if err := a.WriteScalar(binary.LittleEndian, 8, ScalarFromUint(1, 8)); err != nil {
		t.Fatalf("overwriting a whole pointer: %v", err)
	}
	if len(a.Prov) != 0 {
		t.Fatalf("expected provenance cleared, got %v", a.Prov)
	}
}

func TestAllocationCopyRangeCarriesProvenance(t *testing.T) {
	src := NewAllocation(8, 8, mir.Mut, 8)
	_ = src.WriteScalar(binary.LittleEndian, 0, ScalarFromPointer(Pointer{Prov: 3}, 8))
	dst := NewAllocation(16, 8, mir.Mut, 8)
	if err := dst.CopyRange(8, src, 0, 8); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if dst.Prov[8] != 3 {
		t.Fatalf("expected provenance at offset 8, got %v", dst.Prov)
	}
	if !dst.IsInit(8, 8) || dst.IsInit(0, 8) {
		t.Fatalf("unexpected init mask")
	}
	if err := dst.CopyRange(0, src, 4, 4); !isCode(err, CodePartialPointer) {
		t.Fatalf("expected partial pointer copy error, got %v", err)
	}
}

func TestScalarConversions(t *testing.T) {
	if _, err := ScalarFromUint(2, 1).ToBool(); !isCode(err, CodeInvalidBool) {
		t.Fatalf("expected invalid bool, got %v", err)
	}
	if _, err := ScalarFromUint(0xD800, 4).ToChar(); !isCode(err, CodeInvalidChar) {
		t.Fatalf("expected invalid char for a surrogate, got %v", err)
	}
	if _, err := ScalarFromUint(1, 4).ToPointer(8); !isCode(err, CodeTypeMismatch) {
		t.Fatalf("expected error for a 4-byte pointer, got %v", err)
	}
	v, _ := ScalarFromInt(-1, 2).ToInt()
	if v != -1 {
		t.Fatalf("expected sign extension, got %d", v)
	}
}

func TestBinaryIntOp(t *testing.T) {
	i8 := intTy{Size: 1, Signed: true, Name: "i8"}
	u8 := intTy{Size: 1, Name: "u8"}
	u64 := intTy{Size: 8, Name: "u64"}
	tests := []struct {
		name     string
		op       mir.BinOp
		ty       intTy
		l, r     uint64
		want     uint64
		overflow bool
		code     Code
	}{
		{"add wraps i8", mir.BinAdd, i8, 127, 1, 0x80, true, 0},
		{"add u8", mir.BinAdd, u8, 200, 55, 255, false, 0},
		{"add wraps u8", mir.BinAdd, u8, 200, 56, 0, true, 0},
		{"sub underflows u8", mir.BinSub, u8, 0, 1, 0xff, true, 0},
		{"mul u64 overflow", mir.BinMul, u64, 1 << 63, 2, 0, true, 0},
		{"signed div", mir.BinDiv, i8, 0xf8, 2, 0xfc, false, 0},
		{"signed rem", mir.BinRem, i8, 0xf9, 2, 0xff, false, 0},
		{"div by zero", mir.BinDiv, u8, 1, 0, 0, false, CodeDivisionByZero},
		{"rem by zero", mir.BinRem, i8, 1, 0, 0, false, CodeDivisionByZero},
		{"min div -1", mir.BinDiv, i8, 0x80, 0xff, 0, false, CodeDivisionOverflow},
		{"shl masks amount", mir.BinShl, u8, 1, 9, 2, true, 0},
		{"shr arithmetic", mir.BinShr, i8, 0x80, 1, 0xc0, false, 0},
		{"lt signed", mir.BinLt, i8, 0xff, 0, 1, false, 0},
		{"lt unsigned", mir.BinLt, u8, 0xff, 0, 0, false, 0},
		{"ge", mir.BinGe, u8, 3, 3, 1, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, overflow, err := binaryIntOp(tt.op, tt.ty, tt.l, tt.r)
			if tt.code != 0 {
				if !isCode(err, tt.code) {
					t.Fatalf("expected %s, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want || overflow != tt.overflow {
				t.Fatalf("got (%#x, %v), want (%#x, %v)", got, overflow, tt.want, tt.overflow)
			}
		})
	}
}

func TestCodeKinds(t *testing.T) {
	cases := map[Code]ErrorKind{
		CodeUninitBytes:       KindUndefinedBehavior,
		CodeValidationInvalid: KindUndefinedBehavior,
		CodePointerToInt:      KindUnsupported,
		CodeTooGeneric:        KindInvalidProgram,
		CodeStepLimit:         KindResourceExhaustion,
		CodePanicDivByZero:    KindPanic,
	}
	for code, want := range cases {
		if got := code.Kind(); got != want {
			t.Fatalf("%s: expected %s, got %s", code, want, got)
		}
	}
	if CodeUninitBytes.String() != "CE1001" {
		t.Fatalf("unexpected code format %q", CodeUninitBytes.String())
	}
	if !CodeValidationInvalid.IsValidation() || CodeUninitBytes.IsValidation() {
		t.Fatalf("unexpected IsValidation classification")
	}
}

func TestGlobalsInternFirstWins(t *testing.T) {
	g := NewGlobals()
	id := g.NextID()
	first := AllocationFromBytes([]byte{1}, 1, mir.Not, 8)
	second := AllocationFromBytes([]byte{2}, 1, mir.Not, 8)
	if got := g.Intern(id, first); got != first {
		t.Fatalf("expected first allocation to be stored")
	}
	if got := g.Intern(id, second); got != first {
		t.Fatalf("expected re-interning to keep the first allocation")
	}
	if a := g.StaticAllocID(4); a != g.StaticAllocID(4) {
		t.Fatalf("static ids must be reserved once")
	}
	if def, ok := g.StaticDef(g.StaticAllocID(4)); !ok || def != 4 {
		t.Fatalf("expected reverse mapping to def 4, got %d %v", def, ok)
	}
}

func isCode(err error, code Code) bool {
	var ie *InterpError
	return errors.As(err, &ie) && ie.Code == code
}
