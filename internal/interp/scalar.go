package interp

import (
	"fmt"
	"unicode/utf8"
)

// Scalar is one machine word of at most 8 bytes. A scalar with provenance is a
// pointer and Bits holds its offset.
type Scalar struct {
	Bits uint64
	Prov AllocID
	Size uint8
}

func sizeMask(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(size) * 8)) - 1
}

// signExtend interprets the low size bytes of bits as a two's complement value.
func signExtend(bits uint64, size int) int64 {
	if size >= 8 {
		return int64(bits)
	}
	shift := 64 - uint(size)*8
	return int64(bits<<shift) >> shift
}

// ScalarFromUint truncates bits to size bytes.
func ScalarFromUint(bits uint64, size int) Scalar {
	return Scalar{Bits: bits & sizeMask(size), Size: uint8(size)}
}

// ScalarFromInt encodes v in two's complement.
func ScalarFromInt(v int64, size int) Scalar {
	return ScalarFromUint(uint64(v), size)
}

// ScalarFromBool encodes a bool as a single byte.
func ScalarFromBool(b bool) Scalar {
	if b {
		return Scalar{Bits: 1, Size: 1}
	}
	return Scalar{Size: 1}
}

// ScalarFromPointer encodes a pointer of ptrSize bytes.
func ScalarFromPointer(p Pointer, ptrSize int) Scalar {
	if p.Prov == NoAlloc {
		return ScalarFromUint(p.Offset, ptrSize)
	}
	return Scalar{Bits: p.Offset, Prov: p.Prov, Size: uint8(ptrSize)}
}

// IsPtr reports whether the scalar carries provenance.
func (s Scalar) IsPtr() bool {
	return s.Prov != NoAlloc
}

// ToBits returns the raw integer. Pointers cannot be observed as integers.
func (s Scalar) ToBits() (uint64, error) {
	if s.Prov != NoAlloc {
		return 0, errorf(CodePointerToInt, "unable to turn pointer into integer")
	}
	return s.Bits, nil
}

// ToInt returns the sign-extended integer value.
func (s Scalar) ToInt() (int64, error) {
	bits, err := s.ToBits()
	if err != nil {
		return 0, err
	}
	return signExtend(bits, int(s.Size)), nil
}

// ToBool decodes a one-byte bool.
func (s Scalar) ToBool() (bool, error) {
	bits, err := s.ToBits()
	if err != nil {
		return false, err
	}
	switch bits {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errorf(CodeInvalidBool, "interpreting an invalid 8-bit value as a bool: 0x%02x", bits)
	}
}

// ToChar decodes a char, rejecting surrogates and values above U+10FFFF.
func (s Scalar) ToChar() (rune, error) {
	bits, err := s.ToBits()
	if err != nil {
		return 0, err
	}
	r := rune(bits)
	if bits > utf8.MaxRune || !utf8.ValidRune(r) {
		return 0, errorf(CodeInvalidChar, "interpreting an invalid 32-bit value as a char: 0x%08x", bits)
	}
	return r, nil
}

// ToPointer decomposes a pointer-sized scalar.
func (s Scalar) ToPointer(ptrSize int) (Pointer, error) {
	if int(s.Size) != ptrSize {
		return Pointer{}, errorf(CodeTypeMismatch,
			"expected a pointer (%d bytes), got a %d-byte scalar", ptrSize, s.Size)
	}
	return Pointer{Prov: s.Prov, Offset: s.Bits}, nil
}

// ToTargetUsize decodes an unsigned pointer-width integer.
func (s Scalar) ToTargetUsize(ptrSize int) (uint64, error) {
	if int(s.Size) != ptrSize {
		return 0, errorf(CodeTypeMismatch, "expected a usize (%d bytes), got a %d-byte scalar", ptrSize, s.Size)
	}
	return s.ToBits()
}

func (s Scalar) String() string {
	if s.Prov != NoAlloc {
		return Pointer{Prov: s.Prov, Offset: s.Bits}.String()
	}
	return fmt.Sprintf("0x%0*x", int(s.Size)*2, s.Bits)
}
