package interp

import (
	"bytes"
	"fmt"
)

// ConstKind selects the shape of a ConstValue.
type ConstKind uint8

const (
	ConstZeroSized ConstKind = iota
	ConstScalar
	ConstSlice
	ConstIndirect
)

func (k ConstKind) String() string {
	switch k {
	case ConstZeroSized:
		return "zero-sized"
	case ConstScalar:
		return "scalar"
	case ConstSlice:
		return "slice"
	case ConstIndirect:
		return "indirect"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// ConstValue is the portable result of evaluating a constant.
type ConstValue struct {
	Kind   ConstKind
	Scalar Scalar
	// Slice
	Data *Allocation
	Meta uint64
	// Indirect
	Alloc  AllocID
	Offset uint64
}

// ZeroSizedValue returns the value of every zero-sized type.
func ZeroSizedValue() ConstValue {
	return ConstValue{Kind: ConstZeroSized}
}

// ScalarValue wraps a scalar.
func ScalarValue(s Scalar) ConstValue {
	return ConstValue{Kind: ConstScalar, Scalar: s}
}

// SliceValue describes data[..meta].
func SliceValue(data *Allocation, meta uint64) ConstValue {
	return ConstValue{Kind: ConstSlice, Data: data, Meta: meta}
}

// IndirectValue points into an interned allocation.
func IndirectValue(id AllocID, offset uint64) ConstValue {
	return ConstValue{Kind: ConstIndirect, Alloc: id, Offset: offset}
}

// Equal compares two values. Slices compare by contents, indirect values by
// location.
func (v ConstValue) Equal(o ConstValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ConstZeroSized:
		return true
	case ConstScalar:
		return v.Scalar == o.Scalar
	case ConstSlice:
		return v.Meta == o.Meta && v.Data.Equal(o.Data)
	case ConstIndirect:
		return v.Alloc == o.Alloc && v.Offset == o.Offset
	default:
		return false
	}
}

// Portable reports whether the value carries no provenance and can be stored
// outside this process.
func (v ConstValue) Portable() bool {
	switch v.Kind {
	case ConstZeroSized:
		return true
	case ConstScalar:
		return !v.Scalar.IsPtr()
	case ConstSlice:
		return v.Data != nil && len(v.Data.Prov) == 0
	default:
		return false
	}
}

func (v ConstValue) String() string {
	switch v.Kind {
	case ConstZeroSized:
		return "ZeroSized"
	case ConstScalar:
		return "Scalar(" + v.Scalar.String() + ")"
	case ConstSlice:
		var data []byte
		if v.Data != nil {
			data = v.Data.Bytes
		}
		shown := data
		if uint64(len(shown)) > v.Meta && v.Meta < 64 {
			shown = shown[:v.Meta]
		}
		if len(shown) > 32 {
			shown = shown[:32]
		}
		printable := bytes.IndexFunc(shown, func(r rune) bool { return r < 0x20 || r > 0x7e }) < 0
		if printable {
			return fmt.Sprintf("Slice(%q, len=%d)", shown, v.Meta)
		}
		return fmt.Sprintf("Slice(% x, len=%d)", shown, v.Meta)
	case ConstIndirect:
		return fmt.Sprintf("Indirect(%s, %#x)", v.Alloc, v.Offset)
	default:
		return v.Kind.String()
	}
}
