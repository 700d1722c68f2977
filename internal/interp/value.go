package interp

import (
	"fmt"

	"consteval/internal/layout"
	"consteval/internal/types"
)

// ImmKind selects the shape of an Immediate.
type ImmKind uint8

const (
	ImmUninit ImmKind = iota
	ImmScalar
	ImmPair
)

// Immediate is a value held outside memory.
type Immediate struct {
	Kind ImmKind
	A, B Scalar
}

// ImmScalarOf wraps a single scalar.
func ImmScalarOf(s Scalar) Immediate {
	return Immediate{Kind: ImmScalar, A: s}
}

// ImmPairOf wraps two scalars, like a slice reference (data, len).
func ImmPairOf(a, b Scalar) Immediate {
	return Immediate{Kind: ImmPair, A: a, B: b}
}

func (i Immediate) String() string {
	switch i.Kind {
	case ImmScalar:
		return i.A.String()
	case ImmPair:
		return fmt.Sprintf("(%s, %s)", i.A, i.B)
	default:
		return "<uninit>"
	}
}

// MPlace is a typed location in memory. Unsized places carry length metadata.
type MPlace struct {
	Ptr     Pointer
	Meta    uint64
	HasMeta bool
	Type    types.TypeID
	Layout  layout.TypeLayout
}

// OpKind selects the shape of an OpTy.
type OpKind uint8

const (
	OpPlace OpKind = iota
	OpImmediate
)

// OpTy is a typed operand: exactly one of a memory place or an immediate.
type OpTy struct {
	Kind   OpKind
	Place  MPlace
	Imm    Immediate
	Type   types.TypeID
	Layout layout.TypeLayout
}

// PlaceOp wraps a place as an operand.
func PlaceOp(mp MPlace) OpTy {
	return OpTy{Kind: OpPlace, Place: mp, Type: mp.Type, Layout: mp.Layout}
}

// ImmOp wraps an immediate as an operand.
func ImmOp(imm Immediate, ty types.TypeID, l layout.TypeLayout) OpTy {
	return OpTy{Kind: OpImmediate, Imm: imm, Type: ty, Layout: l}
}

// AsPlace returns the place when the operand lives in memory.
func (op OpTy) AsPlace() (MPlace, bool) {
	if op.Kind == OpPlace {
		return op.Place, true
	}
	return MPlace{}, false
}
