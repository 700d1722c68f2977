package mir

import (
	"consteval/internal/types"
)

// OperandKind distinguishes operand types.
type OperandKind uint8

const (
	// OperandConst represents a constant operand.
	OperandConst OperandKind = iota
	// OperandCopy represents a copy operand.
	OperandCopy
	// OperandMove represents a move operand.
	OperandMove
)

// Operand represents a MIR operand.
type Operand struct {
	Kind  OperandKind
	Place Place
	Const Const
}

func Copy(p Place) Operand { return Operand{Kind: OperandCopy, Place: p} }
func Move(p Place) Operand { return Operand{Kind: OperandMove, Place: p} }

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstScalar is an integer, bool or char given by its raw bits.
	ConstScalar ConstKind = iota
	// ConstZeroSized is the only value of a zero-sized type.
	ConstZeroSized
	// ConstStr is a `&str` literal.
	ConstStr
	// ConstUnevaluated names another constant item that must be evaluated first.
	ConstUnevaluated
	// ConstStaticRef is the address of a static item.
	ConstStaticRef
	// ConstPromoted is the value of a promoted body of the enclosing instance.
	ConstPromoted
)

// Const represents a MIR constant.
type Const struct {
	Kind ConstKind
	Type types.TypeID

	Bits     uint64
	Str      string
	Item     Instance
	Static   DefID
	Promoted Promoted
}

// ScalarConst builds a scalar constant operand.
func ScalarConst(ty types.TypeID, bits uint64) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstScalar, Type: ty, Bits: bits}}
}

// BoolConst builds a bool constant operand.
func BoolConst(ty types.TypeID, v bool) Operand {
	var bits uint64
	if v {
		bits = 1
	}
	return ScalarConst(ty, bits)
}

// ZeroSizedConst builds the value of a zero-sized type.
func ZeroSizedConst(ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstZeroSized, Type: ty}}
}

// ItemConst refers to the value of another constant item.
func ItemConst(ty types.TypeID, item Instance) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstUnevaluated, Type: ty, Item: item, Promoted: NoPromoted}}
}

// StaticRef is `&STATIC` (or `&raw const STATIC` when ty is a raw pointer).
func StaticRef(ty types.TypeID, static DefID) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstStaticRef, Type: ty, Static: static}}
}

// PromotedConst refers to promoted body idx of the body being evaluated.
func PromotedConst(ty types.TypeID, idx Promoted) Operand {
	return Operand{Kind: OperandConst, Const: Const{Kind: ConstPromoted, Type: ty, Promoted: idx}}
}
