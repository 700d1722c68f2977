package mir

import (
	"fmt"

	"consteval/internal/types"
)

// RValueKind distinguishes right-hand value kinds.
type RValueKind uint8

const (
	RValueUse RValueKind = iota
	RValueRef
	RValueAddressOf
	RValueBinaryOp
	RValueCheckedBinaryOp
	RValueUnaryOp
	RValueCast
	RValueAggregate
	RValueLen
	RValueRepeat
)

// RValue represents a right-hand value in MIR.
type RValue struct {
	Kind RValueKind

	Use       Operand
	Ref       RefOp
	Binary    BinaryOp
	Unary     UnaryOp
	Cast      CastOp
	Aggregate AggregateOp
	Len       Place
	Repeat    RepeatOp
}

// RefOp borrows a place (`&p`, `&mut p`) or takes its raw address.
type RefOp struct {
	Place   Place
	Mutable bool
}

type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

var binOpNames = [...]string{
	BinAdd: "Add", BinSub: "Sub", BinMul: "Mul", BinDiv: "Div", BinRem: "Rem",
	BinBitAnd: "BitAnd", BinBitOr: "BitOr", BinBitXor: "BitXor", BinShl: "Shl", BinShr: "Shr",
	BinEq: "Eq", BinNe: "Ne", BinLt: "Lt", BinLe: "Le", BinGt: "Gt", BinGe: "Ge",
}

var binOpSymbols = [...]string{
	BinAdd: "+", BinSub: "-", BinMul: "*", BinDiv: "/", BinRem: "%",
	BinBitAnd: "&", BinBitOr: "|", BinBitXor: "^", BinShl: "<<", BinShr: ">>",
	BinEq: "==", BinNe: "!=", BinLt: "<", BinLe: "<=", BinGt: ">", BinGe: ">=",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", op)
}

// Symbol is the source operator, used in panic messages.
func (op BinOp) Symbol() string {
	if int(op) < len(binOpSymbols) {
		return binOpSymbols[op]
	}
	return "?"
}

// IsComparison reports whether op yields a bool.
func (op BinOp) IsComparison() bool {
	return op >= BinEq && op <= BinGe
}

// ParseBinOp is the inverse of BinOp.String.
func ParseBinOp(s string) (BinOp, bool) {
	for i, n := range binOpNames {
		if n == s {
			return BinOp(i), true
		}
	}
	return 0, false
}

// BinaryOp represents a binary operation. CheckedBinaryOp yields (T, bool).
type BinaryOp struct {
	Op    BinOp
	Left  Operand
	Right Operand
}

type UnOp uint8

const (
	UnNot UnOp = iota
	UnNeg
)

func (op UnOp) String() string {
	if op == UnNeg {
		return "Neg"
	}
	return "Not"
}

type UnaryOp struct {
	Op      UnOp
	Operand Operand
}

type CastKind uint8

const (
	// CastIntToInt converts between integer, bool and char types.
	CastIntToInt CastKind = iota
	// CastPtrToPtr reinterprets a thin or wide pointer as another pointer type.
	CastPtrToPtr
	// CastUnsize turns &[T; N] into &[T].
	CastUnsize
	// CastPtrToAddr exposes a pointer's address as an integer.
	CastPtrToAddr
)

func (k CastKind) String() string {
	switch k {
	case CastIntToInt:
		return "IntToInt"
	case CastPtrToPtr:
		return "PtrToPtr"
	case CastUnsize:
		return "Unsize"
	case CastPtrToAddr:
		return "PtrToAddr"
	default:
		return fmt.Sprintf("CastKind(%d)", k)
	}
}

// CastOp represents a cast operation.
type CastOp struct {
	Kind     CastKind
	Value    Operand
	TargetTy types.TypeID
}

// AggregateOp builds a tuple, array or struct value from its fields.
type AggregateOp struct {
	Type  types.TypeID
	Elems []Operand
}

// RepeatOp is `[value; count]`.
type RepeatOp struct {
	Value Operand
	Count uint64
}

func Use(op Operand) RValue { return RValue{Kind: RValueUse, Use: op} }

func Ref(p Place, mutable bool) RValue {
	return RValue{Kind: RValueRef, Ref: RefOp{Place: p, Mutable: mutable}}
}

func AddressOf(p Place, mutable bool) RValue {
	return RValue{Kind: RValueAddressOf, Ref: RefOp{Place: p, Mutable: mutable}}
}

func Binary(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueBinaryOp, Binary: BinaryOp{Op: op, Left: l, Right: r}}
}

func CheckedBinary(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueCheckedBinaryOp, Binary: BinaryOp{Op: op, Left: l, Right: r}}
}

func Unary(op UnOp, v Operand) RValue {
	return RValue{Kind: RValueUnaryOp, Unary: UnaryOp{Op: op, Operand: v}}
}

func Cast(kind CastKind, v Operand, to types.TypeID) RValue {
	return RValue{Kind: RValueCast, Cast: CastOp{Kind: kind, Value: v, TargetTy: to}}
}

func Aggregate(ty types.TypeID, elems ...Operand) RValue {
	return RValue{Kind: RValueAggregate, Aggregate: AggregateOp{Type: ty, Elems: elems}}
}

func Len(p Place) RValue { return RValue{Kind: RValueLen, Len: p} }

func Repeat(v Operand, n uint64) RValue {
	return RValue{Kind: RValueRepeat, Repeat: RepeatOp{Value: v, Count: n}}
}
