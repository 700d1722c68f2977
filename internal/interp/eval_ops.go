package interp

import (
	"fmt"
	"math/bits"

	"consteval/internal/mir"
	"consteval/internal/types"
)

// intTy describes how scalar bits of a type are interpreted.
type intTy struct {
	Size   int
	Signed bool
	Name   string
}

func (m *Machine) intTyOf(ty types.TypeID, size int) intTy {
	tt, _ := m.Types.Lookup(m.Types.Reveal(ty))
	return intTy{Size: size, Signed: tt.Kind == types.KindInt, Name: m.Types.Name(ty)}
}

// formatInt renders a value the way overflow messages show it, like `1_i32`.
func formatInt(bits uint64, it intTy) string {
	if it.Signed {
		return fmt.Sprintf("%d_%s", signExtend(bits, it.Size), it.Name)
	}
	return fmt.Sprintf("%d_%s", bits, it.Name)
}

// binaryIntOp evaluates op on two integers of type it. The result is wrapped
// to the type; overflow reports whether wrapping happened. Division by zero
// and signed MIN / -1 are errors.
func binaryIntOp(op mir.BinOp, it intTy, l, r uint64) (uint64, bool, error) {
	mask := sizeMask(it.Size)
	if op.IsComparison() {
		var res bool
		if it.Signed {
			a, b := signExtend(l, it.Size), signExtend(r, it.Size)
			res = compare(op, a < b, a == b)
		} else {
			res = compare(op, l < r, l == r)
		}
		if res {
			return 1, false, nil
		}
		return 0, false, nil
	}
	switch op {
	case mir.BinBitAnd:
		return l & r, false, nil
	case mir.BinBitOr:
		return l | r, false, nil
	case mir.BinBitXor:
		return l ^ r, false, nil
	case mir.BinShl, mir.BinShr:
		return shiftOp(op, it, l, r)
	}
	if it.Signed {
		return signedArith(op, it, l, r)
	}
	switch op {
	case mir.BinAdd:
		sum, carry := bits.Add64(l, r, 0)
		return sum & mask, carry != 0 || sum > mask, nil
	case mir.BinSub:
		return (l - r) & mask, l < r, nil
	case mir.BinMul:
		hi, lo := bits.Mul64(l, r)
		return lo & mask, hi != 0 || lo > mask, nil
	case mir.BinDiv:
		if r == 0 {
			return 0, false, errorf(CodeDivisionByZero, "dividing by zero")
		}
		return l / r, false, nil
	case mir.BinRem:
		if r == 0 {
			return 0, false, errorf(CodeDivisionByZero, "calculating the remainder with a divisor of zero")
		}
		return l % r, false, nil
	default:
		Bugf("unknown binary operator %s", op)
		return 0, false, nil
	}
}

func signedArith(op mir.BinOp, it intTy, l, r uint64) (uint64, bool, error) {
	a, b := signExtend(l, it.Size), signExtend(r, it.Size)
	lo, hi := intRange(it.Size)
	mask := sizeMask(it.Size)
	var (
		res int64
		ok  bool
	)
	switch op {
	case mir.BinAdd:
		res, ok = AddInt64Checked(a, b)
		if !ok {
			res = int64(uint64(a) + uint64(b))
		}
	case mir.BinSub:
		res, ok = SubInt64Checked(a, b)
		if !ok {
			res = int64(uint64(a) - uint64(b))
		}
	case mir.BinMul:
		res, ok = MulInt64Checked(a, b)
		if !ok {
			res = int64(uint64(a) * uint64(b))
		}
	case mir.BinDiv, mir.BinRem:
		if b == 0 {
			if op == mir.BinDiv {
				return 0, false, errorf(CodeDivisionByZero, "dividing by zero")
			}
			return 0, false, errorf(CodeDivisionByZero, "calculating the remainder with a divisor of zero")
		}
		if a == lo && b == -1 {
			if op == mir.BinDiv {
				return 0, false, errorf(CodeDivisionOverflow, "overflow in signed division (dividing MIN by -1)")
			}
			return 0, false, errorf(CodeDivisionOverflow, "overflow in signed remainder (dividing MIN by -1)")
		}
		if op == mir.BinDiv {
			return uint64(a/b) & mask, false, nil
		}
		return uint64(a%b) & mask, false, nil
	default:
		Bugf("unknown binary operator %s", op)
	}
	overflow := !ok || res < lo || res > hi
	return uint64(res) & mask, overflow, nil
}

func shiftOp(op mir.BinOp, it intTy, l, r uint64) (uint64, bool, error) {
	width := uint64(it.Size) * 8
	amt := r & (width - 1)
	overflow := r >= width
	var res uint64
	if op == mir.BinShl {
		res = (l << amt) & sizeMask(it.Size)
	} else if it.Signed {
		res = uint64(signExtend(l, it.Size)>>amt) & sizeMask(it.Size)
	} else {
		res = l >> amt
	}
	return res, overflow, nil
}

func compare(op mir.BinOp, less, equal bool) bool {
	switch op {
	case mir.BinEq:
		return equal
	case mir.BinNe:
		return !equal
	case mir.BinLt:
		return less
	case mir.BinLe:
		return less || equal
	case mir.BinGt:
		return !less && !equal
	case mir.BinGe:
		return !less
	default:
		return false
	}
}

// pointerBinaryOp handles operators where at least one side carries provenance.
func pointerBinaryOp(op mir.BinOp, l, r Scalar) (bool, error) {
	switch {
	case l.Prov == r.Prov && op.IsComparison():
		return compare(op, l.Bits < r.Bits, l.Bits == r.Bits), nil
	case op == mir.BinEq || op == mir.BinNe:
		// A live allocation is never at address zero.
		if (!l.IsPtr() && l.Bits == 0) || (!r.IsPtr() && r.Bits == 0) {
			return op == mir.BinNe, nil
		}
		return false, errorf(CodePointerCompare, "pointers into different allocations cannot be reliably compared during const eval")
	case op.IsComparison():
		return false, errorf(CodePointerCompare, "pointers into different allocations cannot be reliably compared during const eval")
	default:
		return false, errorf(CodePointerArith, "unable to perform `%s` on pointer values during const eval", op.Symbol())
	}
}
