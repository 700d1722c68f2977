package interp

import (
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/types"
)

func (m *Machine) evalAssign(f *Frame, as *mir.AssignStmt) error {
	dst, err := m.evalPlace(f, as.Dst)
	if err != nil {
		return err
	}
	return m.evalRValueInto(f, &as.Src, dst)
}

func (m *Machine) evalRValueInto(f *Frame, rv *mir.RValue, dst MPlace) error {
	switch rv.Kind {
	case mir.RValueUse:
		op, err := m.evalOperand(f, rv.Use)
		if err != nil {
			return err
		}
		return m.copyOp(op, dst)

	case mir.RValueRef, mir.RValueAddressOf:
		mp, err := m.evalPlace(f, rv.Ref.Place)
		if err != nil {
			return err
		}
		return m.writeImmediate(m.placeToPtr(mp), dst)

	case mir.RValueBinaryOp:
		res, _, err := m.evalBinary(f, &rv.Binary)
		if err != nil {
			return err
		}
		return m.writeImmediate(ImmScalarOf(res), dst)

	case mir.RValueCheckedBinaryOp:
		res, overflow, err := m.evalBinary(f, &rv.Binary)
		if err != nil {
			return err
		}
		val, err := m.fieldPlace(dst, 0)
		if err != nil {
			return err
		}
		flag, err := m.fieldPlace(dst, 1)
		if err != nil {
			return err
		}
		if err := m.writeImmediate(ImmScalarOf(res), val); err != nil {
			return err
		}
		return m.writeImmediate(ImmScalarOf(ScalarFromBool(overflow)), flag)

	case mir.RValueUnaryOp:
		res, err := m.evalUnary(f, &rv.Unary)
		if err != nil {
			return err
		}
		return m.writeImmediate(ImmScalarOf(res), dst)

	case mir.RValueCast:
		imm, err := m.evalCast(f, &rv.Cast, dst)
		if err != nil {
			return err
		}
		return m.writeImmediate(imm, dst)

	case mir.RValueAggregate:
		return m.evalAggregate(f, &rv.Aggregate, dst)

	case mir.RValueLen:
		mp, err := m.evalPlace(f, rv.Len)
		if err != nil {
			return err
		}
		n, err := m.placeLen(mp)
		if err != nil {
			return err
		}
		return m.writeImmediate(ImmScalarOf(ScalarFromUint(n, m.PtrSize())), dst)

	case mir.RValueRepeat:
		op, err := m.evalOperand(f, rv.Repeat.Value)
		if err != nil {
			return err
		}
		for i := range rv.Repeat.Count {
			elem, err := m.indexPlace(dst, i)
			if err != nil {
				return err
			}
			if err := m.copyOp(op, elem); err != nil {
				return err
			}
		}
		return nil

	default:
		Bugf("unknown rvalue kind %d", rv.Kind)
		return nil
	}
}

// placeToPtr builds the reference value for a place.
func (m *Machine) placeToPtr(mp MPlace) Immediate {
	ps := m.PtrSize()
	ptr := ScalarFromPointer(mp.Ptr, ps)
	if mp.HasMeta {
		return ImmPairOf(ptr, ScalarFromUint(mp.Meta, ps))
	}
	return ImmScalarOf(ptr)
}

func (m *Machine) evalBinary(f *Frame, b *mir.BinaryOp) (Scalar, bool, error) {
	lop, err := m.evalOperand(f, b.Left)
	if err != nil {
		return Scalar{}, false, err
	}
	rop, err := m.evalOperand(f, b.Right)
	if err != nil {
		return Scalar{}, false, err
	}
	l, err := m.ReadScalar(lop)
	if err != nil {
		return Scalar{}, false, err
	}
	r, err := m.ReadScalar(rop)
	if err != nil {
		return Scalar{}, false, err
	}
	return m.binaryOp(b.Op, lop.Type, l, r, rop.Type)
}

// binaryOp applies op to two scalars of type lty (rty for the shift amount).
func (m *Machine) binaryOp(op mir.BinOp, lty types.TypeID, l, r Scalar, rty types.TypeID) (Scalar, bool, error) {
	if l.IsPtr() || r.IsPtr() {
		res, err := pointerBinaryOp(op, l, r)
		return ScalarFromBool(res), false, err
	}
	it := m.intTyOf(lty, int(l.Size))
	if op == mir.BinShl || op == mir.BinShr {
		res, overflow, _ := shiftOp(op, it, l.Bits, r.Bits)
		rt := m.intTyOf(rty, int(r.Size))
		if rt.Signed && signExtend(r.Bits, rt.Size) < 0 {
			overflow = true
		}
		return ScalarFromUint(res, it.Size), overflow, nil
	}
	if l.Size != r.Size {
		return Scalar{}, false, errorf(CodeTypeMismatch, "binary `%s` on mismatched operand sizes %d and %d", op.Symbol(), l.Size, r.Size)
	}
	res, overflow, err := binaryIntOp(op, it, l.Bits, r.Bits)
	if err != nil {
		return Scalar{}, false, err
	}
	if op.IsComparison() {
		return ScalarFromBool(res == 1), false, nil
	}
	return ScalarFromUint(res, it.Size), overflow, nil
}

func (m *Machine) evalUnary(f *Frame, u *mir.UnaryOp) (Scalar, error) {
	op, err := m.evalOperand(f, u.Operand)
	if err != nil {
		return Scalar{}, err
	}
	s, err := m.ReadScalar(op)
	if err != nil {
		return Scalar{}, err
	}
	bitsV, err := s.ToBits()
	if err != nil {
		return Scalar{}, err
	}
	tt, _ := m.Types.Lookup(m.Types.Reveal(op.Type))
	switch u.Op {
	case mir.UnNot:
		if tt.Kind == types.KindBool {
			return ScalarFromUint(bitsV^1, 1), nil
		}
		return ScalarFromUint(^bitsV, int(s.Size)), nil
	case mir.UnNeg:
		if tt.Kind != types.KindInt {
			return Scalar{}, errorf(CodeTypeMismatch, "cannot negate a value of type `%s`", m.Types.Name(op.Type))
		}
		return ScalarFromUint(-bitsV, int(s.Size)), nil
	default:
		Bugf("unknown unary operator %d", u.Op)
		return Scalar{}, nil
	}
}

func (m *Machine) evalCast(f *Frame, c *mir.CastOp, dst MPlace) (Immediate, error) {
	op, err := m.evalOperand(f, c.Value)
	if err != nil {
		return Immediate{}, err
	}
	target := m.monoType(f, c.TargetTy)
	tl, err := m.LayoutOf(target)
	if err != nil {
		return Immediate{}, err
	}
	if tl.Size != dst.Layout.Size {
		return Immediate{}, errorf(CodeTypeMismatch, "cast to `%s` stored into a place of type `%s`", m.Types.Name(target), m.Types.Name(dst.Type))
	}
	ps := m.PtrSize()
	switch c.Kind {
	case mir.CastIntToInt:
		s, err := m.ReadScalar(op)
		if err != nil {
			return Immediate{}, err
		}
		bitsV, err := s.ToBits()
		if err != nil {
			return Immediate{}, err
		}
		src := m.intTyOf(op.Type, int(s.Size))
		if src.Signed {
			bitsV = uint64(signExtend(bitsV, src.Size))
		}
		return ImmScalarOf(ScalarFromUint(bitsV, tl.Size)), nil

	case mir.CastPtrToPtr:
		imm, err := m.ReadImmediate(op)
		if err != nil {
			return Immediate{}, err
		}
		srcWide := imm.Kind == ImmPair
		dstWide := tl.Abi == layout.AbiScalarPair
		switch {
		case srcWide == dstWide:
			return imm, nil
		case srcWide && !dstWide:
			return ImmScalarOf(imm.A), nil
		default:
			return Immediate{}, errorf(CodeTypeMismatch, "cannot cast thin pointer `%s` to wide pointer `%s`", m.Types.Name(op.Type), m.Types.Name(target))
		}

	case mir.CastUnsize:
		s, err := m.ReadScalar(op)
		if err != nil {
			return Immediate{}, err
		}
		pointee, _ := m.Types.Pointee(m.Types.Reveal(op.Type))
		pt, _ := m.Types.Lookup(m.Types.Reveal(pointee))
		targetPointee, _ := m.Types.Pointee(m.Types.Reveal(target))
		tpt, _ := m.Types.Lookup(m.Types.Reveal(targetPointee))
		if pt.Kind != types.KindArray || tl.Abi != layout.AbiScalarPair || !m.unsizesTo(pt, tpt) {
			return Immediate{}, errorf(CodeTypeMismatch, "unsupported unsizing cast from `%s` to `%s`", m.Types.Name(op.Type), m.Types.Name(target))
		}
		return ImmPairOf(s, ScalarFromUint(uint64(pt.Count), ps)), nil

	case mir.CastPtrToAddr:
		s, err := m.ReadScalar(op)
		if err != nil {
			return Immediate{}, err
		}
		if s.IsPtr() {
			return Immediate{}, errorf(CodePointerToInt, "exposing pointers is not possible at compile-time")
		}
		return ImmScalarOf(ScalarFromUint(s.Bits, tl.Size)), nil

	default:
		Bugf("unknown cast kind %s", c.Kind)
		return Immediate{}, nil
	}
}

// unsizesTo reports whether an array pointee may become the unsized target:
// [T; N] to [T], or [u8; N] to str.
func (m *Machine) unsizesTo(arr, target types.Type) bool {
	elem := m.Types.Reveal(arr.Elem)
	switch target.Kind {
	case types.KindSlice:
		return elem == m.Types.Reveal(target.Elem)
	case types.KindStr:
		et, _ := m.Types.Lookup(elem)
		return et.Kind == types.KindUint && et.Width == types.Width8
	default:
		return false
	}
}

func (m *Machine) evalAggregate(f *Frame, a *mir.AggregateOp, dst MPlace) error {
	ty := m.Types.Reveal(m.monoType(f, a.Type))
	tt, _ := m.Types.Lookup(ty)
	if tt.Kind == types.KindArray {
		if uint64(len(a.Elems)) != uint64(tt.Count) {
			return errorf(CodeTypeMismatch, "array aggregate with %d elements for `%s`", len(a.Elems), m.Types.Name(ty))
		}
		for i, e := range a.Elems {
			op, err := m.evalOperand(f, e)
			if err != nil {
				return err
			}
			elem, err := m.indexPlace(dst, uint64(i))
			if err != nil {
				return err
			}
			if err := m.copyOp(op, elem); err != nil {
				return err
			}
		}
		return nil
	}
	if n := m.fieldCount(ty); n != len(a.Elems) {
		return errorf(CodeTypeMismatch, "aggregate with %d fields for `%s` which has %d", len(a.Elems), m.Types.Name(ty), n)
	}
	for i, e := range a.Elems {
		op, err := m.evalOperand(f, e)
		if err != nil {
			return err
		}
		field, err := m.fieldPlace(dst, i)
		if err != nil {
			return err
		}
		if err := m.copyOp(op, field); err != nil {
			return err
		}
	}
	return nil
}
