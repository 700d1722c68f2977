package interp

import (
	"errors"
	"fmt"

	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/types"
)

// operandType returns the (monomorphic) static type of an operand.
func (m *Machine) operandType(f *Frame, op mir.Operand) types.TypeID {
	if op.Kind == mir.OperandConst {
		return m.monoType(f, op.Const.Type)
	}
	return m.placeType(f, op.Place)
}

func (m *Machine) placeType(f *Frame, p mir.Place) types.TypeID {
	ty := f.Locals[p.Local].Type
	if p.Local == mir.ReturnLocal {
		ty = f.ReturnPlace.Type
	}
	for _, proj := range p.Proj {
		switch proj.Kind {
		case mir.PlaceProjDeref:
			ty, _ = m.Types.Pointee(m.Types.Reveal(ty))
		case mir.PlaceProjField:
			ty, _ = m.fieldType(ty, proj.FieldIdx)
		case mir.PlaceProjIndex, mir.PlaceProjConstIndex:
			ty = m.elemType(ty)
		}
	}
	return ty
}

func (m *Machine) evalOperand(f *Frame, op mir.Operand) (OpTy, error) {
	switch op.Kind {
	case mir.OperandCopy, mir.OperandMove:
		mp, err := m.evalPlace(f, op.Place)
		if err != nil {
			return OpTy{}, err
		}
		return PlaceOp(mp), nil
	case mir.OperandConst:
		return m.evalConst(f, op.Const)
	default:
		Bugf("unknown operand kind %d", op.Kind)
		return OpTy{}, nil
	}
}

func (m *Machine) evalConst(f *Frame, c mir.Const) (OpTy, error) {
	ty := m.monoType(f, c.Type)
	lay, err := m.LayoutOf(ty)
	if err != nil {
		return OpTy{}, err
	}
	switch c.Kind {
	case mir.ConstScalar:
		if lay.Abi != layout.AbiScalar {
			return OpTy{}, errorf(CodeTypeMismatch, "scalar constant of non-scalar type `%s`", m.Types.Name(ty))
		}
		return ImmOp(ImmScalarOf(ScalarFromUint(c.Bits, lay.Size)), ty, lay), nil

	case mir.ConstZeroSized:
		if !lay.IsZST() {
			return OpTy{}, errorf(CodeTypeMismatch, "zero-sized constant of type `%s` with size %d", m.Types.Name(ty), lay.Size)
		}
		return PlaceOp(MPlace{Ptr: danglingFor(lay.Align), Type: ty, Layout: lay}), nil

	case mir.ConstStr:
		ptr := m.Mem.AllocateBytes([]byte(c.Str), 1, mir.Not)
		ps := m.PtrSize()
		imm := ImmPairOf(ScalarFromPointer(ptr, ps), ScalarFromUint(uint64(len(c.Str)), ps))
		return ImmOp(imm, ty, lay), nil

	case mir.ConstUnevaluated:
		inst := m.monoInstance(f, c.Item)
		id, err := m.host.EvalToAllocation(inst, mir.NoPromoted)
		if err != nil {
			return OpTy{}, m.referencedFailed(err, m.Program.InstanceString(inst))
		}
		return m.constPlace(id, ty, lay), nil

	case mir.ConstPromoted:
		id, err := m.host.EvalToAllocation(f.Instance, c.Promoted)
		if err != nil {
			return OpTy{}, m.referencedFailed(err, f.Name+"::"+c.Promoted.String())
		}
		return m.constPlace(id, ty, lay), nil

	case mir.ConstStaticRef:
		id := m.Mem.Globals().StaticAllocID(c.Static)
		return ImmOp(ImmScalarOf(ScalarFromPointer(Pointer{Prov: id}, m.PtrSize())), ty, lay), nil

	default:
		Bugf("unknown constant kind %d", c.Kind)
		return OpTy{}, nil
	}
}

func (m *Machine) constPlace(id AllocID, ty types.TypeID, lay layout.TypeLayout) OpTy {
	if lay.IsZST() || id == NoAlloc {
		return PlaceOp(MPlace{Ptr: danglingFor(lay.Align), Type: ty, Layout: lay})
	}
	return PlaceOp(MPlace{Ptr: Pointer{Prov: id}, Type: ty, Layout: lay})
}

// referencedFailed turns the failure of another constant into an error of
// this evaluation. Too-generic failures keep their code.
func (m *Machine) referencedFailed(err error, what string) error {
	var ie *InterpError
	if errors.As(err, &ie) && ie.Code == CodeTooGeneric {
		return &InterpError{Code: CodeTooGeneric, Message: ie.Message, Cause: err}
	}
	return &InterpError{Code: CodeReferencedFailed, Message: fmt.Sprintf("evaluation of `%s` failed", what), Cause: err}
}

// ReadImmediate reads a scalar or scalar-pair operand.
func (m *Machine) ReadImmediate(op OpTy) (Immediate, error) {
	if op.Kind == OpImmediate {
		return op.Imm, nil
	}
	return m.readImmediatePlace(op.Place)
}

// TryReadImmediate reads the operand when its ABI allows it; ok is false for
// aggregates.
func (m *Machine) TryReadImmediate(op OpTy) (Immediate, bool, error) {
	if op.Kind == OpImmediate {
		return op.Imm, true, nil
	}
	switch op.Layout.Abi {
	case layout.AbiScalar, layout.AbiScalarPair:
		imm, err := m.readImmediatePlace(op.Place)
		return imm, err == nil, err
	default:
		return Immediate{}, false, nil
	}
}

func (m *Machine) readImmediatePlace(mp MPlace) (Immediate, error) {
	l := mp.Layout
	switch l.Abi {
	case layout.AbiScalar:
		s, err := m.Mem.ReadScalar(mp.Ptr, uint64(l.Size), uint64(l.Align))
		if err != nil {
			return Immediate{}, err
		}
		return ImmScalarOf(s), nil
	case layout.AbiScalarPair:
		a, err := m.Mem.ReadScalar(mp.Ptr, uint64(l.Pair.FirstSize), uint64(l.Align))
		if err != nil {
			return Immediate{}, err
		}
		b, err := m.Mem.ReadScalar(mp.Ptr.Add(uint64(l.Pair.SecondOffset)), uint64(l.Pair.SecondSize), 1)
		if err != nil {
			return Immediate{}, err
		}
		return ImmPairOf(a, b), nil
	case layout.AbiUninhabited:
		return Immediate{}, errorf(CodeValidationNever, "using a value of uninhabited type `%s`", m.Types.Name(mp.Type))
	default:
		Bugf("reading an immediate of aggregate type %s", m.Types.Name(mp.Type))
		return Immediate{}, nil
	}
}

// ReadScalar reads a single-scalar operand.
func (m *Machine) ReadScalar(op OpTy) (Scalar, error) {
	imm, err := m.ReadImmediate(op)
	if err != nil {
		return Scalar{}, err
	}
	switch imm.Kind {
	case ImmScalar:
		return imm.A, nil
	case ImmUninit:
		return Scalar{}, errorf(CodeUninitBytes, "using uninitialized data, but this operation requires initialized memory")
	default:
		Bugf("expected a scalar, got a scalar pair of type %s", m.Types.Name(op.Type))
		return Scalar{}, nil
	}
}

func (m *Machine) readScalarAt(mp MPlace) (Scalar, error) {
	return m.ReadScalar(PlaceOp(mp))
}

// writeImmediate stores imm into dst, which must have scalar or pair ABI.
func (m *Machine) writeImmediate(imm Immediate, dst MPlace) error {
	l := dst.Layout
	if l.IsZST() {
		return nil
	}
	switch imm.Kind {
	case ImmUninit:
		return m.Mem.WriteUninit(dst.Ptr, uint64(l.Size), uint64(l.Align))
	case ImmScalar:
		if int(imm.A.Size) != l.Size {
			Bugf("writing a %d-byte scalar into %s (%d bytes)", imm.A.Size, m.Types.Name(dst.Type), l.Size)
		}
		return m.Mem.WriteScalar(dst.Ptr, imm.A, uint64(l.Align))
	case ImmPair:
		if l.Abi != layout.AbiScalarPair {
			Bugf("writing a scalar pair into %s", m.Types.Name(dst.Type))
		}
		if err := m.Mem.WriteScalar(dst.Ptr, imm.A, uint64(l.Align)); err != nil {
			return err
		}
		return m.Mem.WriteScalar(dst.Ptr.Add(uint64(l.Pair.SecondOffset)), imm.B, 1)
	default:
		Bugf("unknown immediate kind %d", imm.Kind)
		return nil
	}
}

// copyOp stores the value of op into dst.
func (m *Machine) copyOp(op OpTy, dst MPlace) error {
	if dst.Layout.IsZST() {
		return nil
	}
	switch op.Kind {
	case OpImmediate:
		return m.writeImmediate(op.Imm, dst)
	case OpPlace:
		if op.Layout.Size != dst.Layout.Size {
			return errorf(CodeTypeMismatch, "copying `%s` (%d bytes) into `%s` (%d bytes)",
				m.Types.Name(op.Type), op.Layout.Size, m.Types.Name(dst.Type), dst.Layout.Size)
		}
		align := uint64(min(op.Layout.Align, dst.Layout.Align))
		return m.Mem.Copy(op.Place.Ptr, dst.Ptr, uint64(dst.Layout.Size), align)
	default:
		Bugf("unknown operand kind %d", op.Kind)
		return nil
	}
}
