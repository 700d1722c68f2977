package interp

import (
	"hash/fnv"
	"slices"

	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/types"
)

// NullaryIntrinsics lists the intrinsics that fold without a body.
var NullaryIntrinsics = []string{"size_of", "min_align_of", "pref_align_of", "needs_drop", "type_name", "type_id"}

// IsNullaryIntrinsic reports whether name folds from its type arguments alone.
func IsNullaryIntrinsic(name string) bool {
	return slices.Contains(NullaryIntrinsics, name)
}

// EvalNullaryIntrinsic folds an intrinsic that takes no value arguments.
func EvalNullaryIntrinsic(name string, args []types.TypeID, in *types.Interner, layouts LayoutOracle, target layout.Target) (ConstValue, error) {
	if len(args) != 1 {
		return ConstValue{}, errorf(CodeTypeMismatch, "intrinsic `%s` expects 1 type argument, got %d", name, len(args))
	}
	ty := args[0]
	if in.HasParams(ty) {
		return ConstValue{}, errorf(CodeTooGeneric, "intrinsic `%s` on generic type `%s`", name, in.Name(ty))
	}
	ps := target.PtrSize
	layoutOf := func() (layout.TypeLayout, error) {
		l, err := layouts.LayoutOf(ty, layout.RevealAll)
		if err != nil {
			if layout.TooGeneric(err) {
				return l, errorf(CodeTooGeneric, "the type `%s` has an unknown layout", in.Name(ty))
			}
			return l, errorf(CodeLayout, "unable to compute the layout of `%s`: %v", in.Name(ty), err)
		}
		return l, nil
	}
	switch name {
	case "size_of":
		l, err := layoutOf()
		if err != nil {
			return ConstValue{}, err
		}
		if !l.Sized {
			return ConstValue{}, errorf(CodeTypeMismatch, "`size_of` on unsized type `%s`", in.Name(ty))
		}
		return ScalarValue(ScalarFromUint(uint64(l.Size), ps)), nil
	case "min_align_of", "pref_align_of":
		l, err := layoutOf()
		if err != nil {
			return ConstValue{}, err
		}
		return ScalarValue(ScalarFromUint(uint64(l.Align), ps)), nil
	case "needs_drop":
		return ScalarValue(ScalarFromBool(false)), nil
	case "type_name":
		n := in.Name(ty)
		return SliceValue(AllocationFromBytes([]byte(n), 1, mir.Not, ps), uint64(len(n))), nil
	case "type_id":
		h := fnv.New64a()
		h.Write([]byte(in.Name(in.Reveal(ty))))
		return ScalarValue(ScalarFromUint(h.Sum64(), 8)), nil
	default:
		return ConstValue{}, errorf(CodeUnknownIntrinsic, "`%s` is not a nullary intrinsic", name)
	}
}

func (m *Machine) callIntrinsic(def *mir.Def, inst mir.Instance, args []OpTy, dest MPlace) error {
	name := def.Intrinsic
	if name == "" {
		name = def.Name
	}
	if IsNullaryIntrinsic(name) {
		if len(args) != 0 {
			return errorf(CodeTypeMismatch, "intrinsic `%s` takes no arguments", name)
		}
		v, err := EvalNullaryIntrinsic(name, inst.Args, m.Types, m.Layouts, m.Target)
		if err != nil {
			return err
		}
		switch v.Kind {
		case ConstScalar:
			return m.writeImmediate(ImmScalarOf(v.Scalar), dest)
		case ConstSlice:
			ptr := m.Mem.AllocateBytes(v.Data.Bytes, 1, mir.Not)
			ps := m.PtrSize()
			return m.writeImmediate(ImmPairOf(ScalarFromPointer(ptr, ps), ScalarFromUint(v.Meta, ps)), dest)
		default:
			Bugf("intrinsic %s folded to %s", name, v.Kind)
		}
	}
	switch name {
	case "panic":
		if len(args) != 1 {
			return errorf(CodeTypeMismatch, "`panic` takes one `&str` argument")
		}
		msg, err := m.readStr(args[0])
		if err != nil {
			return err
		}
		return errorf(CodePanicExplicit, "evaluation panicked: %s", msg)
	case "assume":
		if len(args) != 1 {
			return errorf(CodeTypeMismatch, "`assume` takes one `bool` argument")
		}
		s, err := m.ReadScalar(args[0])
		if err != nil {
			return err
		}
		b, err := s.ToBool()
		if err != nil {
			return err
		}
		if !b {
			return errorf(CodeAssumeFalse, "`assume` called with `false`")
		}
		return nil
	case "unreachable":
		return errorf(CodeUnreachable, "entering unreachable code")
	default:
		return errorf(CodeUnknownIntrinsic, "calling the intrinsic `%s` is not supported during const eval", name)
	}
}

// readStr reads the contents of a &str operand.
func (m *Machine) readStr(op OpTy) (string, error) {
	mp, err := m.DerefOperand(op)
	if err != nil {
		return "", err
	}
	if !mp.HasMeta {
		return "", errorf(CodeTypeMismatch, "expected a `&str`, got `%s`", m.Types.Name(op.Type))
	}
	b, err := m.Mem.ReadBytes(mp.Ptr, mp.Meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
