package consteval

import (
	"consteval/internal/interp"
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/types"
)

// ToConstant converts an evaluated operand into a portable value.
//
// Scalars are always read out of memory. Wide references to str or slices
// whose data pointer is at the start of its allocation become Slice values
// sharing that allocation; every other aggregate stays Indirect. With
// forDiagnostics set, values that cannot be read are returned as they are
// instead of panicking.
func ToConstant(m *interp.Machine, op interp.OpTy, forDiagnostics bool) interp.ConstValue {
	if op.Layout.IsZST() {
		return interp.ZeroSizedValue()
	}

	switch op.Layout.Abi {
	case layout.AbiScalar:
		imm, err := m.ReadImmediate(op)
		switch {
		case err == nil && imm.Kind == interp.ImmScalar:
			op = interp.ImmOp(imm, op.Type, op.Layout)
		case !forDiagnostics:
			interp.Bugf("reading validated scalar constant of type %s: %v", m.Types.Name(op.Type), err)
		}
	case layout.AbiScalarPair:
		if op.Kind == interp.OpPlace && sliceLike(m.Types, op.Type) {
			imm, err := m.ReadImmediate(op)
			if err == nil && imm.Kind == interp.ImmPair && imm.A.Bits == 0 {
				op = interp.ImmOp(imm, op.Type, op.Layout)
			}
		}
	}

	switch op.Kind {
	case interp.OpPlace:
		return interp.IndirectValue(op.Place.Ptr.Prov, op.Place.Ptr.Offset)
	case interp.OpImmediate:
		switch op.Imm.Kind {
		case interp.ImmScalar:
			return interp.ScalarValue(op.Imm.A)
		case interp.ImmPair:
			return slicePair(m, op, forDiagnostics)
		default:
			interp.Bugf("uninitialized immediate of type %s reached materialization", m.Types.Name(op.Type))
		}
	}
	interp.Bugf("unknown operand kind %d", op.Kind)
	return interp.ConstValue{}
}

func slicePair(m *interp.Machine, op interp.OpTy, forDiagnostics bool) interp.ConstValue {
	if !sliceLike(m.Types, op.Type) {
		interp.Bugf("scalar pair of non slice-like type %s", m.Types.Name(op.Type))
	}
	ps := m.PtrSize()
	ptr, err := op.Imm.A.ToPointer(ps)
	if err != nil {
		interp.Bugf("slice data of type %s: %v", m.Types.Name(op.Type), err)
	}
	if ptr.Offset != 0 {
		if forDiagnostics {
			return interp.IndirectValue(ptr.Prov, ptr.Offset)
		}
		interp.Bugf("slice data pointer %s does not start its allocation", ptr)
	}
	n, err := op.Imm.B.ToTargetUsize(ps)
	if err != nil {
		interp.Bugf("slice length of type %s: %v", m.Types.Name(op.Type), err)
	}
	if !ptr.HasProv() {
		return interp.SliceValue(interp.AllocationFromBytes(nil, 1, mir.Not, ps), n)
	}
	data, err := m.Mem.Get(ptr.Prov)
	if err != nil {
		if forDiagnostics {
			return interp.IndirectValue(ptr.Prov, ptr.Offset)
		}
		interp.Bugf("slice data %s: %v", ptr, err)
	}
	return interp.SliceValue(data, n)
}

// sliceLike reports whether ty is a reference or raw pointer to str or a
// slice, looking through nested raw pointers.
func sliceLike(in *types.Interner, ty types.TypeID) bool {
	elem, ok := in.Pointee(in.Reveal(ty))
	if !ok {
		return false
	}
	for range 16 {
		elem = in.Reveal(elem)
		if in.IsUnsized(elem) {
			return true
		}
		tt, found := in.Lookup(elem)
		if !found || tt.Kind != types.KindPointer {
			return false
		}
		elem = tt.Elem
	}
	return false
}
