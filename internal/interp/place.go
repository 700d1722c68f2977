package interp

import (
	"consteval/internal/mir"
	"consteval/internal/types"
)

func (m *Machine) localPlace(f *Frame, l mir.LocalID) (MPlace, error) {
	if l < 0 || int(l) >= len(f.Locals) {
		Bugf("%s: local L%d out of range", f.Name, l)
	}
	st := &f.Locals[l]
	if l == mir.ReturnLocal {
		return f.ReturnPlace, nil
	}
	if !st.Live {
		return MPlace{}, errorf(CodeDeadLocal, "accessing a dead local variable L%d", l)
	}
	return MPlace{Ptr: st.Ptr, Type: st.Type, Layout: st.Layout}, nil
}

// evalPlace resolves a place expression to memory.
func (m *Machine) evalPlace(f *Frame, p mir.Place) (MPlace, error) {
	mp, err := m.localPlace(f, p.Local)
	if err != nil {
		return MPlace{}, err
	}
	for _, proj := range p.Proj {
		mp, err = m.project(f, mp, proj)
		if err != nil {
			return MPlace{}, err
		}
	}
	return mp, nil
}

func (m *Machine) project(f *Frame, mp MPlace, proj mir.PlaceProj) (MPlace, error) {
	switch proj.Kind {
	case mir.PlaceProjDeref:
		return m.derefPlace(mp)
	case mir.PlaceProjField:
		return m.fieldPlace(mp, proj.FieldIdx)
	case mir.PlaceProjIndex:
		idxPlace, err := m.localPlace(f, proj.IndexLocal)
		if err != nil {
			return MPlace{}, err
		}
		s, err := m.readScalarAt(idxPlace)
		if err != nil {
			return MPlace{}, err
		}
		idx, err := s.ToBits()
		if err != nil {
			return MPlace{}, err
		}
		return m.indexPlace(mp, idx)
	case mir.PlaceProjConstIndex:
		n, err := m.placeLen(mp)
		if err != nil {
			return MPlace{}, err
		}
		idx := proj.Offset
		if proj.FromEnd {
			if proj.Offset > n {
				return MPlace{}, errorf(CodeOutOfBounds, "indexing out of bounds: the len is %d but the index is -%d", n, proj.Offset)
			}
			idx = n - proj.Offset
		}
		return m.indexPlace(mp, idx)
	default:
		Bugf("unknown projection kind %d", proj.Kind)
		return MPlace{}, nil
	}
}

// DerefOperand turns a reference or raw pointer value into the place it points to.
func (m *Machine) DerefOperand(op OpTy) (MPlace, error) {
	pointee, ok := m.Types.Pointee(op.Type)
	if !ok {
		Bugf("deref of non-pointer type %s", m.Types.Name(op.Type))
	}
	imm, err := m.ReadImmediate(op)
	if err != nil {
		return MPlace{}, err
	}
	lay, err := m.LayoutOf(pointee)
	if err != nil {
		return MPlace{}, err
	}
	out := MPlace{Type: pointee, Layout: lay}
	switch imm.Kind {
	case ImmScalar:
		out.Ptr, err = imm.A.ToPointer(m.PtrSize())
	case ImmPair:
		out.Ptr, err = imm.A.ToPointer(m.PtrSize())
		if err == nil {
			out.Meta, err = imm.B.ToTargetUsize(m.PtrSize())
			out.HasMeta = true
		}
	default:
		return MPlace{}, errorf(CodeUninitBytes, "using uninitialized data, but this operation requires initialized memory")
	}
	return out, err
}

func (m *Machine) derefPlace(mp MPlace) (MPlace, error) {
	return m.DerefOperand(PlaceOp(mp))
}

// FieldPlace projects to field idx of a tuple, struct or cell.
func (m *Machine) FieldPlace(mp MPlace, idx int) (MPlace, error) {
	return m.fieldPlace(mp, idx)
}

func (m *Machine) fieldPlace(mp MPlace, idx int) (MPlace, error) {
	fty, ok := m.fieldType(mp.Type, idx)
	if !ok {
		Bugf("type %s has no field %d", m.Types.Name(mp.Type), idx)
	}
	if idx >= len(mp.Layout.FieldOffsets) {
		Bugf("layout of %s has no field %d", m.Types.Name(mp.Type), idx)
	}
	lay, err := m.LayoutOf(fty)
	if err != nil {
		return MPlace{}, err
	}
	out := MPlace{
		Ptr:    mp.Ptr.Add(uint64(mp.Layout.FieldOffsets[idx])),
		Type:   fty,
		Layout: lay,
	}
	if !lay.Sized {
		out.Meta, out.HasMeta = mp.Meta, mp.HasMeta
	}
	return out, nil
}

// fieldType returns the type of field idx, revealing opaque types.
func (m *Machine) fieldType(ty types.TypeID, idx int) (types.TypeID, bool) {
	ty = m.Types.Reveal(ty)
	tt, ok := m.Types.Lookup(ty)
	if !ok {
		return types.NoTypeID, false
	}
	switch tt.Kind {
	case types.KindTuple:
		info, _ := m.Types.TupleInfo(ty)
		if idx < 0 || idx >= len(info.Elems) {
			return types.NoTypeID, false
		}
		return info.Elems[idx], true
	case types.KindStruct:
		info, _ := m.Types.StructInfo(ty)
		if idx < 0 || idx >= len(info.Fields) {
			return types.NoTypeID, false
		}
		return info.Fields[idx].Type, true
	case types.KindCell:
		return tt.Elem, idx == 0
	default:
		return types.NoTypeID, false
	}
}

// fieldCount returns the number of fields of a tuple, struct or cell.
func (m *Machine) fieldCount(ty types.TypeID) int {
	ty = m.Types.Reveal(ty)
	tt, _ := m.Types.Lookup(ty)
	switch tt.Kind {
	case types.KindTuple:
		info, _ := m.Types.TupleInfo(ty)
		return len(info.Elems)
	case types.KindStruct:
		info, _ := m.Types.StructInfo(ty)
		return len(info.Fields)
	case types.KindCell:
		return 1
	default:
		return 0
	}
}

func (m *Machine) placeLen(mp MPlace) (uint64, error) {
	tt, _ := m.Types.Lookup(m.Types.Reveal(mp.Type))
	switch tt.Kind {
	case types.KindArray:
		return uint64(tt.Count), nil
	case types.KindSlice, types.KindStr:
		if !mp.HasMeta {
			Bugf("unsized place of type %s without length", m.Types.Name(mp.Type))
		}
		return mp.Meta, nil
	default:
		Bugf("length of non-sequence type %s", m.Types.Name(mp.Type))
		return 0, nil
	}
}

// IndexPlace projects to element idx of an array, slice or str.
func (m *Machine) IndexPlace(mp MPlace, idx uint64) (MPlace, error) {
	return m.indexPlace(mp, idx)
}

func (m *Machine) indexPlace(mp MPlace, idx uint64) (MPlace, error) {
	n, err := m.placeLen(mp)
	if err != nil {
		return MPlace{}, err
	}
	if idx >= n {
		return MPlace{}, errorf(CodeOutOfBounds, "indexing out of bounds: the len is %d but the index is %d", n, idx)
	}
	elem := m.elemType(mp.Type)
	lay, err := m.LayoutOf(elem)
	if err != nil {
		return MPlace{}, err
	}
	stride := uint64(mp.Layout.Stride)
	if stride == 0 {
		stride = uint64(lay.Size)
	}
	return MPlace{Ptr: mp.Ptr.Add(idx * stride), Type: elem, Layout: lay}, nil
}

func (m *Machine) elemType(ty types.TypeID) types.TypeID {
	tt, _ := m.Types.Lookup(m.Types.Reveal(ty))
	if tt.Kind == types.KindStr {
		return m.Types.Builtins().U8
	}
	return tt.Elem
}
