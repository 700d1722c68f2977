package layout

import (
	"fortio.org/safecast"

	"consteval/internal/types"
)

func zeroLayout() TypeLayout {
	return TypeLayout{Size: 0, Align: 1, Sized: true}
}

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	typesIn := e.Types
	if typesIn == nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	switch tt.Kind {
	case types.KindUnit:
		return zeroLayout(), nil

	case types.KindNever:
		l := zeroLayout()
		l.Abi = AbiUninhabited
		return l, nil

	case types.KindBool:
		return scalarLayoutBytes(1), nil

	case types.KindChar:
		return scalarLayoutBytes(4), nil

	case types.KindInt, types.KindUint:
		if tt.Width == types.WidthAny {
			return e.ptrLayout(), nil
		}
		return scalarLayoutBytes(int(tt.Width) / 8), nil

	case types.KindPointer, types.KindReference:
		if typesIn.IsWidePointer(id) {
			return e.widePtrLayout(), nil
		}
		if typesIn.HasParams(tt.Elem) {
			// *T is thin only when T is known to be sized.
			return zeroLayout(), &LayoutError{Kind: LayoutErrTooGeneric, Type: id}
		}
		return e.ptrLayout(), nil

	case types.KindStr:
		return TypeLayout{Size: 0, Align: 1, Stride: 1}, nil

	case types.KindSlice:
		el, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return zeroLayout(), err
		}
		return TypeLayout{Size: 0, Align: el.Align, Stride: roundUp(el.Size, el.Align)}, nil

	case types.KindArray:
		return e.arrayFixedLayout(id, tt.Elem, tt.Count, state)

	case types.KindTuple:
		info, _ := typesIn.TupleInfo(id)
		return e.fieldsLayout(id, info.Elems, state)

	case types.KindStruct:
		info, ok := typesIn.StructInfo(id)
		if !ok {
			return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
		}
		fields := make([]types.TypeID, len(info.Fields))
		for i, f := range info.Fields {
			fields[i] = f.Type
		}
		return e.fieldsLayout(id, fields, state)

	case types.KindCell:
		inner, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return zeroLayout(), err
		}
		inner.FieldOffsets = []int{0}
		return inner, nil

	case types.KindOpaque:
		if state.reveal != RevealAll {
			return zeroLayout(), &LayoutError{Kind: LayoutErrOpaqueHidden, Type: id}
		}
		info, _ := typesIn.OpaqueInfo(id)
		return e.layoutOf(info.Hidden, state)

	case types.KindParam:
		return zeroLayout(), &LayoutError{Kind: LayoutErrTooGeneric, Type: id}

	default:
		return zeroLayout(), &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize, ptrAlign := e.ptrSizeAlign()
	return TypeLayout{Size: ptrSize, Align: ptrAlign, Abi: AbiScalar, Sized: true, Stride: ptrSize}
}

func (e *LayoutEngine) widePtrLayout() TypeLayout {
	ptrSize, ptrAlign := e.ptrSizeAlign()
	return TypeLayout{
		Size:   2 * ptrSize,
		Align:  ptrAlign,
		Abi:    AbiScalarPair,
		Sized:  true,
		Stride: 2 * ptrSize,
		Pair:   PairShape{FirstSize: ptrSize, SecondOffset: ptrSize, SecondSize: ptrSize},
	}
}

func (e *LayoutEngine) ptrSizeAlign() (int, int) {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return ptrSize, ptrAlign
}

func scalarLayoutBytes(size int) TypeLayout {
	return TypeLayout{Size: size, Align: size, Abi: AbiScalar, Sized: true, Stride: size}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func (e *LayoutEngine) maxObjectSize() uint64 {
	ptrSize, _ := e.ptrSizeAlign()
	return maxObjectSizeFor(ptrSize)
}

func maxObjectSizeFor(ptrSize int) uint64 {
	if ptrSize <= 0 || ptrSize >= 8 {
		return 1 << 47
	}
	return 1<<(uint(ptrSize)*8-1) - 1
}

func (e *LayoutEngine) arrayFixedLayout(id, elem types.TypeID, length uint32, state *layoutState) (TypeLayout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return zeroLayout(), err
	}
	if !el.Sized {
		return zeroLayout(), &LayoutError{Kind: LayoutErrRecursiveUnsized, Type: id}
	}
	stride := roundUp(el.Size, el.Align)
	total := uint64(stride) * uint64(length)
	if total > e.maxObjectSize() {
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id}
	}
	size, convErr := safecast.Conv[int](total)
	if convErr != nil {
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id, Err: convErr}
	}
	abi := AbiAggregate
	if el.Abi == AbiUninhabited && length > 0 {
		abi = AbiUninhabited
	}
	return TypeLayout{
		Size:   size,
		Align:  el.Align,
		Abi:    abi,
		Sized:  true,
		Stride: stride,
	}, nil
}

// fieldsLayout lays fields out in declaration order with natural padding.
// Only the last field may be unsized, which makes the whole type unsized.
func (e *LayoutEngine) fieldsLayout(id types.TypeID, fields []types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if len(fields) == 0 {
		return zeroLayout(), nil
	}
	offsets := make([]int, len(fields))
	layouts := make([]TypeLayout, len(fields))
	size := 0
	align := 1
	sized := true
	uninhabited := false
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return zeroLayout(), err
		}
		if !fl.Sized && i != len(fields)-1 {
			return zeroLayout(), &LayoutError{Kind: LayoutErrRecursiveUnsized, Type: id}
		}
		fAlign := max(fl.Align, 1)
		size = roundUp(size, fAlign)
		offsets[i] = size
		size += fl.Size
		align = max(align, fAlign)
		sized = sized && fl.Sized
		uninhabited = uninhabited || fl.Abi == AbiUninhabited
		layouts[i] = fl
	}
	size = roundUp(size, align)
	if uint64(size) > e.maxObjectSize() {
		return zeroLayout(), &LayoutError{Kind: LayoutErrSizeOverflow, Type: id}
	}

	out := TypeLayout{
		Size:         size,
		Align:        align,
		Abi:          AbiAggregate,
		Sized:        sized,
		Stride:       size,
		FieldOffsets: offsets,
	}
	switch {
	case uninhabited:
		out.Abi = AbiUninhabited
	case sized:
		// A newtype around a scalar or scalar pair keeps the inner representation.
		if inner, ok := soleNonZST(layouts); ok && (inner.Abi == AbiScalar || inner.Abi == AbiScalarPair) && inner.Size == size {
			out.Abi = inner.Abi
			out.Pair = inner.Pair
		}
	}
	return out, nil
}

func soleNonZST(layouts []TypeLayout) (TypeLayout, bool) {
	found := -1
	for i, l := range layouts {
		if l.IsZST() {
			continue
		}
		if found >= 0 {
			return TypeLayout{}, false
		}
		found = i
	}
	if found < 0 {
		return TypeLayout{}, false
	}
	return layouts[found], true
}
