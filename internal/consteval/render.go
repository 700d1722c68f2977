package consteval

import (
	"fmt"
	"strconv"
	"strings"

	"consteval/internal/interp"
	"consteval/internal/layout"
	"consteval/internal/types"
)

const maxRenderDepth = 4

// Render prints v as a value of type ty, reading interned memory for
// indirect values.
func (e *Engine) Render(v interp.ConstValue, ty types.TypeID) string {
	ty = e.types.Reveal(ty)
	switch v.Kind {
	case interp.ConstZeroSized:
		return e.renderZST(ty)
	case interp.ConstScalar:
		return e.renderScalar(v.Scalar, ty, 0)
	case interp.ConstSlice:
		return "&" + e.renderSliceData(v.Data, 0, v.Meta, ty, 0)
	case interp.ConstIndirect:
		a, ok := e.globals.Get(v.Alloc)
		if !ok {
			return v.String()
		}
		return e.renderMem(a, v.Offset, ty, 0)
	default:
		return v.String()
	}
}

func (e *Engine) renderZST(ty types.TypeID) string {
	tt, _ := e.types.Lookup(ty)
	switch tt.Kind {
	case types.KindArray:
		return "[]"
	case types.KindStruct:
		info, _ := e.types.StructInfo(ty)
		return info.Name + " {}"
	default:
		return "()"
	}
}

func (e *Engine) renderScalar(s interp.Scalar, ty types.TypeID, depth int) string {
	tt, _ := e.types.Lookup(ty)
	if s.IsPtr() {
		p := interp.Pointer{Prov: s.Prov, Offset: s.Bits}
		if tt.Kind == types.KindReference && depth < maxRenderDepth {
			if a, ok := e.globals.Get(p.Prov); ok {
				return "&" + e.renderMem(a, p.Offset, e.types.Reveal(tt.Elem), depth+1)
			}
		}
		return p.String()
	}
	switch tt.Kind {
	case types.KindBool:
		if b, err := s.ToBool(); err == nil {
			return strconv.FormatBool(b)
		}
	case types.KindChar:
		if r, err := s.ToChar(); err == nil {
			return strconv.QuoteRune(r)
		}
	case types.KindInt:
		if n, err := s.ToInt(); err == nil {
			return fmt.Sprintf("%d_%s", n, e.types.Name(ty))
		}
	case types.KindUint:
		return fmt.Sprintf("%d_%s", s.Bits, e.types.Name(ty))
	}
	return s.String()
}

func (e *Engine) renderMem(a *interp.Allocation, off uint64, ty types.TypeID, depth int) string {
	lay, err := e.layouts.LayoutOf(ty, layout.RevealAll)
	if err != nil || !lay.Sized {
		return "{unrenderable " + e.types.Name(ty) + "}"
	}
	if lay.IsZST() {
		return e.renderZST(ty)
	}
	order := e.opts.Target.ByteOrder()
	tt, _ := e.types.Lookup(ty)
	switch lay.Abi {
	case layout.AbiScalar:
		s, err := a.ReadScalar(order, off, uint64(lay.Size))
		if err != nil {
			return "__"
		}
		return e.renderScalar(s, ty, depth)
	case layout.AbiScalarPair:
		if e.types.IsWidePointer(ty) {
			data, err := a.ReadScalar(order, off, uint64(lay.Pair.FirstSize))
			if err != nil {
				return "__"
			}
			n, err := a.ReadScalar(order, off+uint64(lay.Pair.SecondOffset), uint64(lay.Pair.SecondSize))
			if err != nil || n.IsPtr() {
				return "__"
			}
			target, ok := e.globals.Get(data.Prov)
			if !ok || depth >= maxRenderDepth {
				return interp.Pointer{Prov: data.Prov, Offset: data.Bits}.String()
			}
			return "&" + e.renderSliceData(target, data.Bits, n.Bits, ty, depth+1)
		}
	}
	switch tt.Kind {
	case types.KindArray:
		elems := make([]string, 0, tt.Count)
		for i := range uint64(tt.Count) {
			elems = append(elems, e.renderMem(a, off+i*uint64(lay.Stride), tt.Elem, depth))
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case types.KindTuple:
		info, _ := e.types.TupleInfo(ty)
		elems := make([]string, len(info.Elems))
		for i, el := range info.Elems {
			elems[i] = e.renderMem(a, off+uint64(lay.FieldOffsets[i]), el, depth)
		}
		if len(elems) == 1 {
			return "(" + elems[0] + ",)"
		}
		return "(" + strings.Join(elems, ", ") + ")"
	case types.KindStruct:
		info, _ := e.types.StructInfo(ty)
		fields := make([]string, len(info.Fields))
		for i, f := range info.Fields {
			fields[i] = f.Name + ": " + e.renderMem(a, off+uint64(lay.FieldOffsets[i]), f.Type, depth)
		}
		return info.Name + " { " + strings.Join(fields, ", ") + " }"
	case types.KindCell:
		return "Cell(" + e.renderMem(a, off, tt.Elem, depth) + ")"
	}
	return fmt.Sprintf("{%s at %#x}", e.types.Name(ty), off)
}

// renderSliceData prints n elements of the slice-like reference type ty
// starting at off.
func (e *Engine) renderSliceData(a *interp.Allocation, off, n uint64, ty types.TypeID, depth int) string {
	elem, _ := e.types.Pointee(ty)
	elem = e.types.Reveal(elem)
	tt, _ := e.types.Lookup(elem)
	if tt.Kind == types.KindStr {
		if a == nil || off+n > a.Size() {
			return "<invalid str>"
		}
		return strconv.Quote(string(a.Bytes[off : off+n]))
	}
	el := tt.Elem
	lay, err := e.layouts.LayoutOf(el, layout.RevealAll)
	if err != nil || a == nil {
		return "[..]"
	}
	parts := make([]string, 0, n)
	for i := range n {
		parts = append(parts, e.renderMem(a, off+i*uint64(lay.Size), el, depth))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
