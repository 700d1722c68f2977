package types

import (
	"fmt"
	"strings"
)

// Name renders a type the way source code spells it.
func (in *Interner) Name(id TypeID) string {
	var sb strings.Builder
	in.writeName(&sb, id, 0)
	return sb.String()
}

func (in *Interner) writeName(sb *strings.Builder, id TypeID, depth int) {
	if depth > 32 {
		sb.WriteString("...")
		return
	}
	tt, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	switch tt.Kind {
	case KindUnit:
		sb.WriteString("()")
	case KindNever:
		sb.WriteString("!")
	case KindBool, KindChar, KindStr:
		sb.WriteString(tt.Kind.String())
	case KindInt:
		writeIntName(sb, 'i', tt.Width)
	case KindUint:
		writeIntName(sb, 'u', tt.Width)
	case KindSlice:
		sb.WriteByte('[')
		in.writeName(sb, tt.Elem, depth+1)
		sb.WriteByte(']')
	case KindArray:
		sb.WriteByte('[')
		in.writeName(sb, tt.Elem, depth+1)
		fmt.Fprintf(sb, "; %d]", tt.Count)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		sb.WriteByte('(')
		for i, e := range info.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			in.writeName(sb, e, depth+1)
		}
		if len(info.Elems) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindStruct:
		info, _ := in.StructInfo(id)
		sb.WriteString(info.Name)
	case KindReference:
		sb.WriteByte('&')
		if tt.Mutable {
			sb.WriteString("mut ")
		}
		in.writeName(sb, tt.Elem, depth+1)
	case KindPointer:
		if tt.Mutable {
			sb.WriteString("*mut ")
		} else {
			sb.WriteString("*const ")
		}
		in.writeName(sb, tt.Elem, depth+1)
	case KindCell:
		sb.WriteString("Cell<")
		in.writeName(sb, tt.Elem, depth+1)
		sb.WriteByte('>')
	case KindOpaque:
		info, _ := in.OpaqueInfo(id)
		sb.WriteString("impl ")
		sb.WriteString(info.Name)
	case KindParam:
		info, _ := in.ParamInfo(id)
		sb.WriteString(info.Name)
	default:
		sb.WriteString(tt.Kind.String())
	}
}

func writeIntName(sb *strings.Builder, prefix byte, w Width) {
	sb.WriteByte(prefix)
	if w == WidthAny {
		sb.WriteString("size")
		return
	}
	fmt.Fprintf(sb, "%d", w)
}
