package types

// HasParams reports whether the type mentions a generic parameter anywhere.
func (in *Interner) HasParams(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindParam:
		return true
	case KindSlice, KindArray, KindReference, KindPointer, KindCell:
		return in.HasParams(tt.Elem)
	case KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok {
			return false
		}
		for _, e := range info.Elems {
			if in.HasParams(e) {
				return true
			}
		}
	}
	return false
}

// Subst replaces every generic parameter with the matching entry of args.
// Parameters past the end of args are left in place, which keeps the
// result generic.
func (in *Interner) Subst(id TypeID, args []TypeID) TypeID {
	if len(args) == 0 || !in.HasParams(id) {
		return id
	}
	tt := in.MustLookup(id)
	switch tt.Kind {
	case KindParam:
		info, ok := in.ParamInfo(id)
		if !ok || int(info.Index) >= len(args) || args[info.Index] == NoTypeID {
			return id
		}
		return args[info.Index]
	case KindSlice, KindArray, KindReference, KindPointer, KindCell:
		elem := in.Subst(tt.Elem, args)
		if elem == tt.Elem {
			return id
		}
		tt.Elem = elem
		return in.Intern(tt)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		elems := make([]TypeID, len(info.Elems))
		for i, e := range info.Elems {
			elems[i] = in.Subst(e, args)
		}
		return in.RegisterTuple(elems)
	default:
		return id
	}
}

// Reveal returns the hidden type of an opaque alias, unwrapping nested aliases.
func (in *Interner) Reveal(id TypeID) TypeID {
	for range 64 {
		info, ok := in.OpaqueInfo(id)
		if !ok {
			return id
		}
		id = info.Hidden
	}
	return id
}

// IsUnsized reports whether values of the type have no static size.
func (in *Interner) IsUnsized(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	return tt.Kind == KindStr || tt.Kind == KindSlice
}

// Pointee returns the referent of a reference or raw pointer type.
func (in *Interner) Pointee(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || (tt.Kind != KindReference && tt.Kind != KindPointer) {
		return NoTypeID, false
	}
	return tt.Elem, true
}

// IsWidePointer reports whether a reference or raw pointer carries length metadata.
func (in *Interner) IsWidePointer(id TypeID) bool {
	elem, ok := in.Pointee(id)
	return ok && in.IsUnsized(elem)
}

// ContainsCell reports whether values of the type embed interior mutability
// outside of any indirection.
func (in *Interner) ContainsCell(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindCell:
		return true
	case KindArray, KindSlice:
		return in.ContainsCell(tt.Elem)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		for _, e := range info.Elems {
			if in.ContainsCell(e) {
				return true
			}
		}
	case KindStruct:
		info, _ := in.StructInfo(id)
		for _, f := range info.Fields {
			if in.ContainsCell(f.Type) {
				return true
			}
		}
	case KindOpaque:
		return in.ContainsCell(in.Reveal(id))
	}
	return false
}
