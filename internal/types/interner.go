package types

import (
	"fmt"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Unit  TypeID
	Never TypeID
	Bool  TypeID
	Char  TypeID
	Str   TypeID
	I8    TypeID
	I16   TypeID
	I32   TypeID
	I64   TypeID
	Isize TypeID
	U8    TypeID
	U16   TypeID
	U32   TypeID
	U64   TypeID
	Usize TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// It is safe for concurrent use: evaluation interns substituted types on the fly.
type Interner struct {
	mu       sync.RWMutex
	types    []Type
	index    map[Type]TypeID
	tuples   []TupleInfo
	tupleIdx map[string]TypeID
	structs  []StructInfo
	opaques  []OpaqueInfo
	params   []ParamInfo
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:    make(map[Type]TypeID, 64),
		tupleIdx: make(map[string]TypeID, 16),
		tuples:   []TupleInfo{{}},
		structs:  []StructInfo{{}},
		opaques:  []OpaqueInfo{{}},
		params:   []ParamInfo{{}},
	}
	in.types = append(in.types, Type{Kind: KindInvalid}) // reserve NoTypeID
	in.seedBuiltins()
	return in
}

func (in *Interner) seedBuiltins() {
	in.builtins = Builtins{
		Unit:  in.Intern(Type{Kind: KindUnit}),
		Never: in.Intern(Type{Kind: KindNever}),
		Bool:  in.Intern(Type{Kind: KindBool}),
		Char:  in.Intern(Type{Kind: KindChar}),
		Str:   in.Intern(Type{Kind: KindStr}),
		I8:    in.Intern(MakeInt(Width8)),
		I16:   in.Intern(MakeInt(Width16)),
		I32:   in.Intern(MakeInt(Width32)),
		I64:   in.Intern(MakeInt(Width64)),
		Isize: in.Intern(MakeInt(WidthAny)),
		U8:    in.Intern(MakeUint(Width8)),
		U16:   in.Intern(MakeUint(Width16)),
		U32:   in.Intern(MakeUint(Width32)),
		U64:   in.Intern(MakeUint(Width64)),
		Usize: in.Intern(MakeUint(WidthAny)),
	}
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	in.mu.RLock()
	id, ok := in.index[t]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internLocked(t)
}

// internLocked adds the descriptor to the storage. Callers hold in.mu.
func (in *Interner) internLocked(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return tt
}

// Len reports the number of interned descriptors including the reserved slot.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types)
}

// Shorthands used by builders and tests.

func (in *Interner) Ref(elem TypeID) TypeID    { return in.Intern(MakeReference(elem, false)) }
func (in *Interner) RefMut(elem TypeID) TypeID { return in.Intern(MakeReference(elem, true)) }
func (in *Interner) Ptr(elem TypeID, mutable bool) TypeID {
	return in.Intern(MakePointer(elem, mutable))
}
func (in *Interner) Slice(elem TypeID) TypeID { return in.Intern(MakeSlice(elem)) }
func (in *Interner) Array(elem TypeID, n uint32) TypeID {
	return in.Intern(MakeArray(elem, n))
}
func (in *Interner) Cell(elem TypeID) TypeID { return in.Intern(MakeCell(elem)) }

func tupleKey(elems []TypeID) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", e)
	}
	return sb.String()
}
