package types

import (
	"fmt"
	"slices"
)

// Table is the serializable form of an Interner. Type IDs are indexes into Types.
type Table struct {
	Types   []Type
	Tuples  []TupleInfo
	Structs []StructInfo
	Opaques []OpaqueInfo
	Params  []ParamInfo
}

// Snapshot copies the interner contents into a Table.
func (in *Interner) Snapshot() Table {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return Table{
		Types:   slices.Clone(in.types),
		Tuples:  slices.Clone(in.tuples),
		Structs: slices.Clone(in.structs),
		Opaques: slices.Clone(in.opaques),
		Params:  slices.Clone(in.params),
	}
}

// FromTable rebuilds an interner from a snapshot, keeping every TypeID stable.
func FromTable(t Table) (*Interner, error) {
	if len(t.Types) == 0 || t.Types[0].Kind != KindInvalid {
		return nil, fmt.Errorf("type table must start with the reserved invalid slot")
	}
	in := &Interner{
		types:    slices.Clone(t.Types),
		index:    make(map[Type]TypeID, len(t.Types)),
		tupleIdx: make(map[string]TypeID, len(t.Tuples)),
		tuples:   slices.Clone(t.Tuples),
		structs:  slices.Clone(t.Structs),
		opaques:  slices.Clone(t.Opaques),
		params:   slices.Clone(t.Params),
	}
	if len(in.tuples) == 0 {
		in.tuples = []TupleInfo{{}}
	}
	if len(in.structs) == 0 {
		in.structs = []StructInfo{{}}
	}
	if len(in.opaques) == 0 {
		in.opaques = []OpaqueInfo{{}}
	}
	if len(in.params) == 0 {
		in.params = []ParamInfo{{}}
	}
	for i := 1; i < len(in.types); i++ {
		tt := in.types[i]
		id := TypeID(mustSlot(i))
		if _, dup := in.index[tt]; !dup {
			in.index[tt] = id
		}
		if tt.Kind == KindTuple {
			if int(tt.Payload) >= len(in.tuples) {
				return nil, fmt.Errorf("type#%d: tuple slot %d out of range", i, tt.Payload)
			}
			in.tupleIdx[tupleKey(in.tuples[tt.Payload].Elems)] = id
		}
	}
	in.seedBuiltins()
	return in, nil
}
