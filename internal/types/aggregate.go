package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID
}

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a nominal struct type.
// Structs are monomorphic: field types never mention generic parameters.
type StructInfo struct {
	Name   string
	Fields []StructField
}

// OpaqueInfo stores an opaque type alias and the hidden type it stands for.
type OpaqueInfo struct {
	Name   string
	Hidden TypeID
}

// ParamInfo names a generic type parameter by its position in an instance's args.
type ParamInfo struct {
	Name  string
	Index uint32
}

// RegisterTuple creates or finds an existing tuple type with the given elements.
// The empty tuple is the unit type.
func (in *Interner) RegisterTuple(elems []TypeID) TypeID {
	if len(elems) == 0 {
		return in.builtins.Unit
	}
	key := tupleKey(elems)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.tupleIdx[key]; ok {
		return id
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: slices.Clone(elems)})
	id := in.internLocked(Type{Kind: KindTuple, Payload: mustSlot(len(in.tuples) - 1)})
	in.tupleIdx[key] = id
	return id
}

// TupleInfo returns the element types for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

// RegisterStruct allocates a nominal struct type and returns its TypeID.
// Two calls with the same name produce distinct types.
func (in *Interner) RegisterStruct(name string, fields []StructField) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.structs = append(in.structs, StructInfo{Name: name, Fields: slices.Clone(fields)})
	return in.internLocked(Type{Kind: KindStruct, Payload: mustSlot(len(in.structs) - 1)})
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil, false
	}
	return &in.structs[tt.Payload], true
}

// RegisterOpaque allocates an opaque type whose hidden type is only visible
// when hidden types are revealed.
func (in *Interner) RegisterOpaque(name string, hidden TypeID) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.opaques = append(in.opaques, OpaqueInfo{Name: name, Hidden: hidden})
	return in.internLocked(Type{Kind: KindOpaque, Payload: mustSlot(len(in.opaques) - 1)})
}

// OpaqueInfo returns metadata for the provided opaque TypeID.
func (in *Interner) OpaqueInfo(id TypeID) (*OpaqueInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindOpaque {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if tt.Payload == 0 || int(tt.Payload) >= len(in.opaques) {
		return nil, false
	}
	return &in.opaques[tt.Payload], true
}

// Param returns the generic parameter type at index.
func (in *Interner) Param(name string, index uint32) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	for slot := 1; slot < len(in.params); slot++ {
		p := in.params[slot]
		if p.Name == name && p.Index == index {
			return in.index[Type{Kind: KindParam, Payload: mustSlot(slot)}]
		}
	}
	in.params = append(in.params, ParamInfo{Name: name, Index: index})
	return in.internLocked(Type{Kind: KindParam, Payload: mustSlot(len(in.params) - 1)})
}

// ParamInfo returns metadata for the provided generic parameter.
func (in *Interner) ParamInfo(id TypeID) (*ParamInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindParam {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if tt.Payload == 0 || int(tt.Payload) >= len(in.params) {
		return nil, false
	}
	return &in.params[tt.Payload], true
}

func mustSlot(n int) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("type side table overflow: %w", err))
	}
	return slot
}

// SetStructFields replaces the field list of a registered struct.
// Builders use it to close over forward references.
func (in *Interner) SetStructFields(id TypeID, fields []StructField) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return
	}
	in.structs[tt.Payload].Fields = slices.Clone(fields)
}
