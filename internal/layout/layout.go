package layout

import (
	"consteval/internal/types"
)

// Reveal selects whether opaque types are seen through.
type Reveal uint8

const (
	// RevealUserFacing keeps opaque types hidden.
	RevealUserFacing Reveal = iota
	// RevealAll exposes the hidden type behind every opaque alias.
	RevealAll
)

func (r Reveal) String() string {
	if r == RevealAll {
		return "all"
	}
	return "user-facing"
}

// Abi classifies how a value of the type is held outside memory.
type Abi uint8

const (
	// AbiAggregate values always live in memory.
	AbiAggregate Abi = iota
	// AbiScalar values fit in one machine word.
	AbiScalar
	// AbiScalarPair values are two words, like a slice reference (data, len).
	AbiScalarPair
	// AbiUninhabited types have no values at all.
	AbiUninhabited
)

func (a Abi) String() string {
	switch a {
	case AbiScalar:
		return "scalar"
	case AbiScalarPair:
		return "scalar-pair"
	case AbiUninhabited:
		return "uninhabited"
	default:
		return "aggregate"
	}
}

// PairShape locates both halves of a ScalarPair value.
type PairShape struct {
	FirstSize    int
	SecondOffset int
	SecondSize   int
}

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int
	Abi   Abi
	// Sized is false for str and slices; Size is then 0 and Stride is the element stride.
	Sized bool
	// Stride is the element stride for arrays and slices.
	Stride int
	// Pair is set for AbiScalarPair.
	Pair PairShape

	// Struct, tuple and cell only:
	FieldOffsets []int
}

// IsZST reports whether the type is sized and occupies no bytes.
func (l TypeLayout) IsZST() bool {
	return l.Sized && l.Size == 0
}

// LayoutEngine computes memory layout for types.
// It is safe for concurrent use.
type LayoutEngine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new LayoutEngine for the specified target.
func New(target Target, typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack  []types.TypeID
	index  map[types.TypeID]int
	reveal Reveal
}

func newLayoutState(reveal Reveal) *layoutState {
	return &layoutState{
		index:  make(map[types.TypeID]int, 32),
		reveal: reveal,
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *LayoutEngine) LayoutOf(t types.TypeID, reveal Reveal) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1, Sized: true}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	layout, err := e.layoutOf(t, newLayoutState(reveal))
	if err != nil {
		return layout, err
	}
	return layout, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	key := cacheKey{Type: t, Reveal: state.reveal}
	if cached, ok := e.cache.get(key); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t,
			Cycle: cycle,
		}
		return zeroLayout(), err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	e.cache.put(key, &cacheEntry{Layout: layout, Err: err})
	return layout, err
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t, RevealAll)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t, RevealAll)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct or tuple field.
func (e *LayoutEngine) FieldOffset(t types.TypeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(t, RevealAll)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, nil
	}
	return l.FieldOffsets[fieldIdx], nil
}

// CachedLen reports how many (type, reveal) entries are memoized.
func (e *LayoutEngine) CachedLen() int {
	if e == nil || e.cache == nil {
		return 0
	}
	return e.cache.len()
}
