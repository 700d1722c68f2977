package interp

import "fmt"

// AllocID names an allocation. IDs are never reused; 0 means "no provenance".
type AllocID uint64

// NoAlloc is the absent provenance.
const NoAlloc AllocID = 0

func (id AllocID) String() string {
	return fmt.Sprintf("alloc%d", uint64(id))
}

// Pointer is an offset into an allocation. A pointer without provenance is a
// plain address and can only be used for zero-sized accesses.
type Pointer struct {
	Prov   AllocID
	Offset uint64
}

// HasProv reports whether the pointer is tied to an allocation.
func (p Pointer) HasProv() bool {
	return p.Prov != NoAlloc
}

// IsNull reports whether the pointer is the null address.
func (p Pointer) IsNull() bool {
	return p.Prov == NoAlloc && p.Offset == 0
}

// Add offsets the pointer by n bytes.
func (p Pointer) Add(n uint64) Pointer {
	return Pointer{Prov: p.Prov, Offset: p.Offset + n}
}

func (p Pointer) String() string {
	if p.Prov == NoAlloc {
		return fmt.Sprintf("%#x[noalloc]", p.Offset)
	}
	if p.Offset == 0 {
		return p.Prov.String()
	}
	return fmt.Sprintf("%s+%#x", p.Prov, p.Offset)
}

// danglingFor returns the well-aligned address used for zero-sized values.
func danglingFor(align int) Pointer {
	if align < 1 {
		align = 1
	}
	return Pointer{Offset: uint64(align)}
}
