package interp

import (
	"bytes"
	"encoding/binary"
	"maps"
	"slices"

	"consteval/internal/mir"
)

// InitMask tracks initialization per byte.
type InitMask []uint64

func newInitMask(size uint64) InitMask {
	return make(InitMask, (size+63)/64)
}

func (m InitMask) get(i uint64) bool {
	return m[i/64]&(1<<(i%64)) != 0
}

func (m InitMask) set(start, end uint64, v bool) {
	for i := start; i < end; i++ {
		if v {
			m[i/64] |= 1 << (i % 64)
		} else {
			m[i/64] &^= 1 << (i % 64)
		}
	}
}

// firstUninit returns the first uninitialized offset in [start, end).
func (m InitMask) firstUninit(start, end uint64) (uint64, bool) {
	for i := start; i < end; i++ {
		if !m.get(i) {
			return i, true
		}
	}
	return 0, false
}

// Allocation is a byte buffer with per-byte initialization and pointer
// provenance. Prov maps the start offset of each stored pointer to its target.
type Allocation struct {
	Bytes      []byte
	Init       InitMask
	Prov       map[uint64]AllocID
	Align      uint64
	Mutability mir.Mutability
	// PtrSize is the width of the pointers recorded in Prov.
	PtrSize uint64
}

// NewAllocation returns size uninitialized bytes.
func NewAllocation(size, align uint64, mut mir.Mutability, ptrSize int) *Allocation {
	return &Allocation{
		Bytes:      make([]byte, size),
		Init:       newInitMask(size),
		Align:      max(align, 1),
		Mutability: mut,
		PtrSize:    uint64(ptrSize),
	}
}

// AllocationFromBytes returns a fully initialized allocation holding b.
func AllocationFromBytes(b []byte, align uint64, mut mir.Mutability, ptrSize int) *Allocation {
	a := NewAllocation(uint64(len(b)), align, mut, ptrSize)
	copy(a.Bytes, b)
	a.Init.set(0, uint64(len(b)), true)
	return a
}

// Size returns the allocation length in bytes.
func (a *Allocation) Size() uint64 {
	return uint64(len(a.Bytes))
}

// IsInit reports whether every byte in [off, off+size) is initialized.
func (a *Allocation) IsInit(off, size uint64) bool {
	_, bad := a.Init.firstUninit(off, off+size)
	return !bad
}

// FirstUninit reports the first uninitialized byte in range.
func (a *Allocation) FirstUninit(off, size uint64) (uint64, bool) {
	return a.Init.firstUninit(off, off+size)
}

// ProvEntry is one pointer stored in an allocation.
type ProvEntry struct {
	Offset uint64
	Target AllocID
}

// Provenance lists stored pointers in offset order.
func (a *Allocation) Provenance() []ProvEntry {
	keys := slices.Sorted(maps.Keys(a.Prov))
	out := make([]ProvEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, ProvEntry{Offset: k, Target: a.Prov[k]})
	}
	return out
}

// provOverlapping returns the start offsets of pointers intersecting [off, off+size).
func (a *Allocation) provOverlapping(off, size uint64) []uint64 {
	if len(a.Prov) == 0 || size == 0 {
		return nil
	}
	var out []uint64
	for start := range a.Prov {
		if start < off+size && start+a.PtrSize > off {
			out = append(out, start)
		}
	}
	slices.Sort(out)
	return out
}

// ReadScalar reads size bytes at off. A read that exactly covers one stored
// pointer yields that pointer; any other overlap with provenance fails.
func (a *Allocation) ReadScalar(order binary.ByteOrder, off, size uint64) (Scalar, error) {
	if at, bad := a.Init.firstUninit(off, off+size); bad {
		return Scalar{}, &InterpError{
			Code:    CodeUninitBytes,
			Message: "using uninitialized data, but this operation requires initialized memory",
			Offset:  at,
		}
	}
	bits := decodeUint(order, a.Bytes[off:off+size])
	over := a.provOverlapping(off, size)
	switch {
	case len(over) == 0:
		return ScalarFromUint(bits, int(size)), nil
	case len(over) == 1 && over[0] == off && size == a.PtrSize:
		return Scalar{Bits: bits, Prov: a.Prov[off], Size: uint8(size)}, nil
	default:
		return Scalar{}, &InterpError{
			Code:    CodePartialPointer,
			Message: "unable to read parts of a pointer from memory",
			Offset:  over[0],
		}
	}
}

// clearProv drops provenance in range. Overwriting part of a pointer is an error.
func (a *Allocation) clearProv(off, size uint64) error {
	for _, start := range a.provOverlapping(off, size) {
		if start < off || start+a.PtrSize > off+size {
			return &InterpError{
				Code:    CodePartialPointer,
				Message: "unable to overwrite parts of a pointer in memory",
				Offset:  start,
			}
		}
		delete(a.Prov, start)
	}
	return nil
}

// WriteScalar stores s at off.
func (a *Allocation) WriteScalar(order binary.ByteOrder, off uint64, s Scalar) error {
	size := uint64(s.Size)
	if err := a.clearProv(off, size); err != nil {
		return err
	}
	encodeUint(order, a.Bytes[off:off+size], s.Bits)
	a.Init.set(off, off+size, true)
	if s.Prov != NoAlloc {
		if size != a.PtrSize {
			Bugf("pointer scalar of %d bytes in %d-byte-pointer memory", size, a.PtrSize)
		}
		if a.Prov == nil {
			a.Prov = make(map[uint64]AllocID)
		}
		a.Prov[off] = s.Prov
	}
	return nil
}

// WriteUninit de-initializes [off, off+size).
func (a *Allocation) WriteUninit(off, size uint64) error {
	if err := a.clearProv(off, size); err != nil {
		return err
	}
	a.Init.set(off, off+size, false)
	return nil
}

// WriteBytes stores fully initialized raw bytes at off.
func (a *Allocation) WriteBytes(off uint64, b []byte) error {
	if err := a.clearProv(off, uint64(len(b))); err != nil {
		return err
	}
	copy(a.Bytes[off:], b)
	a.Init.set(off, off+uint64(len(b)), true)
	return nil
}

// ReadBytes returns initialized, provenance-free bytes.
func (a *Allocation) ReadBytes(off, size uint64) ([]byte, error) {
	if at, bad := a.Init.firstUninit(off, off+size); bad {
		return nil, &InterpError{Code: CodeUninitBytes, Message: "using uninitialized data, but this operation requires initialized memory", Offset: at}
	}
	if over := a.provOverlapping(off, size); len(over) > 0 {
		return nil, &InterpError{Code: CodePointerToInt, Message: "unable to turn pointer into integer", Offset: over[0]}
	}
	return bytes.Clone(a.Bytes[off : off+size]), nil
}

// CopyRange copies bytes, initialization and provenance from src.
func (a *Allocation) CopyRange(dstOff uint64, src *Allocation, srcOff, size uint64) error {
	// Partial pointers at the source edges cannot be carried over.
	for _, start := range src.provOverlapping(srcOff, size) {
		if start < srcOff || start+src.PtrSize > srcOff+size {
			return &InterpError{Code: CodePartialPointer, Message: "unable to copy parts of a pointer", Offset: start}
		}
	}
	if err := a.clearProv(dstOff, size); err != nil {
		return err
	}
	buf := bytes.Clone(src.Bytes[srcOff : srcOff+size])
	init := make([]bool, size)
	for i := range size {
		init[i] = src.Init.get(srcOff + i)
	}
	var prov []ProvEntry
	for _, start := range src.provOverlapping(srcOff, size) {
		prov = append(prov, ProvEntry{Offset: start - srcOff, Target: src.Prov[start]})
	}
	copy(a.Bytes[dstOff:], buf)
	for i, ok := range init {
		a.Init.set(dstOff+uint64(i), dstOff+uint64(i)+1, ok)
	}
	for _, p := range prov {
		if a.Prov == nil {
			a.Prov = make(map[uint64]AllocID)
		}
		a.Prov[dstOff+p.Offset] = p.Target
	}
	return nil
}

// Clone returns a deep copy.
func (a *Allocation) Clone() *Allocation {
	out := *a
	out.Bytes = bytes.Clone(a.Bytes)
	out.Init = slices.Clone(a.Init)
	out.Prov = maps.Clone(a.Prov)
	return &out
}

// Equal compares contents, initialization and provenance.
func (a *Allocation) Equal(b *Allocation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Align != b.Align || a.Mutability != b.Mutability || !bytes.Equal(a.Bytes, b.Bytes) {
		return false
	}
	for i := range a.Size() {
		if a.Init.get(i) != b.Init.get(i) {
			return false
		}
	}
	return maps.Equal(a.Prov, b.Prov)
}

func decodeUint(order binary.ByteOrder, b []byte) uint64 {
	var buf [8]byte
	if order == binary.BigEndian {
		copy(buf[8-len(b):], b)
		return binary.BigEndian.Uint64(buf[:])
	}
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

func encodeUint(order binary.ByteOrder, dst []byte, v uint64) {
	var buf [8]byte
	if order == binary.BigEndian {
		binary.BigEndian.PutUint64(buf[:], v)
		copy(dst, buf[8-len(dst):])
		return
	}
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(dst, buf[:len(dst)])
}
