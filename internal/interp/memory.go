package interp

import (
	"errors"
	"maps"
	"slices"

	"consteval/internal/layout"
	"consteval/internal/mir"
)

// MemoryKind says where a machine-local allocation came from.
type MemoryKind uint8

const (
	// MemStack is scratch memory: locals, temporaries and literals.
	MemStack MemoryKind = iota
	// MemStatic is the storage of the static currently being initialized.
	MemStatic
)

func (k MemoryKind) String() string {
	if k == MemStatic {
		return "static"
	}
	return "stack"
}

type localAlloc struct {
	alloc *Allocation
	kind  MemoryKind
	dead  bool
}

// AllocInfo summarizes an allocation for the validator.
type AllocInfo struct {
	Size       uint64
	Align      uint64
	Mutability mir.Mutability
	Live       bool
	Global     bool
}

// Memory is the address space of one evaluation: allocations it created plus
// read-only access to interned globals.
type Memory struct {
	target  layout.Target
	globals *Globals
	host    Host
	locals  map[AllocID]*localAlloc

	// CheckAlignment rejects misaligned accesses.
	CheckAlignment bool
	// CanAccessMutGlobal allows reading interned mutable memory.
	CanAccessMutGlobal bool
}

// NewMemory creates an empty address space on top of globals.
func NewMemory(target layout.Target, globals *Globals, host Host) *Memory {
	return &Memory{
		target:  target,
		globals: globals,
		host:    host,
		locals:  make(map[AllocID]*localAlloc, 16),
	}
}

// Globals returns the shared interned table.
func (m *Memory) Globals() *Globals {
	return m.globals
}

// Allocate creates a fresh uninitialized allocation.
func (m *Memory) Allocate(size, align uint64, kind MemoryKind, mut mir.Mutability) Pointer {
	return m.AllocateWithID(m.globals.NextID(), size, align, kind, mut)
}

// AllocateWithID creates an allocation under a pre-reserved id.
func (m *Memory) AllocateWithID(id AllocID, size, align uint64, kind MemoryKind, mut mir.Mutability) Pointer {
	if _, ok := m.locals[id]; ok {
		Bugf("allocation %s created twice", id)
	}
	m.locals[id] = &localAlloc{
		alloc: NewAllocation(size, align, mut, m.target.PtrSize),
		kind:  kind,
	}
	return Pointer{Prov: id}
}

// AllocateBytes creates an initialized allocation holding b.
func (m *Memory) AllocateBytes(b []byte, align uint64, mut mir.Mutability) Pointer {
	id := m.globals.NextID()
	m.locals[id] = &localAlloc{
		alloc: AllocationFromBytes(b, align, mut, m.target.PtrSize),
		kind:  MemStack,
	}
	return Pointer{Prov: id}
}

// Deallocate kills a local allocation. The bytes are kept so dangling uses
// can be reported precisely.
func (m *Memory) Deallocate(p Pointer) error {
	la, ok := m.locals[p.Prov]
	if !ok || la.dead {
		return &InterpError{Code: CodeDanglingPointer, Message: "deallocating " + p.Prov.String() + ", which is dangling", Alloc: p.Prov}
	}
	if p.Offset != 0 {
		Bugf("deallocating %s with a non-zero offset", p)
	}
	la.dead = true
	return nil
}

// LocalIDs returns the ids of allocations created by this evaluation.
func (m *Memory) LocalIDs() []AllocID {
	return slices.Sorted(maps.Keys(m.locals))
}

// Local returns a machine-local allocation, live or dead.
func (m *Memory) Local(id AllocID) (*Allocation, MemoryKind, bool, bool) {
	la, ok := m.locals[id]
	if !ok {
		return nil, 0, false, false
	}
	return la.alloc, la.kind, !la.dead, true
}

// TakeLocal removes a local allocation so it can be interned.
func (m *Memory) TakeLocal(id AllocID) {
	delete(m.locals, id)
}

// Info returns size, alignment and liveness for any id.
func (m *Memory) Info(id AllocID) (AllocInfo, error) {
	if la, ok := m.locals[id]; ok {
		return AllocInfo{
			Size:       la.alloc.Size(),
			Align:      la.alloc.Align,
			Mutability: la.alloc.Mutability,
			Live:       !la.dead,
		}, nil
	}
	a, err := m.global(id)
	if err != nil {
		return AllocInfo{}, err
	}
	return AllocInfo{Size: a.Size(), Align: a.Align, Mutability: a.Mutability, Live: true, Global: true}, nil
}

func (m *Memory) global(id AllocID) (*Allocation, error) {
	if a, ok := m.globals.Get(id); ok {
		return a, nil
	}
	if def, ok := m.globals.StaticDef(id); ok && m.host != nil {
		if err := m.host.EnsureStatic(def); err != nil {
			code := CodeReferencedFailed
			var ie *InterpError
			if errors.As(err, &ie) && ie.Code == CodeTooGeneric {
				code = CodeTooGeneric
			}
			return nil, &InterpError{Code: code, Message: "could not evaluate static initializer of " + id.String(), Alloc: id, Cause: err}
		}
		if a, ok := m.globals.Get(id); ok {
			return a, nil
		}
	}
	return nil, &InterpError{Code: CodeDanglingPointer, Message: "pointer to unknown allocation " + id.String(), Alloc: id}
}

// Get returns the allocation behind id for reading.
func (m *Memory) Get(id AllocID) (*Allocation, error) {
	if la, ok := m.locals[id]; ok {
		if la.dead {
			return nil, &InterpError{Code: CodeDanglingPointer, Message: "memory access failed: " + id.String() + " has been freed, so this pointer is dangling", Alloc: id}
		}
		return la.alloc, nil
	}
	a, err := m.global(id)
	if err != nil {
		return nil, err
	}
	if a.Mutability == mir.Mut && !m.CanAccessMutGlobal {
		return nil, &InterpError{Code: CodeReadMutableGlobal, Message: "constant accesses mutable global memory", Alloc: id}
	}
	return a, nil
}

func (m *Memory) getMut(id AllocID) (*Allocation, error) {
	la, ok := m.locals[id]
	if !ok {
		if _, err := m.global(id); err != nil {
			return nil, err
		}
		return nil, &InterpError{Code: CodeWriteToGlobal, Message: "modifying a static's initial value from another static's initializer", Alloc: id}
	}
	if la.dead {
		return nil, &InterpError{Code: CodeDanglingPointer, Message: "memory access failed: " + id.String() + " has been freed, so this pointer is dangling", Alloc: id}
	}
	if la.alloc.Mutability != mir.Mut {
		return nil, &InterpError{Code: CodeWriteToReadOnly, Message: "writing to " + id.String() + " which is read-only", Alloc: id}
	}
	return la.alloc, nil
}

// checkPtr validates a non-zero-sized access and returns the target allocation.
func (m *Memory) checkPtr(p Pointer, size, align uint64, write bool) (*Allocation, error) {
	if !p.HasProv() {
		if p.Offset == 0 {
			return nil, errorf(CodeNullDeref, "memory access failed: null pointer is a dangling pointer (it has no provenance)")
		}
		return nil, errorf(CodeDanglingPointer, "memory access failed: %s is a dangling pointer (it has no provenance)", p)
	}
	var (
		a   *Allocation
		err error
	)
	if write {
		a, err = m.getMut(p.Prov)
	} else {
		a, err = m.Get(p.Prov)
	}
	if err != nil {
		return nil, err
	}
	if p.Offset > a.Size() || size > a.Size()-p.Offset {
		return nil, &InterpError{
			Code:    CodeOutOfBounds,
			Message: outOfBoundsMsg(p, size, a.Size()),
			Alloc:   p.Prov,
			Offset:  p.Offset,
		}
	}
	if m.CheckAlignment && align > 1 {
		if a.Align < align || p.Offset%align != 0 {
			return nil, &InterpError{
				Code:    CodeMisaligned,
				Message: "accessing memory with alignment " + itoa(min(a.Align, lowestBit(p.Offset))) + ", but alignment " + itoa(align) + " is required",
				Alloc:   p.Prov,
				Offset:  p.Offset,
			}
		}
	}
	return a, nil
}

// ReadScalar reads size bytes as one scalar.
func (m *Memory) ReadScalar(p Pointer, size, align uint64) (Scalar, error) {
	a, err := m.checkPtr(p, size, align, false)
	if err != nil {
		return Scalar{}, err
	}
	s, err := a.ReadScalar(m.target.ByteOrder(), p.Offset, size)
	return s, withAlloc(err, p.Prov)
}

// WriteScalar stores s. Zero-sized writes are no-ops.
func (m *Memory) WriteScalar(p Pointer, s Scalar, align uint64) error {
	if s.Size == 0 {
		return nil
	}
	a, err := m.checkPtr(p, uint64(s.Size), align, true)
	if err != nil {
		return err
	}
	return withAlloc(a.WriteScalar(m.target.ByteOrder(), p.Offset, s), p.Prov)
}

// WriteUninit de-initializes size bytes.
func (m *Memory) WriteUninit(p Pointer, size, align uint64) error {
	if size == 0 {
		return nil
	}
	a, err := m.checkPtr(p, size, align, true)
	if err != nil {
		return err
	}
	return withAlloc(a.WriteUninit(p.Offset, size), p.Prov)
}

// ReadBytes returns size initialized, pointer-free bytes.
func (m *Memory) ReadBytes(p Pointer, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	a, err := m.checkPtr(p, size, 1, false)
	if err != nil {
		return nil, err
	}
	b, err := a.ReadBytes(p.Offset, size)
	return b, withAlloc(err, p.Prov)
}

// WriteBytes stores raw initialized bytes.
func (m *Memory) WriteBytes(p Pointer, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	a, err := m.checkPtr(p, uint64(len(b)), 1, true)
	if err != nil {
		return err
	}
	return withAlloc(a.WriteBytes(p.Offset, b), p.Prov)
}

// Copy moves size bytes with their provenance from src to dst.
func (m *Memory) Copy(src, dst Pointer, size, align uint64) error {
	if size == 0 {
		return nil
	}
	from, err := m.checkPtr(src, size, align, false)
	if err != nil {
		return err
	}
	to, err := m.checkPtr(dst, size, align, true)
	if err != nil {
		return err
	}
	return withAlloc(to.CopyRange(dst.Offset, from, src.Offset, size), dst.Prov)
}

// CheckDeref reports whether a reference of the given size could be used.
func (m *Memory) CheckDeref(p Pointer, size, align uint64) error {
	if size == 0 {
		return nil
	}
	_, err := m.checkPtr(p, size, align, false)
	return err
}

func withAlloc(err error, id AllocID) error {
	if err == nil {
		return nil
	}
	var ie *InterpError
	if errors.As(err, &ie) && ie.Alloc == NoAlloc {
		ie.Alloc = id
	}
	return err
}

func outOfBoundsMsg(p Pointer, size, allocSize uint64) string {
	return "memory access failed: expected a pointer to " + itoa(size) + " bytes of memory, but got " +
		p.String() + " which is only " + itoa(allocSize-min(p.Offset, allocSize)) + " bytes from the end of the allocation"
}

func lowestBit(v uint64) uint64 {
	if v == 0 {
		return 1 << 63
	}
	return v & -v
}
