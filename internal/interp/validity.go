package interp

import (
	"cmp"
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/types"
)

// ValidationKind selects the rule set for a visited place.
type ValidationKind uint8

const (
	ValidationConst ValidationKind = iota
	ValidationPromoted
	ValidationStatic
)

// ValidationMode is the rule set applied to one place.
type ValidationMode struct {
	Kind ValidationKind
	// Mut is the mutability of the static being validated.
	Mut mir.Mutability
	// AllowImmutableCell permits interior mutability in a const's root.
	AllowImmutableCell bool
}

// ConstMode validates a const; allowCell is set only for the root place.
func ConstMode(allowCell bool) ValidationMode {
	return ValidationMode{Kind: ValidationConst, AllowImmutableCell: allowCell}
}

// PromotedMode validates a promoted expression.
func PromotedMode() ValidationMode {
	return ValidationMode{Kind: ValidationPromoted}
}

// StaticMode validates a static of the given mutability.
func StaticMode(mut mir.Mutability) ValidationMode {
	return ValidationMode{Kind: ValidationStatic, Mut: mut}
}

func (v ValidationMode) String() string {
	switch v.Kind {
	case ValidationPromoted:
		return "promoted"
	case ValidationStatic:
		if v.Mut == mir.Mut {
			return "static mut"
		}
		return "static"
	default:
		if v.AllowImmutableCell {
			return "const(root)"
		}
		return "const"
	}
}

// ValidationOrder is the worklist discipline of RefTracking.
type ValidationOrder uint8

const (
	DepthFirst ValidationOrder = iota
	BreadthFirst
)

// ParseValidationOrder accepts "depth" or "breadth".
func ParseValidationOrder(s string) (ValidationOrder, error) {
	switch s {
	case "", "depth":
		return DepthFirst, nil
	case "breadth":
		return BreadthFirst, nil
	default:
		return DepthFirst, fmt.Errorf("invalid validation order %q (expected: depth|breadth)", s)
	}
}

func (o ValidationOrder) String() string {
	if o == BreadthFirst {
		return "breadth"
	}
	return "depth"
}

// RefItem is a place queued for validation.
type RefItem struct {
	Place MPlace
	Path  string
	Root  bool
}

type refKey struct {
	ptr  Pointer
	meta uint64
	ty   types.TypeID
}

// RefTracking is the validation worklist. Each (place, type) pair is
// validated once per evaluation.
type RefTracking struct {
	Order     ValidationOrder
	RootAlloc AllocID
	seen      map[refKey]bool
	todo      []RefItem
}

// NewRefTracking seeds the worklist with the root place.
func NewRefTracking(root MPlace, order ValidationOrder) *RefTracking {
	rt := &RefTracking{
		Order:     order,
		RootAlloc: root.Ptr.Prov,
		seen:      make(map[refKey]bool),
	}
	rt.seen[refKey{ptr: root.Ptr, meta: root.Meta, ty: root.Type}] = true
	rt.todo = append(rt.todo, RefItem{Place: root, Root: true})
	return rt
}

// Track queues mp unless it was queued before.
func (rt *RefTracking) Track(mp MPlace, path string) bool {
	k := refKey{ptr: mp.Ptr, meta: mp.Meta, ty: mp.Type}
	if rt.seen[k] {
		return false
	}
	rt.seen[k] = true
	rt.todo = append(rt.todo, RefItem{Place: mp, Path: path})
	return true
}

// Next pops the next place to validate.
func (rt *RefTracking) Next() (RefItem, bool) {
	if len(rt.todo) == 0 {
		return RefItem{}, false
	}
	var it RefItem
	if rt.Order == BreadthFirst {
		it = rt.todo[0]
		rt.todo = rt.todo[1:]
	} else {
		it = rt.todo[len(rt.todo)-1]
		rt.todo = rt.todo[:len(rt.todo)-1]
	}
	return it, true
}

// Seen reports how many places were queued so far.
func (rt *RefTracking) Seen() int {
	return len(rt.seen)
}

// Violation is one validity failure.
type Violation struct {
	Code   Code
	Msg    string
	Path   string
	Alloc  AllocID
	Offset uint64
}

func (v Violation) compare(o Violation) int {
	return cmp.Or(
		cmp.Compare(v.Alloc, o.Alloc),
		cmp.Compare(v.Offset, o.Offset),
		cmp.Compare(v.Code, o.Code),
		cmp.Compare(v.Path, o.Path),
	)
}

// Err converts the violation into an evaluation error.
func (v Violation) Err() *InterpError {
	msg := "constructing invalid value"
	if v.Path != "" {
		msg += " at " + v.Path
	}
	return &InterpError{
		Code:    v.Code,
		Message: msg + ": " + v.Msg,
		Alloc:   v.Alloc,
		Offset:  v.Offset,
		Path:    v.Path,
	}
}

// CanonicalViolation picks the violation reported for a set: lowest
// allocation, then offset, then code.
func CanonicalViolation(vs []Violation) (Violation, bool) {
	if len(vs) == 0 {
		return Violation{}, false
	}
	return slices.MinFunc(vs, Violation.compare), true
}

type validator struct {
	m    *Machine
	rt   *RefTracking
	mode ValidationMode
	out  []Violation
}

// ValidateOperand checks op against its type and queues referenced places
// on rt. All violations found in op are returned.
func (m *Machine) ValidateOperand(op OpTy, path string, rt *RefTracking, mode ValidationMode) []Violation {
	v := &validator{m: m, rt: rt, mode: mode}
	switch op.Kind {
	case OpPlace:
		v.visitPlace(op.Place, path)
	case OpImmediate:
		v.visitImmediate(op.Imm, op.Type, op.Layout, path)
	}
	return v.out
}

func (v *validator) report(code Code, at Pointer, path, format string, args ...any) {
	v.out = append(v.out, Violation{
		Code:   code,
		Msg:    fmt.Sprintf(format, args...),
		Path:   path,
		Alloc:  at.Prov,
		Offset: at.Offset,
	})
}

// readFailure classifies a failed read of a value that should be `what`.
func (v *validator) readFailure(err error, at Pointer, path, what string) {
	var ie *InterpError
	if !errors.As(err, &ie) {
		v.report(CodeValidationInvalid, at, path, "%v", err)
		return
	}
	switch ie.Code {
	case CodeUninitBytes:
		v.report(CodeValidationUninit, at, path, "encountered uninitialized memory, but expected %s", what)
	case CodePartialPointer, CodePointerToInt:
		v.report(CodeValidationPtrToInt, at, path, "encountered a pointer, but expected %s", what)
	default:
		v.report(CodeValidationDangling, at, path, "%s", ie.Message)
	}
}

func (v *validator) visitPlace(mp MPlace, path string) {
	m := v.m
	ty := m.Types.Reveal(mp.Type)
	tt, _ := m.Types.Lookup(ty)
	if mp.Layout.Abi == layout.AbiUninhabited {
		v.report(CodeValidationNever, mp.Ptr, path, "encountered a value of uninhabited type `%s`", m.Types.Name(mp.Type))
		return
	}
	switch tt.Kind {
	case types.KindUnit:
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindReference, types.KindPointer:
		imm, err := m.readImmediatePlace(mp)
		if err != nil {
			v.readFailure(err, mp.Ptr, path, expectedWhat(tt.Kind))
			return
		}
		v.visitImmediateAt(imm, ty, tt, mp.Ptr, path)
	case types.KindArray, types.KindSlice:
		n, _ := m.placeLen(mp)
		for i := range n {
			elem, err := m.indexPlace(mp, i)
			if err != nil {
				v.readFailure(err, mp.Ptr, path, "an array element")
				return
			}
			v.visitPlace(elem, fmt.Sprintf("%s[%d]", path, i))
		}
	case types.KindStr:
		if _, err := m.Mem.ReadBytes(mp.Ptr, mp.Meta); err != nil {
			v.readFailure(err, mp.Ptr, path, "a string")
		}
	case types.KindTuple, types.KindStruct:
		names := v.fieldNames(ty, tt)
		for i := range m.fieldCount(ty) {
			field, err := m.fieldPlace(mp, i)
			if err != nil {
				v.readFailure(err, mp.Ptr, path, "a field")
				return
			}
			v.visitPlace(field, path+"."+names[i])
		}
	case types.KindCell:
		v.checkCell(mp, path)
		inner, err := m.fieldPlace(mp, 0)
		if err != nil {
			v.readFailure(err, mp.Ptr, path, "a cell")
			return
		}
		v.visitPlace(inner, path)
	case types.KindNever:
		v.report(CodeValidationNever, mp.Ptr, path, "encountered a value of the never type `!`")
	default:
		Bugf("validating a value of type %s", m.Types.Name(mp.Type))
	}
}

func (v *validator) fieldNames(ty types.TypeID, tt types.Type) []string {
	n := v.m.fieldCount(ty)
	names := make([]string, n)
	if tt.Kind == types.KindStruct {
		info, _ := v.m.Types.StructInfo(ty)
		for i, f := range info.Fields {
			names[i] = f.Name
		}
		return names
	}
	for i := range names {
		names[i] = fmt.Sprint(i)
	}
	return names
}

func (v *validator) checkCell(mp MPlace, path string) {
	if mp.Layout.IsZST() {
		return
	}
	switch v.mode.Kind {
	case ValidationConst:
		if v.mode.AllowImmutableCell {
			return
		}
		v.report(CodeValidationCell, mp.Ptr, path, "encountered `UnsafeCell` in read-only memory")
	case ValidationPromoted:
		v.report(CodeValidationCell, mp.Ptr, path, "encountered `UnsafeCell` in a promoted value")
	case ValidationStatic:
		if mp.Ptr.Prov == v.rt.RootAlloc {
			return
		}
		info, err := v.m.Mem.Info(mp.Ptr.Prov)
		if err == nil && info.Mutability == mir.Mut {
			return
		}
		v.report(CodeValidationCell, mp.Ptr, path, "encountered `UnsafeCell` in read-only memory")
	}
}

func expectedWhat(k types.Kind) string {
	switch k {
	case types.KindBool:
		return "a boolean"
	case types.KindChar:
		return "a unicode scalar value"
	case types.KindInt, types.KindUint:
		return "an integer"
	case types.KindReference:
		return "a reference"
	case types.KindPointer:
		return "a raw pointer"
	default:
		return "a value"
	}
}

func (v *validator) visitImmediate(imm Immediate, ty types.TypeID, l layout.TypeLayout, path string) {
	ty = v.m.Types.Reveal(ty)
	tt, _ := v.m.Types.Lookup(ty)
	if l.Abi == layout.AbiUninhabited {
		v.report(CodeValidationNever, Pointer{}, path, "encountered a value of uninhabited type `%s`", v.m.Types.Name(ty))
		return
	}
	if imm.Kind == ImmUninit {
		v.report(CodeValidationUninit, Pointer{}, path, "encountered uninitialized memory, but expected %s", expectedWhat(tt.Kind))
		return
	}
	switch tt.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindReference, types.KindPointer:
		v.visitImmediateAt(imm, ty, tt, Pointer{}, path)
	}
}

// visitImmediateAt checks a scalar-like value read from at.
func (v *validator) visitImmediateAt(imm Immediate, ty types.TypeID, tt types.Type, at Pointer, path string) {
	s := imm.A
	switch tt.Kind {
	case types.KindBool:
		if s.IsPtr() {
			v.report(CodeValidationPtrToInt, at, path, "encountered a pointer, but expected a boolean")
			return
		}
		if s.Bits > 1 {
			v.report(CodeValidationInvalid, at, path, "encountered %#02x, but expected a boolean", s.Bits)
		}
	case types.KindChar:
		if s.IsPtr() {
			v.report(CodeValidationPtrToInt, at, path, "encountered a pointer, but expected a unicode scalar value")
			return
		}
		if _, err := s.ToChar(); err != nil {
			v.report(CodeValidationInvalid, at, path, "encountered %#08x, but expected a valid unicode scalar value", s.Bits)
		}
	case types.KindInt, types.KindUint:
		if s.IsPtr() {
			v.report(CodeValidationPtrToInt, at, path, "encountered a pointer, but expected an integer")
		}
	case types.KindReference, types.KindPointer:
		v.checkPointer(imm, ty, tt, at, path)
	}
}

func (v *validator) checkPointer(imm Immediate, ty types.TypeID, tt types.Type, at Pointer, path string) {
	m := v.m
	isRef := tt.Kind == types.KindReference
	what := "reference"
	if !isRef {
		what = "raw pointer"
	}
	ptr := Pointer{Prov: imm.A.Prov, Offset: imm.A.Bits}
	pointee := tt.Elem
	pl, err := m.LayoutOf(pointee)
	if err != nil {
		v.report(CodeValidationInvalid, at, path, "%s to a type without layout: %v", what, err)
		return
	}
	target := MPlace{Ptr: ptr, Type: pointee, Layout: pl}
	size := uint64(pl.Size)
	if imm.Kind == ImmPair {
		if imm.B.IsPtr() {
			v.report(CodeValidationPtrToInt, at, path, "encountered a pointer, but expected a slice length")
			return
		}
		target.Meta, target.HasMeta = imm.B.Bits, true
		hi, lo := bits.Mul64(target.Meta, uint64(max(pl.Stride, 0)))
		if hi != 0 || lo > m.Target.MaxObjectSize() {
			v.report(CodeValidationInvalid, at, path, "encountered invalid %s metadata: slice is bigger than largest supported object", what)
			return
		}
		size = lo
	}
	align := uint64(max(pl.Align, 1))

	if !ptr.HasProv() {
		if !isRef {
			return
		}
		if ptr.Offset == 0 {
			v.report(CodeValidationNull, at, path, "encountered a null reference")
			return
		}
		if size == 0 {
			if ptr.Offset%align != 0 {
				v.report(CodeValidationUnalign, at, path, "encountered an unaligned reference (required %d byte alignment but found %d)", align, lowestBit(ptr.Offset))
			}
			return
		}
		v.report(CodeValidationDangling, at, path, "encountered a dangling reference (%#x has no provenance)", ptr.Offset)
		return
	}

	info, err := m.Mem.Info(ptr.Prov)
	switch {
	case err != nil || !info.Live:
		if isRef {
			v.report(CodeValidationDangling, at, path, "encountered a dangling reference (use-after-free)")
		}
		return
	case ptr.Offset > info.Size || size > info.Size-ptr.Offset:
		if isRef {
			v.report(CodeValidationDangling, at, path, "encountered a dangling reference (going beyond the bounds of its allocation)")
		}
		return
	}
	if !isRef {
		v.follow(target, ptr, path)
		return
	}
	if info.Align < align || ptr.Offset%align != 0 {
		v.report(CodeValidationUnalign, at, path, "encountered an unaligned reference (required %d byte alignment but found %d)", align, min(info.Align, lowestBit(ptr.Offset)))
		return
	}
	if size > 0 {
		switch {
		case tt.Mutable && v.mode.Kind != ValidationStatic:
			v.report(CodeValidationMutRef, at, path, "encountered mutable reference in `%s` value", v.modeNoun())
			return
		case tt.Mutable && info.Mutability == mir.Not:
			v.report(CodeValidationMutRef, at, path, "encountered mutable reference or box pointing to read-only memory")
			return
		case !tt.Mutable && v.mode.Kind != ValidationStatic && info.Mutability == mir.Mut:
			v.report(CodeValidationMutable, at, path, "constant refers to mutable data")
			return
		}
	}
	v.follow(target, ptr, path)
}

func (v *validator) modeNoun() string {
	if v.mode.Kind == ValidationPromoted {
		return "promoted"
	}
	return "const"
}

// follow queues the pointee unless it belongs to another static, which is
// validated on its own.
func (v *validator) follow(target MPlace, ptr Pointer, path string) {
	if _, isStatic := v.m.Mem.Globals().StaticDef(ptr.Prov); isStatic && ptr.Prov != v.rt.RootAlloc {
		return
	}
	v.rt.Track(target, path+".<deref>")
}
