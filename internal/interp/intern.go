package interp

import (
	"fmt"

	"consteval/internal/mir"
	"consteval/internal/trace"
)

// InternMode says what kind of item the interned root belongs to.
type InternMode uint8

const (
	InternConstant InternMode = iota
	InternPromoted
	InternStaticItem
)

// InternKind tags an interning pass.
type InternKind struct {
	Mode InternMode
	// Mut is the mutability of a static's own allocation.
	Mut mir.Mutability
}

// InternStatic is the kind for a static's own body.
func InternStatic(mut mir.Mutability) InternKind {
	return InternKind{Mode: InternStaticItem, Mut: mut}
}

func (k InternKind) String() string {
	switch k.Mode {
	case InternPromoted:
		return "promoted"
	case InternStaticItem:
		if k.Mut == mir.Mut {
			return "static(mut)"
		}
		return "static"
	default:
		return "constant"
	}
}

// Intern moves the allocation behind root and every local allocation
// reachable from it into Globals. Only a mutable static's own allocation
// stays mutable. Interning an already interned root is a no-op.
func (m *Machine) Intern(kind InternKind, root MPlace) error {
	if !root.Ptr.HasProv() {
		return nil
	}
	span := trace.Begin(m.cfg.Tracer, trace.ScopeEval, "intern", m.cfg.TraceParent)
	interned := 0
	defer func() {
		span.WithExtra("allocs", fmt.Sprint(interned)).End(kind.String())
	}()

	globals := m.Mem.Globals()
	rootID := root.Ptr.Prov
	todo := []AllocID{rootID}
	seen := map[AllocID]bool{rootID: true}
	for len(todo) > 0 {
		id := todo[0]
		todo = todo[1:]
		if _, done := globals.Get(id); done {
			continue
		}
		if _, isStatic := globals.StaticDef(id); isStatic && id != rootID {
			continue
		}
		alloc, _, live, ok := m.Mem.Local(id)
		if !ok || !live {
			return &InterpError{
				Code:    CodeValidationDangling,
				Message: "encountered dangling pointer in final value of " + kind.String(),
				Alloc:   id,
			}
		}
		if id == rootID && kind.Mode == InternStaticItem {
			alloc.Mutability = kind.Mut
		} else {
			alloc.Mutability = mir.Not
		}
		for _, p := range alloc.Provenance() {
			if !seen[p.Target] {
				seen[p.Target] = true
				todo = append(todo, p.Target)
			}
		}
		m.Mem.TakeLocal(id)
		globals.Intern(id, alloc)
		interned++
	}
	return nil
}
