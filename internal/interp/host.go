package interp

import (
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/types"
)

// Host is the machine's view of the surrounding evaluator. Evaluating another
// constant always goes back through the host so results are memoized and
// cycles are caught outside the interpreter.
type Host interface {
	// EvalToAllocation evaluates a constant item (or one of its promoted
	// bodies) and returns the interned allocation holding the result.
	// Zero-sized results return NoAlloc.
	EvalToAllocation(inst mir.Instance, promoted mir.Promoted) (AllocID, error)
	// EnsureStatic makes sure the initializer of def has been interned
	// under its reserved id.
	EnsureStatic(def mir.DefID) error
	// ResolveBody returns the lowered body for a callee.
	ResolveBody(inst mir.Instance, promoted mir.Promoted) (*mir.Body, error)
}

// LayoutOracle answers layout queries.
type LayoutOracle interface {
	LayoutOf(t types.TypeID, reveal layout.Reveal) (layout.TypeLayout, error)
}
