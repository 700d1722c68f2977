package consteval

import (
	"fmt"

	"consteval/internal/interp"
	"consteval/internal/mir"
	"consteval/internal/trace"
)

// evalBody runs body as the root frame of gid and interns the result.
// The returned place lives in interned memory on success.
func (e *Engine) evalBody(m *interp.Machine, gid GlobalID, body *mir.Body, parent uint64) (interp.MPlace, error) {
	def := gid.Instance.Def
	kind := e.defs.DefKind(def)
	if !kind.IsConstLike() && !gid.Promoted.IsSet() {
		interp.Bugf("unexpected definition kind %s for %s", kind, e.describe(gid))
	}

	ty := e.types.Subst(body.ResultType(), gid.Instance.Args)
	lay, err := m.LayoutOf(ty)
	if err != nil {
		return interp.MPlace{}, err
	}
	if !lay.Sized {
		interp.Bugf("unsized type %s for constant %s", e.types.Name(ty), e.describe(gid))
	}

	staticMut, isStatic := e.defs.StaticMutability(def)
	ownStatic := isStatic && !gid.Promoted.IsSet()

	var ret interp.MPlace
	if ownStatic {
		id := e.globals.StaticAllocID(def)
		ret = m.AllocateResult(ty, lay, interp.MemStatic, mir.Mut, id)
	} else {
		ret = m.AllocateResult(ty, lay, interp.MemStack, mir.Mut, interp.NoAlloc)
	}

	span := trace.Begin(m.Config().Tracer, trace.ScopeEval, "eval_body", parent)
	if err := m.PushFrame(gid.Instance, gid.Promoted, body, ret, interp.StackPopCleanup{Root: true}, mir.NoBlockID); err != nil {
		span.End("push failed")
		return interp.MPlace{}, err
	}
	if err := m.MarkAlwaysLive(); err != nil {
		span.End("storage failed")
		return interp.MPlace{}, err
	}
	err = m.Run()
	span.WithExtra("steps", fmt.Sprint(m.Steps())).
		WithExtra("frames", fmt.Sprint(m.MaxDepth())).
		End(e.describe(gid))
	if err != nil {
		return interp.MPlace{}, err
	}

	var ik interp.InternKind
	switch {
	case gid.Promoted.IsSet():
		ik = interp.InternKind{Mode: interp.InternPromoted}
	case ownStatic:
		ik = interp.InternStatic(staticMut)
	default:
		ik = interp.InternKind{Mode: interp.InternConstant}
	}
	if err := m.Intern(ik, ret); err != nil {
		return interp.MPlace{}, err
	}
	return ret, nil
}
