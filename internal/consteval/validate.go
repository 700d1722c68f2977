package consteval

import (
	"fmt"

	"consteval/internal/interp"
	"consteval/internal/trace"
)

// constValidate checks the interned result of gid and everything reachable
// from it. All violations are collected so the reported one does not depend
// on traversal order.
func (e *Engine) constValidate(m *interp.Machine, gid GlobalID, root interp.MPlace, parent uint64) error {
	span := trace.Begin(m.Config().Tracer, trace.ScopeEval, "validate", parent)
	staticMut, isStatic := e.defs.StaticMutability(gid.Instance.Def)

	rt := interp.NewRefTracking(root, e.opts.ValidationOrder)
	var found []interp.Violation
	for {
		item, ok := rt.Next()
		if !ok {
			break
		}
		var mode interp.ValidationMode
		switch {
		case gid.Promoted.IsSet():
			mode = interp.PromotedMode()
		case isStatic:
			mode = interp.StaticMode(staticMut)
		default:
			mode = interp.ConstMode(item.Root)
		}
		found = append(found, m.ValidateOperand(interp.PlaceOp(item.Place), item.Path, rt, mode)...)
	}
	span.WithExtra("places", fmt.Sprint(rt.Seen())).
		WithExtra("violations", fmt.Sprint(len(found))).
		End(rt.Order.String())

	v, bad := interp.CanonicalViolation(found)
	if !bad {
		return nil
	}
	err := v.Err()
	err.Span = e.spans.DefSpan(gid.Instance.Def)
	return err
}
