package mir

import (
	"errors"
	"fmt"

	"consteval/internal/types"
)

// Validate checks program invariants the evaluator relies on.
// Returns error if any invariant is violated.
func Validate(p *Program) error {
	if p == nil {
		return nil
	}
	if p.Types == nil {
		return errors.New("program has no type table")
	}
	var errs []error
	for i := range p.Defs {
		d := &p.Defs[i]
		if err := validateDef(p, i, d); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", d.Kind, d.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateDef(p *Program, idx int, d *Def) error {
	if int(d.ID) != idx {
		return fmt.Errorf("def id %d does not match its position", d.ID)
	}
	switch {
	case d.Kind == DefIntrinsic:
		if d.Intrinsic == "" {
			return errors.New("intrinsic without a name")
		}
		return nil
	case d.Kind == DefFn || d.Kind.IsConstLike():
	default:
		return fmt.Errorf("invalid definition kind %d", d.Kind)
	}
	if d.Body == nil {
		return errors.New("missing body")
	}
	var errs []error
	if err := validateBody(p, d, d.Body); err != nil {
		errs = append(errs, err)
	}
	for i, pb := range d.Promoted {
		if pb == nil {
			errs = append(errs, fmt.Errorf("promoted[%d]: missing body", i))
			continue
		}
		if err := validateBody(p, d, pb); err != nil {
			errs = append(errs, fmt.Errorf("promoted[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

type bodyChecker struct {
	p    *Program
	def  *Def
	body *Body
	errs []error
}

func (c *bodyChecker) errorf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func validateBody(p *Program, d *Def, b *Body) error {
	c := &bodyChecker{p: p, def: d, body: b}
	if len(b.Locals) == 0 {
		return errors.New("body has no return place")
	}
	if b.ArgCount < 0 || b.ArgCount >= len(b.Locals) {
		c.errorf("argument count %d out of range", b.ArgCount)
	}
	if len(b.Blocks) == 0 {
		c.errorf("body has no blocks")
	}
	for i := range b.Locals {
		if _, ok := p.Types.Lookup(b.Locals[i].Type); !ok {
			c.errorf("L%d: invalid type", i)
		}
	}
	for i := range b.Blocks {
		bb := &b.Blocks[i]
		if bb.ID != BlockID(i) {
			c.errorf("bb%d: block id %d does not match its position", i, bb.ID)
		}
		for j := range bb.Stmts {
			c.stmt(i, &bb.Stmts[j])
		}
		c.term(i, &bb.Term)
	}
	return errors.Join(c.errs...)
}

func (c *bodyChecker) stmt(bb int, st *Stmt) {
	switch st.Kind {
	case StmtNop:
	case StmtAssign:
		c.place(bb, st.Assign.Dst)
		c.rvalue(bb, &st.Assign.Src)
	case StmtStorageLive, StmtStorageDead:
		c.local(bb, st.Local)
		if st.Local == ReturnLocal {
			c.errorf("bb%d: storage statement on the return place", bb)
		}
	default:
		c.errorf("bb%d: unknown statement kind %d", bb, st.Kind)
	}
}

func (c *bodyChecker) term(bb int, t *Terminator) {
	switch t.Kind {
	case TermNone:
		c.errorf("bb%d: unterminated block", bb)
	case TermReturn, TermUnreachable:
	case TermGoto:
		c.target(bb, t.Goto.Target)
	case TermSwitchInt:
		c.operand(bb, &t.SwitchInt.Discr)
		if len(t.SwitchInt.Values) != len(t.SwitchInt.Targets) {
			c.errorf("bb%d: switch has %d values but %d targets", bb, len(t.SwitchInt.Values), len(t.SwitchInt.Targets))
		}
		for _, tgt := range t.SwitchInt.Targets {
			c.target(bb, tgt)
		}
		c.target(bb, t.SwitchInt.Otherwise)
	case TermCall:
		callee, ok := c.p.Def(t.Call.Callee.Def)
		if !ok {
			c.errorf("bb%d: call to unknown def %d", bb, t.Call.Callee.Def)
		} else if callee.Kind != DefFn && callee.Kind != DefIntrinsic {
			c.errorf("bb%d: call to non-function %s", bb, callee.Name)
		}
		for i := range t.Call.Args {
			c.operand(bb, &t.Call.Args[i])
		}
		c.place(bb, t.Call.Dest)
		c.target(bb, t.Call.Target)
	case TermAssert:
		c.operand(bb, &t.Assert.Cond)
		c.target(bb, t.Assert.Target)
	default:
		c.errorf("bb%d: unknown terminator kind %d", bb, t.Kind)
	}
}

func (c *bodyChecker) target(bb int, id BlockID) {
	if c.body.Block(id) == nil {
		c.errorf("bb%d: target bb%d does not exist", bb, id)
	}
}

func (c *bodyChecker) local(bb int, id LocalID) {
	if id < 0 || int(id) >= len(c.body.Locals) {
		c.errorf("bb%d: local L%d does not exist", bb, id)
	}
}

func (c *bodyChecker) place(bb int, p Place) {
	c.local(bb, p.Local)
	for _, proj := range p.Proj {
		if proj.Kind == PlaceProjIndex {
			c.local(bb, proj.IndexLocal)
		}
	}
}

func (c *bodyChecker) operand(bb int, op *Operand) {
	switch op.Kind {
	case OperandCopy, OperandMove:
		c.place(bb, op.Place)
	case OperandConst:
		c.constant(bb, &op.Const)
	default:
		c.errorf("bb%d: unknown operand kind %d", bb, op.Kind)
	}
}

func (c *bodyChecker) constant(bb int, k *Const) {
	if _, ok := c.p.Types.Lookup(k.Type); !ok {
		c.errorf("bb%d: constant with invalid type", bb)
	}
	switch k.Kind {
	case ConstScalar, ConstZeroSized, ConstStr:
	case ConstUnevaluated:
		item, ok := c.p.Def(k.Item.Def)
		if !ok || !item.Kind.IsConstLike() {
			c.errorf("bb%d: unevaluated constant names def %d which is not a constant", bb, k.Item.Def)
		}
	case ConstStaticRef:
		st, ok := c.p.Def(k.Static)
		if !ok || st.Kind != DefStatic {
			c.errorf("bb%d: static reference names def %d which is not a static", bb, k.Static)
		}
		if tt, ok := c.p.Types.Lookup(k.Type); ok && tt.Kind != types.KindReference && tt.Kind != types.KindPointer {
			c.errorf("bb%d: static reference must have pointer type", bb)
		}
	case ConstPromoted:
		if !k.Promoted.IsSet() || int(k.Promoted) >= len(c.def.Promoted) {
			c.errorf("bb%d: %s does not exist", bb, k.Promoted)
		}
	default:
		c.errorf("bb%d: unknown constant kind %d", bb, k.Kind)
	}
}

func (c *bodyChecker) rvalue(bb int, rv *RValue) {
	switch rv.Kind {
	case RValueUse:
		c.operand(bb, &rv.Use)
	case RValueRef, RValueAddressOf:
		c.place(bb, rv.Ref.Place)
	case RValueBinaryOp, RValueCheckedBinaryOp:
		c.operand(bb, &rv.Binary.Left)
		c.operand(bb, &rv.Binary.Right)
	case RValueUnaryOp:
		c.operand(bb, &rv.Unary.Operand)
	case RValueCast:
		c.operand(bb, &rv.Cast.Value)
		if _, ok := c.p.Types.Lookup(rv.Cast.TargetTy); !ok {
			c.errorf("bb%d: cast to invalid type", bb)
		}
	case RValueAggregate:
		if _, ok := c.p.Types.Lookup(rv.Aggregate.Type); !ok {
			c.errorf("bb%d: aggregate of invalid type", bb)
		}
		for i := range rv.Aggregate.Elems {
			c.operand(bb, &rv.Aggregate.Elems[i])
		}
	case RValueLen:
		c.place(bb, rv.Len)
	case RValueRepeat:
		c.operand(bb, &rv.Repeat.Value)
	default:
		c.errorf("bb%d: unknown rvalue kind %d", bb, rv.Kind)
	}
}
