package interp

import (
	"fmt"

	"consteval/internal/mir"
	"consteval/internal/trace"
)

// Step executes one statement or terminator of the top frame. It returns
// false once the stack is empty.
func (m *Machine) Step() (ok bool, err error) {
	if len(m.stack) == 0 {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ie, isErr := r.(*InterpError)
			if !isErr {
				panic(r)
			}
			ok = false
			err = m.decorate(ie)
		}
	}()

	m.steps++
	if m.cfg.StepLimit > 0 && m.steps > m.cfg.StepLimit {
		return false, m.decorate(errorf(CodeStepLimit,
			"exceeded the step limit of %d; the constant may not terminate", m.cfg.StepLimit))
	}

	f := m.top()
	bb := f.Body.Block(f.Block)
	if bb == nil {
		Bugf("%s: block bb%d does not exist", f.Name, f.Block)
	}
	if f.Stmt < len(bb.Stmts) {
		st := &bb.Stmts[f.Stmt]
		m.traceStep(f, "stmt")
		if err := m.evalStatement(f, st); err != nil {
			return false, m.decorate(err)
		}
		f.Stmt++
		return true, nil
	}
	m.traceStep(f, "term")
	if err := m.evalTerminator(f, &bb.Term); err != nil {
		return false, m.decorate(err)
	}
	return true, nil
}

func (m *Machine) traceStep(f *Frame, what string) {
	t := m.cfg.Tracer
	if !t.Enabled() || !t.Level().ShouldEmit(trace.ScopeStep) {
		return
	}
	trace.Point(t, trace.ScopeStep, what, fmt.Sprintf("%s bb%d[%d]", f.Name, f.Block, f.Stmt), m.cfg.TraceParent)
}

func (m *Machine) evalStatement(f *Frame, st *mir.Stmt) error {
	switch st.Kind {
	case mir.StmtNop:
		return nil
	case mir.StmtAssign:
		return m.evalAssign(f, &st.Assign)
	case mir.StmtStorageLive:
		return m.storageLive(f, st.Local)
	case mir.StmtStorageDead:
		return m.storageDead(f, st.Local)
	default:
		Bugf("unknown statement kind %d", st.Kind)
		return nil
	}
}

func (m *Machine) evalTerminator(f *Frame, t *mir.Terminator) error {
	switch t.Kind {
	case mir.TermGoto:
		f.jump(t.Goto.Target)
		return nil

	case mir.TermSwitchInt:
		op, err := m.evalOperand(f, t.SwitchInt.Discr)
		if err != nil {
			return err
		}
		s, err := m.ReadScalar(op)
		if err != nil {
			return err
		}
		v, err := s.ToBits()
		if err != nil {
			return err
		}
		target := t.SwitchInt.Otherwise
		for i, want := range t.SwitchInt.Values {
			if want&sizeMask(int(s.Size)) == v {
				target = t.SwitchInt.Targets[i]
				break
			}
		}
		f.jump(target)
		return nil

	case mir.TermReturn:
		return m.popFrame()

	case mir.TermUnreachable:
		return errorf(CodeUnreachable, "entering unreachable code")

	case mir.TermCall:
		return m.evalCall(f, &t.Call)

	case mir.TermAssert:
		return m.evalAssert(f, &t.Assert)

	case mir.TermNone:
		Bugf("%s: bb%d has no terminator", f.Name, f.Block)
		return nil

	default:
		Bugf("unknown terminator kind %d", t.Kind)
		return nil
	}
}

func (m *Machine) evalCall(f *Frame, c *mir.CallTerm) error {
	callee := m.monoInstance(f, c.Callee)
	def, ok := m.Program.Def(callee.Def)
	if !ok {
		Bugf("call to unknown def#%d", callee.Def)
	}
	args := make([]OpTy, len(c.Args))
	for i, a := range c.Args {
		op, err := m.evalOperand(f, a)
		if err != nil {
			return err
		}
		args[i] = op
	}
	dest, err := m.evalPlace(f, c.Dest)
	if err != nil {
		return err
	}

	if def.Kind == mir.DefIntrinsic {
		if err := m.callIntrinsic(def, callee, args, dest); err != nil {
			return err
		}
		f.jump(c.Target)
		return nil
	}

	body, err := m.host.ResolveBody(callee, mir.NoPromoted)
	if err != nil {
		return &InterpError{Code: CodeMissingBody, Message: fmt.Sprintf("cannot call `%s`: %v", m.Program.InstanceString(callee), err)}
	}
	if len(args) != body.ArgCount {
		return errorf(CodeTypeMismatch, "`%s` takes %d arguments but %d were supplied", m.Program.InstanceString(callee), body.ArgCount, len(args))
	}
	if err := m.PushFrame(callee, mir.NoPromoted, body, dest, StackPopCleanup{Cleanup: true}, c.Target); err != nil {
		return err
	}
	if err := m.MarkAlwaysLive(); err != nil {
		return err
	}
	frame := m.top()
	for i, arg := range args {
		local := mir.LocalID(i + 1)
		if !frame.Locals[local].Live {
			if err := m.storageLive(frame, local); err != nil {
				return err
			}
		}
		place, err := m.localPlace(frame, local)
		if err != nil {
			return err
		}
		if err := m.copyOp(arg, place); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) evalAssert(f *Frame, a *mir.AssertTerm) error {
	op, err := m.evalOperand(f, a.Cond)
	if err != nil {
		return err
	}
	s, err := m.ReadScalar(op)
	if err != nil {
		return err
	}
	cond, err := s.ToBool()
	if err != nil {
		return err
	}
	if cond == a.Expected {
		f.jump(a.Target)
		return nil
	}
	return m.assertFailure(f, &a.Msg)
}

// assertFailure builds the panic raised by a failed assertion.
func (m *Machine) assertFailure(f *Frame, msg *mir.AssertMsg) error {
	operand := func(o mir.Operand) (string, uint64, error) {
		op, err := m.evalOperand(f, o)
		if err != nil {
			return "", 0, err
		}
		s, err := m.ReadScalar(op)
		if err != nil {
			return "", 0, err
		}
		v, err := s.ToBits()
		if err != nil {
			return "", 0, err
		}
		return formatInt(v, m.intTyOf(op.Type, int(s.Size))), v, nil
	}
	left, lv, err := operand(msg.Left)
	if err != nil {
		return err
	}
	switch msg.Kind {
	case mir.AssertOverflow:
		right, _, err := operand(msg.Right)
		if err != nil {
			return err
		}
		return errorf(CodePanicOverflow, "attempt to compute `%s %s %s`, which would overflow", left, msg.Op.Symbol(), right)
	case mir.AssertOverflowNeg:
		return errorf(CodePanicNegOverflow, "attempt to negate `%s`, which would overflow", left)
	case mir.AssertDivisionByZero:
		return errorf(CodePanicDivByZero, "attempt to divide `%s` by zero", left)
	case mir.AssertRemainderByZero:
		return errorf(CodePanicRemByZero, "attempt to calculate the remainder of `%s` with a divisor of zero", left)
	case mir.AssertBoundsCheck:
		_, n, err := operand(msg.Right)
		if err != nil {
			return err
		}
		return errorf(CodePanicBounds, "index out of bounds: the length is %d but the index is %d", n, lv)
	default:
		Bugf("unknown assert kind %d", msg.Kind)
		return nil
	}
}
