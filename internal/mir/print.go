package mir

import (
	"fmt"
	"io"
	"strings"

	"consteval/internal/types"
)

// DumpOptions configures program dumping.
type DumpOptions struct {
	// Only restricts the dump to the named definitions when non-empty.
	Only []string
}

// Dump writes a human-readable representation of a program.
func Dump(w io.Writer, p *Program, opts DumpOptions) error {
	if w == nil || p == nil {
		return nil
	}
	want := make(map[string]bool, len(opts.Only))
	for _, n := range opts.Only {
		want[n] = true
	}
	fmt.Fprintf(w, "defs=%d\n", len(p.Defs))
	for i := range p.Defs {
		d := &p.Defs[i]
		if len(want) > 0 && !want[d.Name] {
			continue
		}
		if err := dumpDef(w, p, d); err != nil {
			return err
		}
	}
	return nil
}

func dumpDef(w io.Writer, p *Program, d *Def) error {
	header := fmt.Sprintf("\n%s %s", d.Kind, d.Name)
	if d.Kind == DefStatic && d.Mutability == Mut {
		header = fmt.Sprintf("\nstatic mut %s", d.Name)
	}
	if len(d.Generics) > 0 {
		header += "<" + strings.Join(d.Generics, ", ") + ">"
	}
	if d.Type != types.NoTypeID {
		header += ": " + typeStr(p.Types, d.Type)
	}
	if d.Kind == DefIntrinsic {
		_, err := fmt.Fprintf(w, "%s = intrinsic %q\n", header, d.Intrinsic)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s:\n", header); err != nil {
		return err
	}
	dumpBody(w, p.Types, d.Body, "  ")
	for i, pb := range d.Promoted {
		fmt.Fprintf(w, "  promoted[%d]:\n", i)
		dumpBody(w, p.Types, pb, "    ")
	}
	return nil
}

func dumpBody(w io.Writer, typesIn *types.Interner, b *Body, indent string) {
	if b == nil {
		fmt.Fprintf(w, "%s<no body>\n", indent)
		return
	}
	fmt.Fprintf(w, "%slocals:\n", indent)
	for i := range b.Locals {
		l := b.Locals[i]
		name := l.Name
		if name == "" {
			name = "_"
		}
		role := ""
		switch {
		case i == int(ReturnLocal):
			role = " [ret]"
		case i <= b.ArgCount:
			role = " [arg]"
		}
		fmt.Fprintf(w, "%s  L%d: %s%s name=%s\n", indent, i, typeStr(typesIn, l.Type), role, name)
	}
	for i := range b.Blocks {
		bb := &b.Blocks[i]
		fmt.Fprintf(w, "%sbb%d:\n", indent, bb.ID)
		for j := range bb.Stmts {
			fmt.Fprintf(w, "%s  %s\n", indent, formatStmt(typesIn, &bb.Stmts[j]))
		}
		fmt.Fprintf(w, "%s  %s\n", indent, formatTerm(typesIn, &bb.Term))
	}
}

func formatStmt(typesIn *types.Interner, st *Stmt) string {
	switch st.Kind {
	case StmtAssign:
		return fmt.Sprintf("%s = %s", formatPlace(st.Assign.Dst), formatRValue(typesIn, &st.Assign.Src))
	case StmtStorageLive:
		return fmt.Sprintf("storage_live L%d", st.Local)
	case StmtStorageDead:
		return fmt.Sprintf("storage_dead L%d", st.Local)
	case StmtNop:
		return "nop"
	default:
		return "<stmt?>"
	}
}

func formatTerm(typesIn *types.Interner, term *Terminator) string {
	switch term.Kind {
	case TermNone:
		return "<unterminated>"
	case TermReturn:
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", term.Goto.Target)
	case TermSwitchInt:
		var sb strings.Builder
		fmt.Fprintf(&sb, "switch_int %s {", formatOperand(typesIn, &term.SwitchInt.Discr))
		for i, v := range term.SwitchInt.Values {
			if i < len(term.SwitchInt.Targets) {
				fmt.Fprintf(&sb, " %d -> bb%d;", v, term.SwitchInt.Targets[i])
			}
		}
		fmt.Fprintf(&sb, " otherwise -> bb%d; }", term.SwitchInt.Otherwise)
		return sb.String()
	case TermCall:
		return fmt.Sprintf("%s = call def#%d(%s) -> bb%d",
			formatPlace(term.Call.Dest),
			term.Call.Callee.Def,
			formatOperands(typesIn, term.Call.Args),
			term.Call.Target,
		)
	case TermAssert:
		neg := ""
		if !term.Assert.Expected {
			neg = "!"
		}
		return fmt.Sprintf("assert(%s%s, %s) -> bb%d",
			neg,
			formatOperand(typesIn, &term.Assert.Cond),
			formatAssertKind(term.Assert.Msg),
			term.Assert.Target,
		)
	case TermUnreachable:
		return "unreachable"
	default:
		return "<term?>"
	}
}

func formatAssertKind(m AssertMsg) string {
	switch m.Kind {
	case AssertOverflow:
		return "overflow " + m.Op.String()
	case AssertOverflowNeg:
		return "overflow neg"
	case AssertDivisionByZero:
		return "division by zero"
	case AssertRemainderByZero:
		return "remainder by zero"
	case AssertBoundsCheck:
		return "bounds check"
	default:
		return "?"
	}
}

func formatPlace(p Place) string {
	if !p.IsValid() {
		return "L?"
	}
	out := fmt.Sprintf("L%d", p.Local)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjDeref:
			out = fmt.Sprintf("(*%s)", out)
		case PlaceProjField:
			out += fmt.Sprintf(".%d", proj.FieldIdx)
		case PlaceProjIndex:
			out += fmt.Sprintf("[L%d]", proj.IndexLocal)
		case PlaceProjConstIndex:
			if proj.FromEnd {
				out += fmt.Sprintf("[-%d]", proj.Offset)
			} else {
				out += fmt.Sprintf("[%d]", proj.Offset)
			}
		default:
			out += ".<?>"
		}
	}
	return out
}

func formatOperands(typesIn *types.Interner, ops []Operand) string {
	parts := make([]string, len(ops))
	for i := range ops {
		parts[i] = formatOperand(typesIn, &ops[i])
	}
	return strings.Join(parts, ", ")
}

func formatOperand(typesIn *types.Interner, op *Operand) string {
	switch op.Kind {
	case OperandConst:
		return formatConst(typesIn, &op.Const)
	case OperandCopy:
		return fmt.Sprintf("copy %s", formatPlace(op.Place))
	case OperandMove:
		return fmt.Sprintf("move %s", formatPlace(op.Place))
	default:
		return "<op?>"
	}
}

func formatConst(typesIn *types.Interner, c *Const) string {
	switch c.Kind {
	case ConstScalar:
		return fmt.Sprintf("const %#x_%s", c.Bits, typeStr(typesIn, c.Type))
	case ConstZeroSized:
		return fmt.Sprintf("const zst %s", typeStr(typesIn, c.Type))
	case ConstStr:
		return fmt.Sprintf("const %q", c.Str)
	case ConstUnevaluated:
		return fmt.Sprintf("const item def#%d", c.Item.Def)
	case ConstStaticRef:
		return fmt.Sprintf("const &static def#%d", c.Static)
	case ConstPromoted:
		return fmt.Sprintf("const %s", c.Promoted)
	default:
		return "const ?"
	}
}

func formatRValue(typesIn *types.Interner, rv *RValue) string {
	switch rv.Kind {
	case RValueUse:
		return formatOperand(typesIn, &rv.Use)
	case RValueRef:
		if rv.Ref.Mutable {
			return "&mut " + formatPlace(rv.Ref.Place)
		}
		return "&" + formatPlace(rv.Ref.Place)
	case RValueAddressOf:
		if rv.Ref.Mutable {
			return "&raw mut " + formatPlace(rv.Ref.Place)
		}
		return "&raw const " + formatPlace(rv.Ref.Place)
	case RValueBinaryOp:
		return fmt.Sprintf("%s(%s, %s)", rv.Binary.Op, formatOperand(typesIn, &rv.Binary.Left), formatOperand(typesIn, &rv.Binary.Right))
	case RValueCheckedBinaryOp:
		return fmt.Sprintf("Checked%s(%s, %s)", rv.Binary.Op, formatOperand(typesIn, &rv.Binary.Left), formatOperand(typesIn, &rv.Binary.Right))
	case RValueUnaryOp:
		return fmt.Sprintf("%s(%s)", rv.Unary.Op, formatOperand(typesIn, &rv.Unary.Operand))
	case RValueCast:
		return fmt.Sprintf("%s as %s (%s)", formatOperand(typesIn, &rv.Cast.Value), typeStr(typesIn, rv.Cast.TargetTy), rv.Cast.Kind)
	case RValueAggregate:
		return fmt.Sprintf("%s {%s}", typeStr(typesIn, rv.Aggregate.Type), formatOperands(typesIn, rv.Aggregate.Elems))
	case RValueLen:
		return fmt.Sprintf("Len(%s)", formatPlace(rv.Len))
	case RValueRepeat:
		return fmt.Sprintf("[%s; %d]", formatOperand(typesIn, &rv.Repeat.Value), rv.Repeat.Count)
	default:
		return "<rvalue?>"
	}
}

func typeStr(typesIn *types.Interner, id types.TypeID) string {
	if id == types.NoTypeID {
		return "?"
	}
	if typesIn == nil {
		return fmt.Sprintf("type#%d", id)
	}
	if _, ok := typesIn.Lookup(id); !ok {
		return fmt.Sprintf("type#%d", id)
	}
	return typesIn.Name(id)
}
