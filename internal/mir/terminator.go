package mir

import "consteval/internal/source"

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermSwitchInt
	TermReturn
	TermUnreachable
	TermCall
	TermAssert
)

type Terminator struct {
	Kind TermKind
	Span source.Span

	Goto      GotoTerm
	SwitchInt SwitchIntTerm
	Call      CallTerm
	Assert    AssertTerm
}

type GotoTerm struct {
	Target BlockID
}

type SwitchIntTerm struct {
	Discr Operand
	// Values[i] branches to Targets[i]; anything else goes to Otherwise.
	Values    []uint64
	Targets   []BlockID
	Otherwise BlockID
}

// CallTerm calls a function or intrinsic and continues at Target.
type CallTerm struct {
	Callee Instance
	Args   []Operand
	Dest   Place
	Target BlockID
}

// AssertKind names the check an Assert terminator performs.
type AssertKind uint8

const (
	AssertOverflow AssertKind = iota
	AssertOverflowNeg
	AssertDivisionByZero
	AssertRemainderByZero
	AssertBoundsCheck
)

// AssertMsg describes the panic raised when an assertion fails.
type AssertMsg struct {
	Kind  AssertKind
	Op    BinOp // AssertOverflow
	Left  Operand
	Right Operand // the length for AssertBoundsCheck
}

// AssertTerm panics with Msg unless Cond equals Expected.
type AssertTerm struct {
	Cond     Operand
	Expected bool
	Msg      AssertMsg
	Target   BlockID
}
