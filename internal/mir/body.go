package mir

import (
	"consteval/internal/source"
	"consteval/internal/types"
)

// Body is the lowered control-flow graph of one function, constant or promoted expression.
type Body struct {
	Span source.Span
	// Locals[0] is the return place; Locals[1..ArgCount] are the arguments.
	Locals   []Local
	ArgCount int
	Blocks   []Block
}

// ResultType is the type of the return place.
func (b *Body) ResultType() types.TypeID {
	if b == nil || len(b.Locals) == 0 {
		return types.NoTypeID
	}
	return b.Locals[ReturnLocal].Type
}

// Block returns the basic block with the given id.
func (b *Body) Block(id BlockID) *Block {
	if b == nil || id < 0 || int(id) >= len(b.Blocks) {
		return nil
	}
	return &b.Blocks[id]
}

type Local struct {
	Name    string
	Type    types.TypeID
	Span    source.Span
	Mutable bool
}

type Block struct {
	ID    BlockID
	Stmts []Stmt
	Term  Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	StmtNop StmtKind = iota
	StmtAssign
	StmtStorageLive
	StmtStorageDead
)

// Stmt is a single non-branching statement.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	Assign AssignStmt
	Local  LocalID // StorageLive / StorageDead
}

type AssignStmt struct {
	Dst Place
	Src RValue
}

// AlwaysLiveLocals returns the locals that never appear in StorageLive or
// StorageDead. They are live for the whole body.
func AlwaysLiveLocals(b *Body) []bool {
	if b == nil {
		return nil
	}
	live := make([]bool, len(b.Locals))
	for i := range live {
		live[i] = true
	}
	for i := range b.Blocks {
		for _, st := range b.Blocks[i].Stmts {
			if st.Kind != StmtStorageLive && st.Kind != StmtStorageDead {
				continue
			}
			if st.Local >= 0 && int(st.Local) < len(live) {
				live[st.Local] = false
			}
		}
	}
	if len(live) > 0 {
		live[ReturnLocal] = true
	}
	return live
}
