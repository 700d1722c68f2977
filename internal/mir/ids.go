package mir

import "fmt"

type DefID int32
type BlockID int32
type LocalID int32

const (
	NoDefID   DefID   = -1
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

// ReturnLocal is the local that holds a body's result.
const ReturnLocal LocalID = 0

// Promoted is the ordinal of a promoted sub-expression inside a body.
type Promoted int32

// NoPromoted marks an evaluation of the item itself.
const NoPromoted Promoted = -1

// IsSet reports whether p names a promoted body.
func (p Promoted) IsSet() bool { return p >= 0 }

func (p Promoted) String() string {
	if p < 0 {
		return "none"
	}
	return fmt.Sprintf("promoted[%d]", int32(p))
}

// Mutability distinguishes `static` from `static mut` and shared from unique borrows.
type Mutability uint8

const (
	Not Mutability = iota
	Mut
)

func (m Mutability) String() string {
	if m == Mut {
		return "mut"
	}
	return "not"
}
