package layout

import (
	"errors"
	"fmt"
	"strings"

	"consteval/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrTooGeneric means the type still mentions a generic parameter.
	LayoutErrTooGeneric
	// LayoutErrOpaqueHidden means an opaque type was queried without RevealAll.
	LayoutErrOpaqueHidden
	// LayoutErrSizeOverflow means the size does not fit the target address space.
	LayoutErrSizeOverflow
	// LayoutErrUnknownType is returned for ids the interner does not know.
	LayoutErrUnknownType
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Cycle []types.TypeID // for LayoutErrRecursiveUnsized
	Err   error          // for LayoutErrSizeOverflow
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrTooGeneric:
		return fmt.Sprintf("layout of type#%d depends on generic parameters", e.Type)
	case LayoutErrOpaqueHidden:
		return fmt.Sprintf("opaque type#%d cannot be laid out without revealing its hidden type", e.Type)
	case LayoutErrSizeOverflow:
		if e.Err != nil {
			return fmt.Sprintf("type#%d is too big for the target: %v", e.Type, e.Err)
		}
		return fmt.Sprintf("type#%d is too big for the target", e.Type)
	case LayoutErrUnknownType:
		return fmt.Sprintf("unknown type#%d", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TooGeneric reports whether err is a layout error caused by unsubstituted generics.
func TooGeneric(err error) bool {
	var le *LayoutError
	return errors.As(err, &le) && le.Kind == LayoutErrTooGeneric
}
