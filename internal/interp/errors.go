package interp

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"consteval/internal/mir"
	"consteval/internal/source"
)

// Code identifies an evaluation error. Values are stable; the range selects the Kind.
type Code int

// Stable error codes - do not change values.
const (
	// Undefined behavior.
	CodeUninitBytes        Code = 1001 // CE1001: reading uninitialized memory
	CodePartialPointer     Code = 1002 // CE1002: reading or overwriting part of a pointer
	CodeDanglingPointer    Code = 1003 // CE1003: use of a dead or unknown allocation
	CodeOutOfBounds        Code = 1004 // CE1004: memory access out of bounds
	CodeMisaligned         Code = 1005 // CE1005: misaligned memory access
	CodeNullDeref          Code = 1006 // CE1006: null pointer dereference
	CodeWriteToReadOnly    Code = 1007 // CE1007: writing to immutable memory
	CodeDeadLocal          Code = 1008 // CE1008: accessing a dead local
	CodeUnreachable        Code = 1009 // CE1009: entering unreachable code
	CodeDivisionByZero     Code = 1010 // CE1010: unchecked division by zero
	CodeDivisionOverflow   Code = 1011 // CE1011: unchecked division overflow
	CodeInvalidBool        Code = 1012 // CE1012: bool that is neither 0 nor 1
	CodeInvalidChar        Code = 1013 // CE1013: char that is not a unicode scalar value
	CodeAssumeFalse        Code = 1014 // CE1014: `assume` called with false
	CodeValidationInvalid  Code = 1101 // CE1101: invalid value in the final result
	CodeValidationUninit   Code = 1102 // CE1102: uninitialized bytes in the final result
	CodeValidationPtrToInt Code = 1103 // CE1103: pointer where an integer is expected
	CodeValidationDangling Code = 1104 // CE1104: dangling reference in the final result
	CodeValidationUnalign  Code = 1105 // CE1105: unaligned reference in the final result
	CodeValidationNull     Code = 1106 // CE1106: null reference in the final result
	CodeValidationMutRef   Code = 1107 // CE1107: disallowed mutable reference
	CodeValidationMutable  Code = 1108 // CE1108: constant refers to mutable memory
	CodeValidationCell     Code = 1109 // CE1109: disallowed interior mutability
	CodeValidationNever    Code = 1110 // CE1110: value of an uninhabited type

	// Unsupported at compile time.
	CodePointerToInt      Code = 2001 // CE2001: exposing a pointer address
	CodeReadMutableGlobal Code = 2002 // CE2002: constant reads mutable global memory
	CodeUnknownIntrinsic  Code = 2003 // CE2003: intrinsic is not const-evaluable
	CodePointerCompare    Code = 2004 // CE2004: comparing pointers into different allocations
	CodePointerArith      Code = 2005 // CE2005: arithmetic on pointer values
	CodeWriteToGlobal     Code = 2006 // CE2006: modifying another item's memory

	// Invalid program.
	CodeTooGeneric       Code = 3001 // CE3001: layout depends on generic parameters
	CodeLayout           Code = 3002 // CE3002: layout computation failed
	CodeReferencedFailed Code = 3003 // CE3003: a referenced constant has errors
	CodeTypeMismatch     Code = 3004 // CE3004: ill-typed program
	CodeMissingBody      Code = 3005 // CE3005: no body for an instance

	// Resource exhaustion.
	CodeStepLimit     Code = 4001 // CE4001: step limit reached
	CodeStackOverflow Code = 4002 // CE4002: call stack limit reached

	// Panics raised by the evaluated program.
	CodePanicOverflow    Code = 5001 // CE5001: arithmetic overflow
	CodePanicDivByZero   Code = 5002 // CE5002: division by zero
	CodePanicRemByZero   Code = 5003 // CE5003: remainder by zero
	CodePanicBounds      Code = 5004 // CE5004: index out of bounds
	CodePanicNegOverflow Code = 5005 // CE5005: negation overflow
	CodePanicExplicit    Code = 5006 // CE5006: explicit panic
)

// String returns the code as "CE1001" format.
func (c Code) String() string {
	return fmt.Sprintf("CE%04d", int(c))
}

// Kind classifies an error by its code range.
func (c Code) Kind() ErrorKind {
	switch {
	case c >= 1000 && c < 2000:
		return KindUndefinedBehavior
	case c >= 2000 && c < 3000:
		return KindUnsupported
	case c >= 3000 && c < 4000:
		return KindInvalidProgram
	case c >= 4000 && c < 5000:
		return KindResourceExhaustion
	case c >= 5000 && c < 6000:
		return KindPanic
	default:
		return KindInvalidProgram
	}
}

// IsValidation reports whether the code comes from the final-value validator.
func (c Code) IsValidation() bool {
	return c >= 1100 && c < 1200
}

// ErrorKind is the structured classification of an evaluation error.
type ErrorKind uint8

const (
	KindUndefinedBehavior ErrorKind = iota + 1
	KindUnsupported
	KindInvalidProgram
	KindResourceExhaustion
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindUndefinedBehavior:
		return "undefined behavior"
	case KindUnsupported:
		return "unsupported operation"
	case KindInvalidProgram:
		return "invalid program"
	case KindResourceExhaustion:
		return "resource exhaustion"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// FrameInfo represents one frame in the evaluation backtrace.
type FrameInfo struct {
	Instance mir.Instance
	Promoted mir.Promoted
	Name     string
	Span     source.Span
}

// InterpError is a user-facing evaluation failure.
type InterpError struct {
	Code    Code
	Message string
	Span    source.Span // Location where the error occurred
	Frames  []FrameInfo // Stack frames, innermost first
	// Alloc and Offset locate the memory the error is about, when there is one.
	Alloc  AllocID
	Offset uint64
	// Path is the value path for validation failures, like ".0.<deref>[2]".
	Path string
	// Backtrace holds the Go stack captured when the error was raised.
	Backtrace []byte
	// Cause is the failure of another evaluation this one depended on.
	Cause error
}

// Error implements the error interface.
func (e *InterpError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Code.Kind(), e.Code, e.Message)
}

func (e *InterpError) Unwrap() error {
	return e.Cause
}

// Kind returns the classification of the error.
func (e *InterpError) Kind() ErrorKind {
	return e.Code.Kind()
}

// FormatWithFiles formats the error with resolved file:line:col information.
func (e *InterpError) FormatWithFiles(files *source.FileSet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", e.Error())
	sb.WriteString("at ")
	sb.WriteString(files.Position(e.Span))
	sb.WriteString("\n")
	if len(e.Frames) > 0 {
		sb.WriteString("backtrace:\n")
		for i, f := range e.Frames {
			fmt.Fprintf(&sb, "  %d: %s at %s\n", i, f.Name, files.Position(f.Span))
		}
	}
	return sb.String()
}

func errorf(code Code, format string, args ...any) *InterpError {
	return &InterpError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BacktraceMode controls capture of Go stacks for evaluation errors.
type BacktraceMode uint8

const (
	BacktraceOff BacktraceMode = iota
	// BacktraceCapture records the stack for printing at report time.
	BacktraceCapture
	// BacktraceImmediate prints the stack as soon as the error is raised.
	BacktraceImmediate
)

func (m BacktraceMode) String() string {
	switch m {
	case BacktraceCapture:
		return "capture"
	case BacktraceImmediate:
		return "immediate"
	default:
		return "off"
	}
}

// ParseBacktraceMode converts a config value to a BacktraceMode.
func ParseBacktraceMode(s string) (BacktraceMode, error) {
	switch s {
	case "", "off":
		return BacktraceOff, nil
	case "capture":
		return BacktraceCapture, nil
	case "immediate":
		return BacktraceImmediate, nil
	default:
		return BacktraceOff, fmt.Errorf("invalid backtrace mode %q (expected: off|capture|immediate)", s)
	}
}

// Bug is an internal-logic failure. It is raised with panic and never reported
// as a user diagnostic.
type Bug struct {
	Message string
	Stack   []byte
}

func (b *Bug) Error() string {
	return "internal error in constant evaluation: " + b.Message
}

// Bugf panics with a *Bug.
func Bugf(format string, args ...any) {
	panic(&Bug{Message: fmt.Sprintf(format, args...), Stack: debug.Stack()})
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
