package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Constant evaluation
	EvalInfo            Code = 1000
	EvalConstFailed     Code = 1001
	EvalStaticFailed    Code = 1002
	EvalUndefined       Code = 1003
	EvalReferencedError Code = 1004
	EvalCycle           Code = 1005

	// Program files
	ProgInfo     Code = 2000
	ProgInvalid  Code = 2001
	ProgNotFound Code = 2002

	IOLoadFileError Code = 4001

	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:         "Unknown error",
	EvalInfo:            "Constant evaluation information",
	EvalConstFailed:     "evaluation of constant value failed",
	EvalStaticFailed:    "could not evaluate static initializer",
	EvalUndefined:       "it is undefined behavior to use this value",
	EvalReferencedError: "erroneous constant encountered",
	EvalCycle:           "cycle detected when evaluating a constant",
	ProgInfo:            "Program information",
	ProgInvalid:         "malformed program",
	ProgNotFound:        "item not found",
	IOLoadFileError:     "I/O load file error",
	ObsInfo:             "Observability information",
	ObsTimings:          "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("EVAL%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("PRG%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
