package diagfmt

import (
	"fmt"
	"strings"
)

// PathMode selects how file paths appear in rendered diagnostics.
type PathMode uint8

const (
	PathModeAuto     PathMode = iota // as recorded in the program
	PathModeAbsolute                 // resolved against the working directory
	PathModeBasename                 // file name only
)

var pathModeNames = [...]string{
	PathModeAuto:     "auto",
	PathModeAbsolute: "absolute",
	PathModeBasename: "basename",
}

func (m PathMode) String() string {
	if int(m) < len(pathModeNames) {
		return pathModeNames[m]
	}
	return fmt.Sprintf("PathMode(%d)", m)
}

// ParsePathMode reads a --path-mode value.
func ParsePathMode(s string) (PathMode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	if want == "" {
		return PathModeAuto, nil
	}
	for m, name := range pathModeNames {
		if name == want {
			return PathMode(m), nil
		}
	}
	return PathModeAuto, fmt.Errorf("unsupported path mode %q (must be auto, absolute or basename)", s)
}

type PrettyOpts struct {
	Color      bool
	PathMode   PathMode
	ShowNotes  bool
	ShowDetail bool
}

type JSONOpts struct {
	IncludePositions bool
	PathMode         PathMode
	Max              int // truncates output, not the bag
	IncludeNotes     bool
	IncludeDetail    bool
}
