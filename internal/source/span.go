package source

import "fmt"

// Span is the byte range [Start, End) inside one file of a FileSet.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

// NoSpan marks a missing location.
var NoSpan = Span{}

// Known reports whether s points into a file.
func (s Span) Known() bool { return s != NoSpan }

func (s Span) String() string {
	if !s.Known() {
		return "<no-span>"
	}
	return fmt.Sprintf("file%d[%d..%d)", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing both s and other. Spans from
// different files are not merged, and an unknown span adds nothing.
func (s Span) Cover(other Span) Span {
	switch {
	case !other.Known() || s.File != other.File:
		return s
	case !s.Known():
		return other
	}
	s.Start = min(s.Start, other.Start)
	s.End = max(s.End, other.End)
	return s
}
