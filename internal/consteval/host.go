package consteval

import (
	"errors"
	"fmt"
	"strings"

	"consteval/internal/mir"
	"consteval/internal/source"
)

// BodySource resolves lowered bodies.
type BodySource interface {
	ResolveBody(inst mir.Instance, promoted mir.Promoted) (*mir.Body, error)
}

// DefInfo answers questions about definitions.
type DefInfo interface {
	DefKind(def mir.DefID) mir.DefKind
	IsStatic(def mir.DefID) bool
	StaticMutability(def mir.DefID) (mir.Mutability, bool)
}

// SpanResolver supplies source locations and printable paths of
// definitions for diagnostics.
type SpanResolver interface {
	DefSpan(def mir.DefID) source.Span
	DefPath(def mir.DefID) string
}

// ErrNoBody is returned when a definition has no lowered body.
var ErrNoBody = errors.New("no lowered body")

// ProgramSource serves BodySource, DefInfo and SpanResolver from a program.
type ProgramSource struct {
	Program *mir.Program
}

func (s ProgramSource) ResolveBody(inst mir.Instance, promoted mir.Promoted) (*mir.Body, error) {
	d, ok := s.Program.Def(inst.Def)
	if !ok {
		return nil, fmt.Errorf("def#%d: %w", inst.Def, ErrNoBody)
	}
	if len(inst.Args) != len(d.Generics) {
		return nil, fmt.Errorf("`%s` expects %d generic arguments, got %d", d.Name, len(d.Generics), len(inst.Args))
	}
	if promoted.IsSet() {
		if int(promoted) >= len(d.Promoted) || d.Promoted[promoted] == nil {
			return nil, fmt.Errorf("`%s` has no %s: %w", d.Name, promoted, ErrNoBody)
		}
		return d.Promoted[promoted], nil
	}
	if d.Body == nil {
		return nil, fmt.Errorf("`%s`: %w", d.Name, ErrNoBody)
	}
	return d.Body, nil
}

func (s ProgramSource) DefKind(def mir.DefID) mir.DefKind {
	if d, ok := s.Program.Def(def); ok {
		return d.Kind
	}
	return mir.DefInvalid
}

func (s ProgramSource) IsStatic(def mir.DefID) bool {
	return s.DefKind(def) == mir.DefStatic
}

func (s ProgramSource) StaticMutability(def mir.DefID) (mir.Mutability, bool) {
	d, ok := s.Program.Def(def)
	if !ok || d.Kind != mir.DefStatic {
		return mir.Not, false
	}
	return d.Mutability, true
}

func (s ProgramSource) DefSpan(def mir.DefID) source.Span {
	if d, ok := s.Program.Def(def); ok {
		return d.Span
	}
	return source.NoSpan
}

func (s ProgramSource) DefPath(def mir.DefID) string {
	if d, ok := s.Program.Def(def); ok {
		return strings.TrimSpace(d.Name)
	}
	return fmt.Sprintf("def#%d", def)
}
