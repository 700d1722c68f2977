package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"consteval/internal/mir"
	"consteval/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a program:
// 1) every def span is non-empty and within the bounds of its file
// 2) every body span and statement span stays inside the same file
// 3) promoted bodies point into the file of their owner
func CheckSpanInvariants(prog *mir.Program) error {
	if prog == nil {
		return fmt.Errorf("nil program")
	}
	for i := range prog.Defs {
		d := &prog.Defs[i]
		if !d.Span.Known() {
			continue
		}
		if d.Span.End <= d.Span.Start {
			return fmt.Errorf("%s: empty span %v", d.Name, d.Span)
		}
		if err := checkInFile(prog, d.Span); err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		bodies := append([]*mir.Body{d.Body}, d.Promoted...)
		for n, b := range bodies {
			if b == nil {
				continue
			}
			if err := checkBody(prog, d.Span.File, b); err != nil {
				if n == 0 {
					return fmt.Errorf("%s: %w", d.Name, err)
				}
				return fmt.Errorf("%s::%s: %w", d.Name, mir.Promoted(n-1), err)
			}
		}
	}
	return nil
}

func checkBody(prog *mir.Program, file source.FileID, b *mir.Body) error {
	check := func(sp source.Span) error {
		if !sp.Known() {
			return nil
		}
		if sp.File != file {
			return fmt.Errorf("span points to different file id: got=%d want=%d", sp.File, file)
		}
		return checkInFile(prog, sp)
	}
	if err := check(b.Span); err != nil {
		return err
	}
	for _, bb := range b.Blocks {
		for _, st := range bb.Stmts {
			if err := check(st.Span); err != nil {
				return err
			}
		}
		if err := check(bb.Term.Span); err != nil {
			return err
		}
	}
	return nil
}

func checkInFile(prog *mir.Program, sp source.Span) error {
	idx := int(sp.File)
	if idx < 0 || idx >= len(prog.Files) {
		return fmt.Errorf("span file %d out of range", sp.File)
	}
	lenContent, err := safecast.Conv[uint32](len(prog.Files[idx].Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if sp.End > lenContent {
		return fmt.Errorf("span end beyond content: %d > %d", sp.End, lenContent)
	}
	return nil
}
