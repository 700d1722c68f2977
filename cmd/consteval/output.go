package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"consteval/internal/consteval"
	"consteval/internal/diag"
	"consteval/internal/diagfmt"
	"consteval/internal/source"
)

type evalOutput struct {
	engine  *consteval.Engine
	fs      *source.FileSet
	bag     *diag.Bag
	results []consteval.Result
	flags   evalFlags
}

type resultJSON struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Type       string  `json:"type"`
	Value      string  `json:"value,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

type evalJSON struct {
	Results     []resultJSON                `json:"results"`
	Diagnostics diagfmt.DiagnosticsOutput `json:"diagnostics"`
}

// write prints values to out and diagnostics to errOut; the JSON format puts
// both into one document on out.
func (o evalOutput) write(out, errOut io.Writer) error {
	switch o.flags.format {
	case "json":
		return o.writeJSON(out)
	case "short":
		o.writeShort(out, errOut)
		return nil
	default:
		o.writePretty(out, errOut)
		return nil
	}
}

func (o evalOutput) typeName(r consteval.Result) string {
	prog := o.engine.Program()
	if r.Alloc.Type != 0 {
		return prog.Types.Name(r.Alloc.Type)
	}
	if d, ok := prog.Def(r.Def); ok {
		return prog.Types.Name(d.Type)
	}
	return "?"
}

func (o evalOutput) writePretty(out, errOut io.Writer) {
	name := color.New(color.Bold)
	typ := color.New(color.FgCyan)
	failed := 0
	for _, r := range o.results {
		if r.Err != nil {
			failed++
			continue
		}
		if o.flags.quiet {
			continue
		}
		fmt.Fprintf(out, "%s: %s = %s\n", name.Sprint(r.Name), typ.Sprint(o.typeName(r)), o.engine.RenderResult(r))
	}
	if o.bag.Len() > 0 {
		diagfmt.Pretty(errOut, o.bag, o.fs, diagfmt.PrettyOpts{
			Color:      useColor(),
			PathMode:   o.flags.pathMode,
			ShowNotes:  o.flags.withNotes,
			ShowDetail: o.flags.withBytes,
		})
	}
	if o.flags.quiet {
		return
	}
	summary := fmt.Sprintf("evaluated %d item(s)", len(o.results))
	if failed > 0 {
		summary += color.New(color.FgRed, color.Bold).Sprintf(", %d failed", failed)
	}
	fmt.Fprintln(errOut, summary)
}

func (o evalOutput) writeShort(out, errOut io.Writer) {
	if !o.flags.quiet {
		for _, r := range o.results {
			if r.Err == nil {
				fmt.Fprintf(out, "%s = %s\n", r.Name, o.engine.RenderResult(r))
			}
		}
	}
	if o.bag.Len() > 0 {
		fmt.Fprintln(errOut, diag.FormatShort(o.bag.Items(), o.fs, o.flags.withNotes))
	}
}

func (o evalOutput) writeJSON(out io.Writer) error {
	doc := evalJSON{
		Results: make([]resultJSON, 0, len(o.results)),
		Diagnostics: diagfmt.BuildDiagnosticsOutput(o.bag, o.fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         o.flags.pathMode,
			IncludeNotes:     o.flags.withNotes,
			IncludeDetail:    o.flags.withBytes,
		}),
	}
	for _, r := range o.results {
		rj := resultJSON{
			Name:       r.Name,
			Kind:       r.Kind.String(),
			Type:       o.typeName(r),
			DurationMS: float64(r.Duration) / float64(time.Millisecond),
		}
		if r.Err != nil {
			rj.Error = r.Err.Error()
		} else {
			rj.Value = o.engine.RenderResult(r)
		}
		doc.Results = append(doc.Results, rj)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
