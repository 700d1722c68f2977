package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"consteval/internal/consteval"
	"consteval/internal/mir"
	"consteval/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "", "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

type evalOutcome struct {
	results []consteval.Result
	err     error
}

// runEvalWithUI evaluates defs in the background while a progress view
// follows the batch events.
func runEvalWithUI(ctx context.Context, out io.Writer, title string, engine *consteval.Engine, defs []mir.DefID, jobs int) ([]consteval.Result, error) {
	names := make([]string, len(defs))
	for i, def := range defs {
		if d, ok := engine.Program().Def(def); ok {
			names[i] = d.Name
		}
	}
	events := make(chan consteval.Event, 256)
	outcomeCh := make(chan evalOutcome, 1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		res, err := engine.EvalAll(ctx, defs, jobs, events)
		outcomeCh <- evalOutcome{results: res, err: err}
		close(events)
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, names, events), tea.WithOutput(out), tea.WithContext(ctx))
	final, uiErr := program.Run()
	if uiErr != nil || ui.Interrupted(final) {
		cancel()
	}
	// Keep EvalAll from blocking on a view that is gone.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	if ui.Interrupted(final) {
		return outcome.results, context.Canceled
	}
	return outcome.results, outcome.err
}
