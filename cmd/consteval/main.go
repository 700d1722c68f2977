package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"consteval/internal/prof"
	"consteval/internal/version"
)

// errItemsFailed is returned after the diagnostics of failed items have been
// printed, so main only sets the exit status.
var errItemsFailed = errors.New("some items failed to evaluate")

// app is one CLI invocation: the command tree plus the profiling session
// started for it.
type app struct {
	root    *cobra.Command
	profile *prof.Session
}

// newApp builds the command tree. Each call returns fresh flag state.
func newApp() *app {
	a := &app{}
	root := &cobra.Command{
		Use:               "consteval",
		Short:             "Compile-time constant evaluator",
		Long:              `consteval evaluates the constants and statics of a lowered program file (.cir) and reports evaluation errors`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.preRun,
	}

	root.AddCommand(newEvalCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newVersionCmd())

	pf := root.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")
	registerTraceFlags(root)
	a.root = root
	return a
}

// execute runs the command and then stops profiling, even when the command
// failed.
func (a *app) execute() error {
	err := a.root.Execute()
	if stopErr := a.profile.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

func (a *app) preRun(cmd *cobra.Command, args []string) error {
	if err := applyColorMode(cmd, args); err != nil {
		return err
	}
	pf := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = pf.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = pf.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = pf.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	a.profile, err = prof.Start(opts)
	return err
}

func main() {
	if err := newApp().execute(); err != nil {
		if !errors.Is(err, errItemsFailed) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		}
		os.Exit(1)
	}
}

// applyColorMode resolves --color once for every subcommand.
func applyColorMode(cmd *cobra.Command, _ []string) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func useColor() bool {
	return !color.NoColor
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
