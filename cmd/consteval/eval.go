package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"consteval/internal/config"
	"consteval/internal/consteval"
	"consteval/internal/diag"
	"consteval/internal/diagfmt"
	"consteval/internal/interp"
	"consteval/internal/mir"
	"consteval/internal/observ"
	"consteval/internal/query"
	"consteval/internal/source"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [flags] <file.cir> [item...]",
		Short: "Evaluate constants and statics of a program file",
		Long:  `Evaluate the named items of a program file, or every non-generic constant and static when no item is given`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEval,
	}
	f := cmd.Flags()
	f.String("format", "pretty", "output format (pretty|json|short)")
	f.Int("jobs", 0, "max concurrent evaluations (0=auto)")
	f.String("ui", "off", "show a progress view (auto|on|off)")
	f.String("config", "", "path to consteval.toml (default: nearest one above the program file)")
	f.Uint64("steps", config.DefaultSteps, "step limit per evaluation")
	f.Int("stack", config.DefaultStack, "call stack limit")
	f.String("backtrace", "off", "capture Go stacks for evaluation errors (off|capture|immediate)")
	f.String("validation-order", "depth", "order of validating references (depth|breadth)")
	f.Bool("no-align-check", false, "do not reject misaligned accesses")
	f.Bool("cache", false, "persist evaluated values on disk")
	f.String("cache-dir", "", "disk cache directory (default: $XDG_CACHE_HOME/consteval)")
	f.Bool("with-notes", true, "include diagnostic notes")
	f.Bool("with-bytes", true, "include raw bytes of invalid values")
	f.String("path-mode", "auto", "how to print file paths in diagnostics (auto|absolute|basename)")
	return cmd
}

type evalFlags struct {
	format    string
	jobs      int
	ui        uiMode
	quiet     bool
	timings   bool
	maxDiags  int
	withNotes bool
	withBytes bool
	pathMode  diagfmt.PathMode
}

func readEvalFlags(cmd *cobra.Command) (evalFlags, error) {
	var fl evalFlags
	var err error
	if fl.format, err = cmd.Flags().GetString("format"); err != nil {
		return fl, fmt.Errorf("failed to get format flag: %w", err)
	}
	fl.format = strings.ToLower(fl.format)
	switch fl.format {
	case "pretty", "json", "short":
	default:
		return fl, fmt.Errorf("unsupported format %q (must be pretty, json or short)", fl.format)
	}
	if fl.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return fl, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	uiStr, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fl, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if fl.ui, err = readUIMode(uiStr); err != nil {
		return fl, err
	}
	if fl.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return fl, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	if fl.withBytes, err = cmd.Flags().GetBool("with-bytes"); err != nil {
		return fl, fmt.Errorf("failed to get with-bytes flag: %w", err)
	}
	pathStr, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return fl, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	if fl.pathMode, err = diagfmt.ParsePathMode(pathStr); err != nil {
		return fl, err
	}
	pf := cmd.Root().PersistentFlags()
	if fl.quiet, err = pf.GetBool("quiet"); err != nil {
		return fl, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if fl.timings, err = pf.GetBool("timings"); err != nil {
		return fl, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if fl.maxDiags, err = pf.GetInt("max-diagnostics"); err != nil {
		return fl, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	return fl, nil
}

// loadConfig resolves consteval.toml and applies the flags the user set
// explicitly on top of it.
func loadConfig(cmd *cobra.Command, programPath string) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Discover(filepath.Dir(programPath))
	}
	if err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("steps") {
		if cfg.StepLimit, err = f.GetUint64("steps"); err != nil {
			return config.Config{}, fmt.Errorf("failed to get steps flag: %w", err)
		}
	}
	if f.Changed("stack") {
		if cfg.StackLimit, err = f.GetInt("stack"); err != nil {
			return config.Config{}, fmt.Errorf("failed to get stack flag: %w", err)
		}
	}
	if f.Changed("backtrace") {
		s, err := f.GetString("backtrace")
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get backtrace flag: %w", err)
		}
		if cfg.Backtrace, err = interp.ParseBacktraceMode(s); err != nil {
			return config.Config{}, fmt.Errorf("--backtrace: %w", err)
		}
	}
	if f.Changed("validation-order") {
		s, err := f.GetString("validation-order")
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get validation-order flag: %w", err)
		}
		if cfg.ValidationOrder, err = interp.ParseValidationOrder(s); err != nil {
			return config.Config{}, fmt.Errorf("--validation-order: %w", err)
		}
	}
	if f.Changed("no-align-check") {
		off, err := f.GetBool("no-align-check")
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get no-align-check flag: %w", err)
		}
		cfg.CheckAlignment = !off
	}
	if f.Changed("cache") {
		if cfg.CacheEnabled, err = f.GetBool("cache"); err != nil {
			return config.Config{}, fmt.Errorf("failed to get cache flag: %w", err)
		}
	}
	if f.Changed("cache-dir") {
		if cfg.CacheDir, err = f.GetString("cache-dir"); err != nil {
			return config.Config{}, fmt.Errorf("failed to get cache-dir flag: %w", err)
		}
	}
	return cfg, nil
}

// loadProgram reads and validates a program file. The returned digest
// identifies the program in the disk cache.
func loadProgram(path string) (*mir.Program, string, error) {
	// #nosec G304 -- path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	prog, err := mir.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	if err := mir.Validate(prog); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return prog, hex.EncodeToString(sum[:]), nil
}

func runEval(cmd *cobra.Command, args []string) error {
	tr, cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	defer dumpTraceOnPanic(tr.tracer)

	fl, err := readEvalFlags(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	path := args[0]
	timer := observ.NewTimer()

	var cfg config.Config
	if err := timer.Track("config", func() (err error) {
		cfg, err = loadConfig(cmd, path)
		return err
	}); err != nil {
		return err
	}

	var prog *mir.Program
	var digest string
	if err := timer.Track("load", func() (err error) {
		prog, digest, err = loadProgram(path)
		return err
	}); err != nil {
		return err
	}

	bag := diag.NewBag(fl.maxDiags)
	opts := consteval.Options{
		Target:          cfg.Target,
		StepLimit:       cfg.StepLimit,
		StackLimit:      cfg.StackLimit,
		CheckAlignment:  cfg.CheckAlignment,
		Backtrace:       cfg.Backtrace,
		BacktraceOut:    cmd.ErrOrStderr(),
		ValidationOrder: cfg.ValidationOrder,
		Tracer:          tr.tracer,
		Reporter:        diag.NewDedupReporter(&diag.BagReporter{Bag: bag}),
	}
	if cfg.CacheEnabled {
		dc, err := query.OpenDiskCache(cfg.CacheDir, "consteval")
		if err != nil {
			return fmt.Errorf("open disk cache: %w", err)
		}
		opts.Disk, opts.DiskPrefix = dc, digest
	}
	engine, err := consteval.New(prog, opts)
	if err != nil {
		return err
	}

	defs := selectItems(engine, prog, args[1:], bag)
	heartbeat := tr.startHeartbeat(engine)

	var results []consteval.Result
	evalErr := timer.Track("eval", func() (err error) {
		if shouldUseTUI(fl.ui) && fl.format == "pretty" {
			results, err = runEvalWithUI(ctx, cmd.OutOrStdout(), "eval "+filepath.Base(path), engine, defs, fl.jobs)
			return err
		}
		results, err = engine.EvalAll(ctx, defs, fl.jobs, nil)
		return err
	})
	heartbeat.Stop()
	if evalErr != nil {
		return evalErr
	}

	failed := bag.HasErrors()
	for _, r := range results {
		failed = failed || r.Err != nil
	}
	if fl.timings {
		if d, err := timer.Diagnostic(path); err == nil && fl.format == "json" {
			bag.Add(d)
		}
	}

	bag.Sort()
	out := evalOutput{
		engine:  engine,
		fs:      prog.FileSet(),
		bag:     bag,
		results: results,
		flags:   fl,
	}
	if err := out.write(cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		return err
	}
	if fl.timings && fl.format != "json" {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if failed {
		return errItemsFailed
	}
	return nil
}

// selectItems resolves item names; unknown names are reported into bag and
// skipped.
func selectItems(engine *consteval.Engine, prog *mir.Program, names []string, bag *diag.Bag) []mir.DefID {
	if len(names) == 0 {
		return engine.Items()
	}
	defs := make([]mir.DefID, 0, len(names))
	for _, name := range names {
		id, ok := prog.Lookup(name)
		if !ok {
			bag.Add(diag.Errorf(diag.ProgNotFound, source.NoSpan, "no item named `%s` in the program", name))
			continue
		}
		d, _ := prog.Def(id)
		if !d.Kind.IsConstLike() || d.Body == nil {
			bag.Add(diag.Errorf(diag.ProgNotFound, d.Span, "`%s` (%s) is not a constant or static", name, d.Kind))
			continue
		}
		if len(d.Generics) > 0 {
			bag.Add(diag.Errorf(diag.ProgNotFound, d.Span, "`%s` is generic and cannot be evaluated without arguments", name))
			continue
		}
		defs = append(defs, id)
	}
	return defs
}
