package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"consteval/internal/consteval"
	"consteval/internal/trace"
)

const panicDumpEvents = 64

func registerTraceFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String("trace", "", "write trace events to a file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", trace.DefaultRingSize, "events kept in ring mode")
	pf.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")
}

// tracing is the tracer of one command run.
type tracing struct {
	tracer    trace.Tracer
	heartbeat time.Duration
}

// setupTracing reads the trace flags, attaches a tracer to the command
// context and returns it with its cleanup function.
func setupTracing(cmd *cobra.Command) (tracing, func(), error) {
	pf := cmd.Root().PersistentFlags()
	output, err := pf.GetString("trace")
	if err != nil {
		return tracing{}, nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := pf.GetString("trace-level")
	if err != nil {
		return tracing{}, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := pf.GetString("trace-mode")
	if err != nil {
		return tracing{}, nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := pf.GetInt("trace-ring-size")
	if err != nil {
		return tracing{}, nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatEvery, err := pf.GetDuration("trace-heartbeat")
	if err != nil {
		return tracing{}, nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return tracing{}, nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// An output without a level means "trace the phases".
	if level == trace.LevelOff && output != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return tracing{tracer: trace.Nop}, func() {}, nil
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return tracing{}, nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: output,
		RingSize:   ringSize,
	})
	if err != nil {
		return tracing{}, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	cleanup := func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracing{tracer: tracer, heartbeat: heartbeatEvery}, cleanup, nil
}

// startHeartbeat reports engine progress at the configured interval; the
// returned Heartbeat is nil when heartbeats are off.
func (tr tracing) startHeartbeat(engine *consteval.Engine) *trace.Heartbeat {
	if tr.heartbeat <= 0 {
		return nil
	}
	return trace.StartHeartbeat(tr.tracer, tr.heartbeat, func() string {
		s := engine.Stats()
		return fmt.Sprintf("evaluated=%d cached=%d interned=%d", s.Allocations.Misses, s.Values.Hits+s.Allocations.Hits, s.Interned)
	})
}

// dumpTraceOnPanic prints the ring buffer before re-panicking, so the last
// evaluation steps are visible in crash reports.
func dumpTraceOnPanic(tracer trace.Tracer) {
	r := recover()
	if r == nil {
		return
	}
	if ring := trace.Ring(tracer); ring != nil {
		fmt.Fprintf(os.Stderr, "panic: %v\nlast trace events (%s):\n", r, time.Now().Format(time.RFC3339))
		_ = ring.Dump(os.Stderr, trace.FormatText, panicDumpEvents)
	}
	panic(r)
}
