package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"consteval/internal/mir"
	"consteval/internal/testkit"
)

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.cir")
	if err := mir.WriteFile(path, testkit.Sample()); err != nil {
		t.Fatalf("write program: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	a := newApp()
	var out, errOut bytes.Buffer
	a.root.SetOut(&out)
	a.root.SetErr(&errOut)
	a.root.SetArgs(append([]string{"--color", "off"}, args...))
	err = a.execute()
	return out.String(), errOut.String(), err
}

func TestEvalPretty(t *testing.T) {
	path := writeSample(t)
	stdout, stderr, err := run(t, "eval", path)
	if !errors.Is(err, errItemsFailed) {
		t.Fatalf("expected errItemsFailed, got %v", err)
	}
	for _, want := range []string{
		"ANSWER: i32 = 42_i32",
		`GREETING: &str = &"hello"`,
		"PAIR: (i32, bool) = (7_i32, true)",
		"COUNTER: i32 = 1_i32",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout misses %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "DIV_ZERO") {
		t.Fatalf("failed items must not be printed as values:\n%s", stdout)
	}
	for _, want := range []string{"error[EVAL1001]", "error[EVAL1003]", "evaluated 9 item(s), 2 failed"} {
		if !strings.Contains(stderr, want) {
			t.Fatalf("stderr misses %q:\n%s", want, stderr)
		}
	}
}

func TestEvalNamedItems(t *testing.T) {
	path := writeSample(t)
	stdout, stderr, err := run(t, "eval", path, "ANSWER", "WORD_SIZE")
	if err != nil {
		t.Fatalf("eval: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "WORD_SIZE: usize = 8_usize") || strings.Contains(stdout, "PAIR") {
		t.Fatalf("unexpected stdout:\n%s", stdout)
	}
}

func TestEvalQuiet(t *testing.T) {
	path := writeSample(t)
	stdout, stderr, err := run(t, "--quiet", "eval", path, "ANSWER")
	if err != nil || stdout != "" || stderr != "" {
		t.Fatalf("quiet run: err=%v stdout=%q stderr=%q", err, stdout, stderr)
	}
}

func TestEvalUnknownItem(t *testing.T) {
	path := writeSample(t)
	_, stderr, err := run(t, "eval", path, "NOPE", "size_of")
	if !errors.Is(err, errItemsFailed) {
		t.Fatalf("expected errItemsFailed, got %v", err)
	}
	if !strings.Contains(stderr, "no item named `NOPE`") || !strings.Contains(stderr, "`size_of` (intrinsic) is not a constant or static") {
		t.Fatalf("unexpected stderr:\n%s", stderr)
	}
}

func TestEvalJSON(t *testing.T) {
	path := writeSample(t)
	stdout, _, err := run(t, "--timings", "eval", "--format", "json", path, "ANSWER", "DIV_ZERO")
	if !errors.Is(err, errItemsFailed) {
		t.Fatalf("expected errItemsFailed, got %v", err)
	}
	var doc struct {
		Results []resultJSON `json:"results"`
		Diags   struct {
			Count       int `json:"count"`
			Diagnostics []struct {
				Code string `json:"code"`
			} `json:"diagnostics"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(doc.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", doc.Results)
	}
	if r := doc.Results[0]; r.Name != "ANSWER" || r.Value != "42_i32" || r.Kind != "const" || r.Type != "i32" {
		t.Fatalf("unexpected ANSWER result %+v", r)
	}
	if r := doc.Results[1]; r.Error == "" || r.Value != "" {
		t.Fatalf("DIV_ZERO must carry an error: %+v", r)
	}
	codes := map[string]bool{}
	for _, d := range doc.Diags.Diagnostics {
		codes[d.Code] = true
	}
	if !codes["EVAL1001"] || !codes["OBS6001"] {
		t.Fatalf("expected eval failure and timings diagnostics, got %v", codes)
	}
}

func TestEvalShort(t *testing.T) {
	path := writeSample(t)
	stdout, stderr, err := run(t, "eval", "--format", "short", path, "UNIT", "BAD_BOOL")
	if !errors.Is(err, errItemsFailed) {
		t.Fatalf("expected errItemsFailed, got %v", err)
	}
	if stdout != "UNIT = ()\n" {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	if !strings.HasPrefix(stderr, "error EVAL1003 ") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestEvalDiskCache(t *testing.T) {
	path := writeSample(t)
	cacheDir := t.TempDir()
	for i := range 2 {
		stdout, stderr, err := run(t, "eval", "--cache", "--cache-dir", cacheDir, path, "ANSWER", "GREETING")
		if err != nil {
			t.Fatalf("run %d: %v\n%s", i, err, stderr)
		}
		if !strings.Contains(stdout, `&"hello"`) {
			t.Fatalf("run %d: unexpected stdout:\n%s", i, stdout)
		}
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected cache entries in %s (err=%v)", cacheDir, err)
	}
}

func TestEvalRejectsBadFlags(t *testing.T) {
	path := writeSample(t)
	tests := [][]string{
		{"eval", "--format", "xml", path},
		{"eval", "--ui", "sometimes", path},
		{"eval", "--backtrace", "loud", path},
		{"eval", "--path-mode", "relative", path},
		{"--color", "purple", "eval", path},
		{"--trace-level", "chatty", "eval", path},
		{"eval", filepath.Join(t.TempDir(), "missing.cir")},
	}
	for _, args := range tests {
		if _, _, err := run(t, args...); err == nil || errors.Is(err, errItemsFailed) {
			t.Fatalf("%v: expected a usage error, got %v", args, err)
		}
	}
}

func TestEvalTraceToFile(t *testing.T) {
	path := writeSample(t)
	tracePath := filepath.Join(t.TempDir(), "trace.ndjson")
	if _, stderr, err := run(t, "--trace", tracePath, "--trace-level", "detail", "eval", path, "ANSWER"); err != nil {
		t.Fatalf("eval: %v\n%s", err, stderr)
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !bytes.Contains(data, []byte("eval_all")) {
		t.Fatalf("trace misses the batch span:\n%s", data)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "consteval.toml")
	if err := os.WriteFile(cfgPath, []byte("[limits]\nsteps = 500\nstack = 3\n\n[eval]\nbacktrace = \"capture\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cmd := newEvalCmd()
	if err := cmd.ParseFlags([]string{"--config", cfgPath, "--stack", "7", "--no-align-check"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(cmd, filepath.Join(dir, "x.cir"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.StepLimit != 500 || cfg.StackLimit != 7 || cfg.CheckAlignment || cfg.Backtrace.String() != "capture" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigReportsFlagLookupErrors(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"steps", "failed to get steps flag"},
		{"stack", "failed to get stack flag"},
		{"cache", "failed to get cache flag"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cmd := &cobra.Command{Use: "eval"}
			cmd.Flags().String("config", "", "")
			cmd.Flags().String(tt.flag, "", "")
			if err := cmd.ParseFlags([]string{"--" + tt.flag, "x"}); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			_, err := loadConfig(cmd, filepath.Join(t.TempDir(), "x.cir"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestProfilingFlags(t *testing.T) {
	path := writeSample(t)
	dir := t.TempDir()
	cpu, mem := filepath.Join(dir, "cpu.pprof"), filepath.Join(dir, "mem.pprof")
	if _, stderr, err := run(t, "--cpu-profile", cpu, "--mem-profile", mem, "eval", path, "ANSWER"); err != nil {
		t.Fatalf("eval: %v\n%s", err, stderr)
	}
	for _, p := range []string{cpu, mem} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing profile: %v", err)
		}
	}
}

func TestDump(t *testing.T) {
	path := writeSample(t)
	stdout, _, err := run(t, "dump", path, "ANSWER")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(stdout, "const ANSWER: i32:") || strings.Contains(stdout, "GREETING") {
		t.Fatalf("unexpected dump:\n%s", stdout)
	}
	if _, _, err := run(t, "dump", path, "NOPE"); err == nil {
		t.Fatalf("dump of an unknown item must fail")
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := run(t, "version", "--format", "json", "--full")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Tool != "consteval" || payload.Version == "" || payload.GitCommit != "unknown" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestReadUIMode(t *testing.T) {
	tests := []struct {
		in   string
		want uiMode
	}{
		{"", uiModeOff},
		{"AUTO", uiModeAuto},
		{" on ", uiModeOn},
		{"off", uiModeOff},
	}
	for _, tt := range tests {
		got, err := readUIMode(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("readUIMode(%q) = %q, %v", tt.in, got, err)
		}
	}
	if shouldUseTUI(uiModeOff) || !shouldUseTUI(uiModeOn) {
		t.Fatalf("explicit modes must be honored")
	}
}
