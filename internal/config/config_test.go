package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"consteval/internal/config"
	"consteval/internal/interp"
	"consteval/internal/layout"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[target]
pointer_size = 4
endian = "big"

[limits]
steps = 500

[eval]
backtrace = "capture"
validation_order = "breadth"
check_alignment = false

[cache]
dir = "/tmp/ce"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Target.PtrSize != 4 || cfg.Target.Endian != layout.BigEndian {
		t.Fatalf("unexpected target %+v", cfg.Target)
	}
	if cfg.StepLimit != 500 || cfg.StackLimit != config.DefaultStack {
		t.Fatalf("unexpected limits %d/%d", cfg.StepLimit, cfg.StackLimit)
	}
	if cfg.Backtrace != interp.BacktraceCapture || cfg.ValidationOrder != interp.BreadthFirst || cfg.CheckAlignment {
		t.Fatalf("unexpected eval section %+v", cfg)
	}
	if !cfg.CacheEnabled || cfg.CacheDir != "/tmp/ce" {
		t.Fatalf("unexpected cache section %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[eval]\nfuel = 3\n",
		"pointer size": "[target]\npointer_size = 3\n",
		"endian":       "[target]\nendian = \"middle\"\n",
		"negative":     "[limits]\nsteps = -1\n",
		"backtrace":    "[eval]\nbacktrace = \"loud\"\n",
		"order":        "[eval]\nvalidation_order = \"random\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, t.TempDir(), body)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
	_, err := config.Load(writeConfig(t, t.TempDir(), "[eval]\nfuel = 3\n"))
	if !errors.Is(err, config.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[limits]\nstack = 7\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg, err := config.Discover(nested)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if cfg.StackLimit != 7 || cfg.Path != filepath.Join(root, config.FileName) {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	if cfg.Target.PtrSize != 8 || cfg.StepLimit != config.DefaultSteps || !cfg.CheckAlignment {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
