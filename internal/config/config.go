// Package config loads consteval.toml.
package config

import (
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"consteval/internal/interp"
	"consteval/internal/layout"
)

const (
	DefaultSteps = 1_000_000
	DefaultStack = 128
)

// Config is the resolved evaluator configuration.
type Config struct {
	// Path is the file the values came from; empty for defaults.
	Path string

	Target layout.Target

	StepLimit  uint64
	StackLimit int

	Backtrace       interp.BacktraceMode
	ValidationOrder interp.ValidationOrder
	CheckAlignment  bool

	CacheDir     string
	CacheEnabled bool
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Target:          layout.X86_64LinuxGNU(),
		StepLimit:       DefaultSteps,
		StackLimit:      DefaultStack,
		Backtrace:       interp.BacktraceOff,
		ValidationOrder: interp.DepthFirst,
		CheckAlignment:  true,
	}
}

// ErrUnknownKey is returned for keys the file format does not define.
var ErrUnknownKey = errors.New("unknown key")

type fileConfig struct {
	Target struct {
		Triple      string `toml:"triple"`
		PointerSize int    `toml:"pointer_size"`
		Endian      string `toml:"endian"`
	} `toml:"target"`
	Limits struct {
		Steps int64 `toml:"steps"`
		Stack int   `toml:"stack"`
	} `toml:"limits"`
	Eval struct {
		Backtrace       string `toml:"backtrace"`
		ValidationOrder string `toml:"validation_order"`
		CheckAlignment  bool   `toml:"check_alignment"`
	} `toml:"eval"`
	Cache struct {
		Dir     string `toml:"dir"`
		Enabled bool   `toml:"enabled"`
	} `toml:"cache"`
}

// Load decodes path on top of Default.
func Load(path string) (Config, error) {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, strings.Join(keys, ", "))
	}

	cfg := Default()
	cfg.Path = path
	if meta.IsDefined("target", "triple") {
		cfg.Target.Triple = fc.Target.Triple
	}
	if meta.IsDefined("target", "pointer_size") {
		cfg.Target.PtrSize = fc.Target.PointerSize
		cfg.Target.PtrAlign = fc.Target.PointerSize
	}
	if meta.IsDefined("target", "endian") {
		if cfg.Target.Endian, err = layout.ParseEndian(fc.Target.Endian); err != nil {
			return Config{}, fmt.Errorf("%s: [target].endian: %w", path, err)
		}
	}
	if err := cfg.Target.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: [target]: %w", path, err)
	}

	if meta.IsDefined("limits", "steps") {
		if cfg.StepLimit, err = safecast.Conv[uint64](fc.Limits.Steps); err != nil {
			return Config{}, fmt.Errorf("%s: [limits].steps: %w", path, err)
		}
	}
	if meta.IsDefined("limits", "stack") {
		if fc.Limits.Stack < 0 {
			return Config{}, fmt.Errorf("%s: [limits].stack must not be negative", path)
		}
		cfg.StackLimit = fc.Limits.Stack
	}

	if meta.IsDefined("eval", "backtrace") {
		if cfg.Backtrace, err = interp.ParseBacktraceMode(fc.Eval.Backtrace); err != nil {
			return Config{}, fmt.Errorf("%s: [eval].backtrace: %w", path, err)
		}
	}
	if meta.IsDefined("eval", "validation_order") {
		if cfg.ValidationOrder, err = interp.ParseValidationOrder(fc.Eval.ValidationOrder); err != nil {
			return Config{}, fmt.Errorf("%s: [eval].validation_order: %w", path, err)
		}
	}
	if meta.IsDefined("eval", "check_alignment") {
		cfg.CheckAlignment = fc.Eval.CheckAlignment
	}

	if meta.IsDefined("cache") {
		cfg.CacheEnabled = true
	}
	if meta.IsDefined("cache", "enabled") {
		cfg.CacheEnabled = fc.Cache.Enabled
	}
	cfg.CacheDir = strings.TrimSpace(fc.Cache.Dir)
	return cfg, nil
}

// Discover loads the nearest consteval.toml above startDir, or Default when
// there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}
