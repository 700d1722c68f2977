package version_test

import (
	"testing"

	"github.com/fatih/color"

	"consteval/internal/version"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	orig := version.Version
	version.Version = v
	t.Cleanup(func() { version.Version = orig })
}

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = !enabled
	t.Cleanup(func() { color.NoColor = orig })
}

func TestColoredPlain(t *testing.T) {
	withColor(t, false)
	tests := []struct {
		in, want string
	}{
		{"1.2.3", "1.2.3"},
		{"0.1.0-dev", "0.1.0-dev"},
		{"2.0.0+meta", "2.0.0+meta"},
		{"nightly", "nightly"},
		{" 1.2.3 ", "1.2.3"},
	}
	for _, tt := range tests {
		withVersion(t, tt.in)
		if got := version.Colored(); got != tt.want {
			t.Fatalf("Colored(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColoredHighlightsComponents(t *testing.T) {
	withColor(t, true)
	withVersion(t, "1.2.3-rc1")
	got := version.Colored()
	if got == "1.2.3-rc1" {
		t.Fatalf("expected escape sequences, got plain %q", got)
	}
	want := color.New(color.FgYellow, color.Bold).Sprint("1")
	if len(got) < len(want) || got[:len(want)] != want {
		t.Fatalf("major component not highlighted: %q", got)
	}
}
