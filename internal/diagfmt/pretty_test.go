package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"consteval/internal/diag"
	"consteval/internal/source"
)

func sampleBag() (*diag.Bag, *source.FileSet) {
	fs := source.NewFileSet()
	content := []byte("const P: i32 = 1;\nconst Q: i32 = 1 / 0;\n")
	file := fs.Add("/work/consts.cir", content)
	bag := diag.NewBag(10)
	d := diag.NewError(diag.EvalConstFailed, source.Span{File: file, Start: 33, End: 38},
		"evaluation of constant value failed\nattempt to divide `1_i32` by zero").
		WithNote(source.Span{File: file, Start: 18, End: 39}, "inside `Q`")
	d.Detail = "the raw bytes of the constant (size: 1, align: 1) {\n    02 │ .\n}"
	bag.Add(d)
	return bag, fs
}

func TestPrettyLayout(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true, ShowDetail: true})
	out := buf.String()

	for _, want := range []string{
		"error[EVAL1001]: evaluation of constant value failed\n",
		" --> /work/consts.cir:2:16\n",
		"2 | const Q: i32 = 1 / 0;\n",
		"  |                ^^^^^ attempt to divide `1_i32` by zero\n",
		"  = note: inside `Q` at /work/consts.cir:2:1\n",
		"  | the raw bytes of the constant (size: 1, align: 1) {\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but escape codes found:\n%q", out)
	}
}

func TestPrettyColorAndPathModes(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Color: true, PathMode: PathModeBasename})
	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Fatalf("expected ANSI escapes with color enabled")
	}
	if !strings.Contains(out, " consts.cir:2:16") || strings.Contains(out, "/work/") {
		t.Fatalf("expected basename path:\n%s", out)
	}
	if strings.Contains(out, "note:") || strings.Contains(out, "raw bytes") {
		t.Fatalf("notes and detail must be hidden by default:\n%s", out)
	}
}

func TestPrettyWideCharacters(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.Add("w.cir", []byte("const S: &str = \"日本\" + X;\n"))
	bag := diag.NewBag(1)
	// X starts after two double-width runes (3 bytes each).
	start := uint32(strings.Index("const S: &str = \"日本\" + X;", "X"))
	bag.Add(diag.NewError(diag.EvalConstFailed, source.Span{File: file, Start: start, End: start + 1}, "bad"))
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	lines := strings.Split(buf.String(), "\n")
	var caret string
	for _, l := range lines {
		if strings.HasSuffix(l, "^") {
			caret = l
		}
	}
	// "1 | " prefix, then display columns: 17 ASCII + 4 wide + 4 ASCII.
	if got := strings.Index(caret, "^") - len("  | "); got != 25 {
		t.Fatalf("caret at display column %d, want 25:\n%s", got, buf.String())
	}
}

func TestParsePathMode(t *testing.T) {
	for in, want := range map[string]PathMode{"": PathModeAuto, "Absolute": PathModeAbsolute, " basename ": PathModeBasename} {
		got, err := ParsePathMode(in)
		if err != nil || got != want {
			t.Fatalf("ParsePathMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePathMode("relative"); err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
	if PathModeBasename.String() != "basename" {
		t.Fatalf("unexpected name %q", PathModeBasename.String())
	}
}
