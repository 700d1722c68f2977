package consteval_test

import (
	"context"
	"errors"
	"testing"

	"consteval/internal/consteval"
	"consteval/internal/diag"
	"consteval/internal/interp"
	"consteval/internal/mir"
	"consteval/internal/testkit"
)

type engineHarness struct {
	engine *consteval.Engine
	bag    *diag.Bag
	prog   *mir.Program
}

func newEngine(t *testing.T, prog *mir.Program, tweak ...func(*consteval.Options)) *engineHarness {
	t.Helper()
	if err := mir.Validate(prog); err != nil {
		t.Fatalf("invalid test program: %v", err)
	}
	if err := testkit.CheckSpanInvariants(prog); err != nil {
		t.Fatalf("span invariants: %v", err)
	}
	bag := diag.NewBag(0)
	opts := consteval.DefaultOptions()
	opts.StepLimit = 10_000
	opts.StackLimit = 32
	opts.Reporter = &diag.BagReporter{Bag: bag}
	for _, fn := range tweak {
		fn(&opts)
	}
	e, err := consteval.New(prog, opts)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &engineHarness{engine: e, bag: bag, prog: prog}
}

func (h *engineHarness) def(t *testing.T, name string) mir.DefID {
	t.Helper()
	id, ok := h.prog.Lookup(name)
	if !ok {
		t.Fatalf("no definition %q", name)
	}
	return id
}

func (h *engineHarness) value(t *testing.T, name string) (interp.ConstValue, error) {
	t.Helper()
	key := consteval.For(consteval.Item(mir.Mono(h.def(t, name))))
	return h.engine.EvalToValue(context.Background(), key)
}

func (h *engineHarness) mustValue(t *testing.T, name string) interp.ConstValue {
	t.Helper()
	v, err := h.value(t, name)
	if err != nil {
		t.Fatalf("evaluating %s: %v", name, err)
	}
	return v
}

// interpError unwraps the evaluation error behind a handled failure.
func interpError(t *testing.T, err error) (*consteval.ErrorHandled, *interp.InterpError) {
	t.Helper()
	var handled *consteval.ErrorHandled
	if !errors.As(err, &handled) {
		t.Fatalf("expected *consteval.ErrorHandled, got %T: %v", err, err)
	}
	var ie *interp.InterpError
	if !errors.As(err, &ie) {
		t.Fatalf("expected an *interp.InterpError inside %v", err)
	}
	return handled, ie
}
