package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// sigFromSpec builds a signature straight from a parameter declaration, for
// tests that only care about call-shape logic.
func sigFromSpec(t *testing.T, name, spec string) *Signature {
	t.Helper()

	posOrKw, kwOnly, varArgs, varKwargs, err := ParseParams(spec)
	if err != nil {
		t.Fatalf("ParseParams(%q) failed: %v", spec, err)
	}

	return &Signature{
		FuncName:  name,
		FuncType:  TypeFunction,
		PosOrKw:   posOrKw,
		KwOnly:    kwOnly,
		VarArgs:   varArgs,
		VarKwargs: varKwargs,
	}
}

func TestParseParamsRoundTrip(t *testing.T) {
	t.Parallel()

	specs := []string{
		"a, b",
		"a, b=",
		"a, b=, *rest, key=, **extra",
		"self, a, b",
		"*args, **kwargs",
		"a, *, key",
		"**kwargs",
	}

	for _, spec := range specs {
		sig := sigFromSpec(t, "f", spec)

		if got := sig.FormatParams(); got != spec {
			t.Fatalf("roundtrip of %q produced %q", spec, got)
		}
	}
}

func TestParseParamsRejectsBadDeclarations(t *testing.T) {
	t.Parallel()

	specs := []string{
		"a, a",            // duplicate name
		"**kwargs, a",     // parameter after the keyword catch-all
		"*, *, a",         // duplicate star marker
		"*a, *b",          // duplicate variadic-positional
		"a, , b",          // empty name
		"**",              // nameless catch-all
	}

	for _, spec := range specs {
		if _, _, _, _, err := ParseParams(spec); err == nil {
			t.Fatalf("ParseParams(%q) should have failed", spec)
		}
	}
}

func TestBindZipsPositionalsAndOverlaysKeywords(t *testing.T) {
	t.Parallel()

	sig := sigFromSpec(t, "f", "a, b, c")

	canonical := sig.Bind([]any{1}, map[string]any{"c": 3})

	if canonical["a"] != 1 || canonical["c"] != 3 {
		t.Fatalf("unexpected canonical binding: %v", canonical)
	}

	if _, ok := canonical["b"]; ok {
		t.Fatalf("b was never supplied but appears in the binding: %v", canonical)
	}
}

func TestBindStripsReceiverForMethods(t *testing.T) {
	t.Parallel()

	sig := sigFromSpec(t, "Obj.f", "self, a, b")
	sig.FuncType = TypeBoundMethod

	canonical := sig.Bind([]any{10, 20}, nil)

	if canonical["a"] != 10 || canonical["b"] != 20 {
		t.Fatalf("receiver was not stripped from binding: %v", canonical)
	}
}

func TestCompatibleWith(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		original   string
		substitute string
		want       bool
	}{
		{"identical", "a, b", "a, b", true},
		{"full catch-all accepts anything", "a, b, *rest, key=, **extra", "*args, **kwargs", true},
		{"original varargs needs substitute varargs", "a, *rest", "a", false},
		{"original varkwargs needs substitute varkwargs", "a, **extra", "a", false},
		{"count mismatch covered by varargs", "a, b, c", "*args, **kwargs", true},
		{"count mismatch covered by varargs alone", "a, b, c", "a, *more", true},
		{"extra originals landing as keyword-only", "a, b, c", "a, *, b, c", true},
		{"extra originals nobody accepts", "a, b, c", "a", false},
		{"keyword-only landing on an extra parameter", "a, *, key", "a, key, *ignored", true},
		{"extra required parameter is conservative-incompatible", "a, *, key", "a, key", false},
		{"keyword-only satisfied with varargs", "a, *x, key", "a, key, *rest", true},
		{"keyword-only satisfied by varkwargs", "a, *, key", "a, **rest", true},
		{"keyword-only missing", "a, *, key", "a", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			original := sigFromSpec(t, "original", tc.original)
			substitute := sigFromSpec(t, "substitute", tc.substitute)

			if got := original.CompatibleWith(substitute); got != tc.want {
				t.Fatalf("CompatibleWith(%q, %q) = %v, want %v",
					tc.original, tc.substitute, got, tc.want)
			}
		})
	}
}

func TestDescribeTargetFunctionVariable(t *testing.T) {
	t.Parallel()

	f := func(a, b int) int { return a + b }

	sig, cell, err := describeTarget(&f, describeConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("describeTarget failed: %v", err)
	}

	if sig.FuncType != TypeFunction {
		t.Fatalf("expected a plain function, got %v", sig.FuncType)
	}

	if !cell.CanSet() {
		t.Fatal("the resolved cell must be settable")
	}

	// Structural inference synthesizes positional names.
	if got := sig.FormatParams(); got != "arg0, arg1" {
		t.Fatalf("inferred params = %q", got)
	}
}

func TestDescribeTargetBareFuncIsSlippery(t *testing.T) {
	t.Parallel()

	f := func() {}

	_, _, err := describeTarget(f, describeConfig{}, zap.NewNop())

	var invalid *InvalidTargetError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTargetError, got %v", err)
	}

	if !strings.Contains(invalid.Reason, "not addressable") {
		t.Fatalf("unexpected reason: %q", invalid.Reason)
	}
}

func TestDescribeTargetNilFunc(t *testing.T) {
	t.Parallel()

	var f func()

	_, _, err := describeTarget(&f, describeConfig{}, zap.NewNop())
	if err == nil {
		t.Fatal("a nil function has no behavior to spy on")
	}
}

func TestDescribeTargetRejectsNonTargets(t *testing.T) {
	t.Parallel()

	for _, target := range []any{42, "nope", struct{}{}, &struct{}{}} {
		if _, _, err := describeTarget(target, describeConfig{}, zap.NewNop()); err == nil {
			t.Fatalf("describeTarget(%T) should have failed", target)
		}
	}
}

type calculator struct {
	Add func(a, b int) int
}

func TestDescribeTargetField(t *testing.T) {
	t.Parallel()

	calc := &calculator{Add: func(a, b int) int { return a + b }}

	sig, cell, err := describeTarget(calc, describeConfig{fieldName: "Add"}, zap.NewNop())
	if err != nil {
		t.Fatalf("describeTarget failed: %v", err)
	}

	if sig.FuncType != TypeBoundMethod {
		t.Fatalf("a field on an owner is a bound method, got %v", sig.FuncType)
	}

	if sig.FuncName != "calculator.Add" {
		t.Fatalf("unexpected name %q", sig.FuncName)
	}

	if !cell.CanSet() {
		t.Fatal("the field cell must be settable")
	}

	// The receiver appears in the descriptor, not the Go type.
	if got := sig.FormatParams(); got != "self, arg0, arg1" {
		t.Fatalf("inferred params = %q", got)
	}
}

func TestDescribeTargetFieldNeedsPointerOwner(t *testing.T) {
	t.Parallel()

	calc := calculator{Add: func(a, b int) int { return a + b }}

	if _, _, err := describeTarget(calc, describeConfig{fieldName: "Add"}, zap.NewNop()); err == nil {
		t.Fatal("a value owner's fields are not settable; this must fail")
	}
}

func TestDescribeTargetUnboundOwner(t *testing.T) {
	t.Parallel()

	f := func(c *calculator, a int) int { return a }

	sig, _, err := describeTarget(&f, describeConfig{owner: reflect.TypeOf(&calculator{})}, zap.NewNop())
	if err != nil {
		t.Fatalf("describeTarget failed: %v", err)
	}

	if sig.FuncType != TypeUnboundMethod {
		t.Fatalf("expected an unbound method, got %v", sig.FuncType)
	}

	// The leading Go parameter is the receiver.
	if got := sig.FormatParams(); got != "self, arg0" {
		t.Fatalf("inferred params = %q", got)
	}
}

func TestDescribeFakeOwnerAware(t *testing.T) {
	t.Parallel()

	calc := &calculator{Add: func(a, b int) int { return a + b }}

	target, _, err := describeTarget(calc, describeConfig{fieldName: "Add"}, zap.NewNop())
	if err != nil {
		t.Fatalf("describeTarget failed: %v", err)
	}

	plain := func(a, b int) int { return a - b }
	ownerAware := func(c *calculator, a, b int) int { return a - b }

	if fakeTakesOwner(reflect.TypeOf(plain), target) {
		t.Fatal("a same-arity fake does not take the owner")
	}

	if !fakeTakesOwner(reflect.TypeOf(ownerAware), target) {
		t.Fatal("a fake with a leading owner parameter takes the owner")
	}
}

func TestExplicitParamsOverrideInference(t *testing.T) {
	t.Parallel()

	f := func(a, b int) int { return a + b }

	sig, _, err := describeTarget(&f, describeConfig{paramSpec: "a, b="}, zap.NewNop())
	if err != nil {
		t.Fatalf("describeTarget failed: %v", err)
	}

	if got := sig.FormatParams(); got != "a, b=" {
		t.Fatalf("declared params were not honored: %q", got)
	}
}
