package stakeout_test

import (
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/toejough/stakeout"
	"github.com/toejough/stakeout/asserts"
	"github.com/toejough/stakeout/match"
)

func TestFakeSubstitution(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	doMath := func(a, b int) int { return a + b }

	// SpyFor type-checks the fake against the target at compile time.
	spy, err := stakeout.SpyFor(agency, &doMath, func(a, b int) int { return a - b })
	if err != nil {
		t.Fatalf("SpyFor failed: %v", err)
	}

	if got := doMath(10, 20); got != -10 {
		t.Fatalf("the fake must decide the result, got %d", got)
	}

	if !spy.CalledWith(10, 20) {
		t.Fatalf("the call must be recorded: %s", spy.LastCall())
	}

	if err := agency.Unspy(&doMath); err != nil {
		t.Fatalf("Unspy failed: %v", err)
	}

	if got := doMath(10, 20); got != 30 {
		t.Fatalf("the original must be restored, got %d", got)
	}
}

func TestCannedReturn(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	doMath := func(a, b int) int { return a + b }

	spy, err := agency.SpyOn(&doMath, stakeout.WithOp(stakeout.Return(42)))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if got := doMath(i, i); got != 42 {
			t.Fatalf("every call yields the canned value, got %d", got)
		}
	}

	asserts.CallCount(t, spy, 3)
	asserts.Returned(t, spy, 42)
}

func TestMatchInOrderScenario(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	t.Cleanup(func() { _ = agency.UnspyAll() })

	doMath := func(a, b int) int { return a + b }

	_, err := agency.SpyOn(&doMath,
		stakeout.WithParams("a, b"),
		stakeout.WithName("do_math"),
		stakeout.WithOp(stakeout.MatchInOrder(
			stakeout.ExpectedCall{Args: []any{1, 2}, Op: stakeout.Return(10)},
			stakeout.ExpectedCall{Args: []any{3, 4}, Op: stakeout.Return(20)},
		)))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	if got := doMath(1, 2); got != 10 {
		t.Fatalf("first expectation must fire, got %d", got)
	}

	if got := doMath(3, 4); got != 20 {
		t.Fatalf("second expectation must fire, got %d", got)
	}

	// A third call overflows the expectations and panics with the counts.
	defer func() {
		p := recover()

		var unexpected *stakeout.UnexpectedCallError
		if err, ok := p.(error); !ok || !errors.As(err, &unexpected) {
			t.Fatalf("expected an UnexpectedCallError, got %v", p)
		}

		want := "do_math was called 3 time(s), but only 2 call(s) were expected."
		if !strings.Contains(unexpected.Error(), want) {
			t.Fatalf("unexpected message: %q", unexpected.Error())
		}
	}()

	doMath(5, 6)
}

func TestMatchAnyRoutesByArguments(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	doMath := func(a, b int) int { return a + b }

	_, err := agency.SpyOn(&doMath,
		stakeout.WithParams("a, b"),
		stakeout.WithOp(stakeout.MatchAny(
			stakeout.ExpectedCall{Args: []any{1, 2}, Op: stakeout.Return(100)},
			stakeout.ExpectedCall{Args: []any{3}, Fake: func(a, b int) int { return a * b }},
			stakeout.ExpectedCall{Args: []any{5, 5}},
		)))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	if got := doMath(1, 2); got != 100 {
		t.Fatalf("a matching entry with an op yields the canned value, got %d", got)
	}

	if got := doMath(3, 4); got != 12 {
		t.Fatalf("a matching entry with a fake runs the fake, got %d", got)
	}

	if got := doMath(5, 5); got != 10 {
		t.Fatalf("a bare entry passes through to the original, got %d", got)
	}
}

func TestRaiseInOrderScenario(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	fetch := func(key string) string { return "real" }

	spy, err := agency.SpyOn(&fetch, stakeout.WithOp(stakeout.RaiseInOrder(
		errors.New("first failure"),
		errors.New("second failure"),
	)))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	for _, want := range []string{"first failure", "second failure"} {
		func() {
			defer func() {
				p := recover()

				err, ok := p.(error)
				if !ok || err.Error() != want {
					t.Fatalf("expected panic %q, got %v", want, p)
				}
			}()

			fetch("k")
		}()
	}

	asserts.Raised(t, spy, errors.New(""))
	asserts.LastRaisedWithMessage(t, spy, errors.New(""), "second failure")
}

func TestReturnInOrderScenario(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	next := func() (int, bool) { return 0, false }

	_, err := agency.SpyOn(&next, stakeout.WithOp(stakeout.ReturnInOrder(
		[]any{1, true},
		[]any{2, true},
		[]any{0, false},
	)))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	got := []int{}

	for {
		v, ok := next()
		if !ok {
			break
		}

		got = append(got, v)
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected sequence: %v", got)
	}
}

func TestGomegaMatchersInterop(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	doMath := func(a, b int) int { return a + b }

	spy, err := agency.SpyOn(&doMath)
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	doMath(10, 20)

	// gomega matchers satisfy the Matcher duck type directly, as does
	// match.BeAny for don't-care positions.
	if !spy.CalledWith(BeNumerically(">", 5), match.BeAny) {
		t.Fatalf("matcher-based expectations must match: %s", spy.LastCall())
	}

	if spy.CalledWith(BeNumerically("<", 5), match.BeAny) {
		t.Fatal("a failing matcher must not match")
	}

	negative := match.Satisfy(func(x int) error {
		if x >= 0 {
			return errors.New("not negative")
		}

		return nil
	})

	if spy.CalledWith(negative) {
		t.Fatal("the predicate matcher must reject 10")
	}
}

func TestCalledWithNoArgumentsMeansCalled(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	ping := func() {}

	spy, err := agency.SpyOn(&ping)
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	if spy.CalledWith() != spy.Called() {
		t.Fatal("with no calls, CalledWith() and Called() agree")
	}

	ping()

	if !spy.CalledWith() || spy.CalledWith() != spy.Called() {
		t.Fatal("an argument-less expectation is exactly the called check")
	}
}

func TestDoubleSpyIsRejected(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	ping := func() {}

	if _, err := agency.SpyOn(&ping); err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	_, err := agency.SpyOn(&ping)

	var existing *stakeout.ExistingSpyError
	if !errors.As(err, &existing) {
		t.Fatalf("expected an ExistingSpyError, got %v", err)
	}
}

func TestInvalidTargets(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()

	var invalid *stakeout.InvalidTargetError

	// A bare func value has no stable identity to hook.
	if _, err := agency.SpyOn(func() {}); !errors.As(err, &invalid) {
		t.Fatalf("expected an InvalidTargetError, got %v", err)
	}

	// Neither does a non-function.
	if _, err := agency.SpyOn(42); !errors.As(err, &invalid) {
		t.Fatalf("expected an InvalidTargetError, got %v", err)
	}

	// Releasing something that was never spied fails the same way.
	plain := func() {}
	if err := agency.Unspy(&plain); !errors.As(err, &invalid) {
		t.Fatalf("expected an InvalidTargetError, got %v", err)
	}
}

func TestKeywordStyleExpectations(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	g := NewWithT(t)

	connect := func(host string, port int, tls bool) error { return nil }

	spy, err := agency.SpyOn(&connect, stakeout.WithParams("host, port, tls="))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	if err := connect("db.internal", 5432, true); err != nil {
		t.Fatalf("passthrough failed: %v", err)
	}

	// Positionally-passed values still match by parameter name.
	g.Expect(spy.CalledWith(stakeout.KW{"port": 5432, "tls": true})).To(BeTrue())
	g.Expect(spy.CalledWith(stakeout.KW{"port": 9999})).To(BeFalse())

	asserts.CalledWith(t, spy, "db.internal", stakeout.KW{"tls": true})
}

type mailer struct {
	Deliver func(to, body string) error
}

func TestFieldTargetsWithAsserts(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	m := &mailer{Deliver: func(to, body string) error { return errors.New("no smtp in tests") }}

	spy, err := agency.SpyOn(m,
		stakeout.WithField("Deliver"),
		stakeout.WithParams("self, to, body"),
		stakeout.WithFake(func(to, body string) error { return nil }))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	if err := m.Deliver("ops@example.com", "hi"); err != nil {
		t.Fatalf("the fake must succeed: %v", err)
	}

	asserts.Called(t, spy)
	asserts.LastCalledWith(t, spy, "ops@example.com", stakeout.KW{"body": "hi"})
	asserts.LastReturned(t, spy, nil)
}

func TestCustomOperation(t *testing.T) {
	t.Parallel()

	agency := stakeout.NewAgency()
	doMath := func(a, b int) int { return a + b }

	// Operations are an open interface; a counter that alternates between
	// canned values and the original is a few lines.
	_, err := agency.SpyOn(&doMath, stakeout.WithOp(&alternatingOp{}))
	if err != nil {
		t.Fatalf("SpyOn failed: %v", err)
	}

	if got := doMath(1, 2); got != 0 {
		t.Fatalf("even calls are canned, got %d", got)
	}

	if got := doMath(1, 2); got != 3 {
		t.Fatalf("odd calls pass through, got %d", got)
	}
}

type alternatingOp struct {
	calls int
}

func (op *alternatingOp) Setup(*stakeout.Spy) error { return nil }

func (op *alternatingOp) Handle(*stakeout.SpyCall) stakeout.Outcome {
	op.calls++

	if op.calls%2 == 1 {
		return stakeout.Outcome{Kind: stakeout.OutcomeReturn, Values: []any{0}}
	}

	return stakeout.Outcome{Kind: stakeout.OutcomeOriginal}
}
