package core

import "fmt"

// Operation is a dispatch policy a spy can delegate to on every call. The
// built-in operations cover canned returns, canned panics, and matching
// calls against expected argument sets; consumers can implement their own.
//
// Operations raise by panicking with a typed error, which propagates to the
// target's caller exactly as a panic from the original would, after the call
// record has been completed with it.
type Operation interface {
	// Setup binds the operation to its spy. An operation belongs to exactly
	// one spy; binding it twice is an error.
	Setup(spy *Spy) error

	// Handle decides the outcome for one recorded call.
	Handle(call *SpyCall) Outcome
}

// OutcomeKind selects what an operation decided to do with a call.
type OutcomeKind int

const (
	// OutcomeOriginal delegates to the original implementation.
	OutcomeOriginal OutcomeKind = iota

	// OutcomeDisabled invokes nothing and yields zero values.
	OutcomeDisabled

	// OutcomeReturn yields the outcome's Values without invoking anything.
	OutcomeReturn

	// OutcomeRaise panics with the outcome's PanicValue.
	OutcomeRaise

	// OutcomeFake delegates to the outcome's Fake implementation.
	OutcomeFake
)

// Outcome is an operation's decision for one call.
type Outcome struct {
	Kind       OutcomeKind
	Values     []any
	PanicValue any
	Fake       any
}

// ExpectedCall is one configured entry within a matching operation. Nil Args
// and Kwargs are unconstrained; empty ones demand an argument-less call.
//
// When the entry matches, the outcome precedence is: nested Op, then Fake,
// then the original (unless NoOriginal), then a disabled no-op.
type ExpectedCall struct {
	Args       []any
	Kwargs     map[string]any
	Op         Operation
	Fake       any
	NoOriginal bool
}

func (ec *ExpectedCall) outcome(call *SpyCall) Outcome {
	switch {
	case ec.Op != nil:
		return ec.Op.Handle(call)
	case ec.Fake != nil:
		return Outcome{Kind: OutcomeFake, Fake: ec.Fake}
	case !ec.NoOriginal:
		return Outcome{Kind: OutcomeOriginal}
	default:
		return Outcome{Kind: OutcomeDisabled}
	}
}

func (ec *ExpectedCall) String() string {
	return FormatCall(ec.Args, ec.Kwargs)
}

// binding implements the bind-once half of Operation for the built-ins.
type binding struct {
	spy *Spy
}

func (b *binding) Setup(spy *Spy) error {
	if b.spy != nil {
		return &InternalError{
			Message: fmt.Sprintf("operation is already bound to a spy on %s; operations are not shareable",
				b.spy.Name()),
		}
	}

	b.spy = spy

	return nil
}

func (b *binding) name() string {
	if b.spy == nil {
		return "<unbound operation>"
	}

	return b.spy.Name()
}

// MatchAny handles one or more expected calls in any order. Each call is
// matched against the expectations in declaration order and the first
// consistent one decides the outcome; a call matching none of them raises
// UnexpectedCallError.
func MatchAny(calls ...ExpectedCall) Operation {
	op := &matchAnyOp{}
	for i := range calls {
		call := calls[i]
		op.expected = append(op.expected, &call)
	}

	return op
}

type matchAnyOp struct {
	binding

	expected []*ExpectedCall
}

func (op *matchAnyOp) Setup(spy *Spy) error {
	if err := op.binding.Setup(spy); err != nil {
		return err
	}

	return setupNested(spy, op.expected)
}

func (op *matchAnyOp) Handle(call *SpyCall) Outcome {
	for _, ec := range op.expected {
		if call.CalledWith(ec.Args, ec.Kwargs) {
			return ec.outcome(call)
		}
	}

	panic(&UnexpectedCallError{
		Target:        op.name(),
		Message:       fmt.Sprintf("%s was not called with any expected arguments.", op.name()),
		OffendingCall: call.String(),
	})
}

// MatchInOrder handles expected calls in the exact order given. Every call
// must equal the next expectation exactly, not merely be consistent with it;
// a mismatch raises an AssertionError and a call past the end raises
// UnexpectedCallError with the actual and expected counts. The cursor only
// advances on success and never resets.
func MatchInOrder(calls ...ExpectedCall) Operation {
	op := &matchInOrderOp{}
	for i := range calls {
		call := calls[i]
		op.expected = append(op.expected, &call)
	}

	return op
}

type matchInOrderOp struct {
	binding

	expected []*ExpectedCall
	next     int
}

func (op *matchInOrderOp) Setup(spy *Spy) error {
	if err := op.binding.Setup(spy); err != nil {
		return err
	}

	return setupNested(spy, op.expected)
}

func (op *matchInOrderOp) Handle(call *SpyCall) Outcome {
	if op.next >= len(op.expected) {
		panic(&UnexpectedCallError{
			Target: op.name(),
			Message: fmt.Sprintf("%s was called %d time(s), but only %d call(s) were expected.",
				op.name(), op.next+1, len(op.expected)),
			OffendingCall: call.String(),
		})
	}

	expected := op.expected[op.next]
	if !call.CalledWithExactly(expected.Args, expected.Kwargs) {
		message := fmt.Sprintf("%s call %d did not match the expected call.\nexpected: %s\nactual:   %s",
			op.name(), op.next, expected, FormatCall(call.Args, call.Kwargs))

		if expected.Args != nil {
			message += "\n" + diffValues(expected.Args, call.Args)
		}

		panic(&AssertionError{Message: message})
	}

	op.next++

	return expected.outcome(call)
}

func setupNested(spy *Spy, expected []*ExpectedCall) error {
	for _, ec := range expected {
		if ec.Op == nil {
			continue
		}

		if err := ec.Op.Setup(spy); err != nil {
			return err
		}
	}

	return nil
}

// Raise panics with the given value on every call. The same stored value is
// reused across calls; in Go the runtime attaches the panicking goroutine's
// stack at panic time, so reuse doesn't produce misleading traces.
func Raise(value any) Operation {
	return &raiseOp{value: value}
}

type raiseOp struct {
	binding

	value any
}

func (op *raiseOp) Handle(*SpyCall) Outcome {
	return Outcome{Kind: OutcomeRaise, PanicValue: op.value}
}

// Return yields the given values on every call without invoking anything.
func Return(values ...any) Operation {
	return &returnOp{values: values}
}

type returnOp struct {
	binding

	values []any
}

func (op *returnOp) Handle(*SpyCall) Outcome {
	return Outcome{Kind: OutcomeReturn, Values: op.values}
}

// RaiseInOrder panics with each value in turn, one per call, and inherits
// MatchInOrder's overflow behavior past the last one.
func RaiseInOrder(values ...any) Operation {
	calls := make([]ExpectedCall, len(values))
	for i, v := range values {
		calls[i] = ExpectedCall{Op: Raise(v)}
	}

	return MatchInOrder(calls...)
}

// ReturnInOrder yields each value in turn, one per call, and inherits
// MatchInOrder's overflow behavior past the last one. An element of type
// []any supplies one call's full multi-value return set.
func ReturnInOrder(values ...any) Operation {
	calls := make([]ExpectedCall, len(values))

	for i, v := range values {
		if set, ok := v.([]any); ok {
			calls[i] = ExpectedCall{Op: Return(set...)}
		} else {
			calls[i] = ExpectedCall{Op: Return(v)}
		}
	}

	return MatchInOrder(calls...)
}
