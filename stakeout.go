// Package stakeout provides function spying for Go tests: intercept a
// function variable or field, record every call with its arguments and
// results, and optionally reroute calls to fakes, canned returns, or canned
// panics. An Agency tracks every spy it sets up so one deferred UnspyAll
// restores the world.
//
// This is the public API entry point. Implementation lives in internal/core.
package stakeout

import (
	"go.uber.org/zap"

	"github.com/toejough/stakeout/internal/core"
)

// Agency creates, tracks, and releases spies.
type Agency = core.Agency

// AgencyOption configures an Agency.
type AgencyOption = core.AgencyOption

// AssertionError reports a failed expectation.
type AssertionError = core.AssertionError

// ExistingSpyError reports a double-spy on the same target.
type ExistingSpyError = core.ExistingSpyError

// ExpectedCall is one configured entry within a matching operation.
type ExpectedCall = core.ExpectedCall

// Handle is an opaque token a Hook returns from Attach.
type Handle = core.Handle

// Hook installs and removes the interception point for a spy's target.
type Hook = core.Hook

// IncompatibleFakeError reports a fake whose signature cannot stand in for
// the original.
type IncompatibleFakeError = core.IncompatibleFakeError

// InternalError reports corrupted internal state.
type InternalError = core.InternalError

// InvalidTargetError reports a target that cannot be spied on.
type InvalidTargetError = core.InvalidTargetError

// KW supplies keyword arguments to calls, expectations, and predicates.
type KW = core.KW

// Matcher matches argument and return values flexibly. Any type with
// Match/FailureMessage methods qualifies, including gomega matchers.
type Matcher = core.Matcher

// Operation is a dispatch policy a spy can delegate to on every call.
type Operation = core.Operation

// Outcome is an operation's decision for one call.
type Outcome = core.Outcome

// OutcomeKind selects what an operation decided to do with a call.
type OutcomeKind = core.OutcomeKind

// Outcome kinds, re-exported for custom operations.
const (
	OutcomeOriginal = core.OutcomeOriginal
	OutcomeDisabled = core.OutcomeDisabled
	OutcomeReturn   = core.OutcomeReturn
	OutcomeRaise    = core.OutcomeRaise
	OutcomeFake     = core.OutcomeFake
)

// Signature describes a spied target: its name, binding mode, and parameter
// shape.
type Signature = core.Signature

// Spy observes and controls one target's calls.
type Spy = core.Spy

// SpyCall records one invocation of a spied target.
type SpyCall = core.SpyCall

// SpyOption configures one SpyOn call.
type SpyOption = core.SpyOption

// TestReporter is the slice of testing.TB the assertion layer needs.
type TestReporter = core.TestReporter

// UnexpectedCallError reports a call an operation had no configuration for.
type UnexpectedCallError = core.UnexpectedCallError

// NewAgency returns an empty agency.
func NewAgency(opts ...AgencyOption) *Agency {
	return core.NewAgency(opts...)
}

// SpyFor intercepts a func variable with a type-checked fake: the fake's Go
// type is the target's own, so incompatibilities fail at compile time
// instead of at SpyOn time.
func SpyFor[T any](agency *Agency, target *T, fake T) (*Spy, error) {
	return agency.SpyOn(target, core.WithFake(fake))
}

// Agency options.

// WithHook replaces the interception mechanism.
func WithHook(hook Hook) AgencyOption {
	return core.WithHook(hook)
}

// WithLogger routes the agency's diagnostics to the given logger.
func WithLogger(log *zap.Logger) AgencyOption {
	return core.WithLogger(log)
}

// SpyOn options.

// WithFake routes every intercepted call to the given function.
func WithFake(fake any) SpyOption {
	return core.WithFake(fake)
}

// WithFakeParams declares the fake's parameters for the compatibility check.
func WithFakeParams(spec string) SpyOption {
	return core.WithFakeParams(spec)
}

// WithField names a func-typed field on the target.
func WithField(name string) SpyOption {
	return core.WithField(name)
}

// WithName overrides the inferred target name in diagnostics.
func WithName(name string) SpyOption {
	return core.WithName(name)
}

// WithOp delegates every intercepted call to the given operation.
func WithOp(op Operation) SpyOption {
	return core.WithOp(op)
}

// WithOwner declares who the target belongs to.
func WithOwner(owner any) SpyOption {
	return core.WithOwner(owner)
}

// WithParams declares the target's parameter names, defaults, and
// keyword-only markers.
func WithParams(spec string) SpyOption {
	return core.WithParams(spec)
}

// WithoutOriginal suppresses passthrough for otherwise-unhandled calls.
func WithoutOriginal() SpyOption {
	return core.WithoutOriginal()
}

// Operations.

// MatchAny handles one or more expected calls in any order.
func MatchAny(calls ...ExpectedCall) Operation {
	return core.MatchAny(calls...)
}

// MatchInOrder handles expected calls in the exact order given.
func MatchInOrder(calls ...ExpectedCall) Operation {
	return core.MatchInOrder(calls...)
}

// Raise panics with the given value on every call.
func Raise(value any) Operation {
	return core.Raise(value)
}

// RaiseInOrder panics with each value in turn, one per call.
func RaiseInOrder(values ...any) Operation {
	return core.RaiseInOrder(values...)
}

// Return yields the given values on every call.
func Return(values ...any) Operation {
	return core.Return(values...)
}

// ReturnInOrder yields each value in turn, one per call.
func ReturnInOrder(values ...any) Operation {
	return core.ReturnInOrder(values...)
}

// Matchers.

// Any matches every value.
func Any() Matcher {
	return core.Any()
}

// Satisfies matches values of type T for which the predicate returns nil.
func Satisfies[T any](predicate func(T) error) Matcher {
	return core.Satisfies[T](predicate)
}
