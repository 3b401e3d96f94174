package core

import (
	"fmt"
	"reflect"
)

// KW supplies keyword arguments to calls, expectations, and predicates.
// Positional values and at most one trailing KW can be mixed freely:
//
//	spy.CalledWith(10, KW{"b": 20})
type KW map[string]any

type dispatchMode int

const (
	modePassthrough dispatchMode = iota
	modeFake
	modeDisabled
	modeOperation
)

func (m dispatchMode) String() string {
	switch m {
	case modeFake:
		return "fake"
	case modeDisabled:
		return "disabled"
	case modeOperation:
		return "operation"
	default:
		return "passthrough"
	}
}

// Spy observes and controls one target's calls. It owns the target's
// descriptor, the append-only call log, and the dispatch mode decided at
// setup. Spies are created by Agency.SpyOn and stay active until released;
// a released spy no longer intercepts but its log remains queryable.
type Spy struct {
	agency *Agency
	sig    *Signature
	key    uintptr

	cell     reflect.Value // the settable func cell the hook swaps
	original reflect.Value // the saved original implementation

	mode           dispatchMode
	fake           reflect.Value
	fakeTakesOwner bool
	op             Operation

	calls    []*SpyCall
	released bool
	origin   []uintptr
	handle   Handle
}

// Name returns the target's human-readable name.
func (s *Spy) Name() string {
	return s.sig.FuncName
}

// Signature returns the target's descriptor.
func (s *Spy) Signature() *Signature {
	return s.sig
}

// Agency returns the agency that created this spy.
func (s *Spy) Agency() *Agency {
	return s.agency
}

// Released reports whether the spy has been detached from its target.
func (s *Spy) Released() bool {
	return s.released
}

// Calls returns the recorded calls in invocation order.
func (s *Spy) Calls() []*SpyCall {
	return s.calls
}

// CallCount returns the number of recorded calls.
func (s *Spy) CallCount() int {
	return len(s.calls)
}

// Called reports whether the target was ever called while spied on.
func (s *Spy) Called() bool {
	return len(s.calls) > 0
}

// LastCall returns the most recent call, or nil if there were none.
func (s *Spy) LastCall() *SpyCall {
	if len(s.calls) == 0 {
		return nil
	}

	return s.calls[len(s.calls)-1]
}

// CalledWith reports whether any recorded call is consistent with the given
// values. Values may end with a KW map for keyword arguments and may be
// Matchers. With no values it reports the same thing as Called.
func (s *Spy) CalledWith(values ...any) bool {
	args, kwargs := splitCallValues(values)

	for _, call := range s.calls {
		if call.CalledWith(args, kwargs) {
			return true
		}
	}

	return false
}

// LastCalledWith reports whether the most recent call is consistent with the
// given values.
func (s *Spy) LastCalledWith(values ...any) bool {
	last := s.LastCall()
	if last == nil {
		return false
	}

	args, kwargs := splitCallValues(values)

	return last.CalledWith(args, kwargs)
}

// Returned reports whether any recorded call returned the given values.
func (s *Spy) Returned(values ...any) bool {
	for _, call := range s.calls {
		if call.Returned(values...) {
			return true
		}
	}

	return false
}

// LastReturned reports whether the most recent call returned the given values.
func (s *Spy) LastReturned(values ...any) bool {
	last := s.LastCall()

	return last != nil && last.Returned(values...)
}

// Raised reports whether any recorded call panicked with the prototype's
// exact dynamic type. Raised(nil) reports whether any call completed
// without panicking.
func (s *Spy) Raised(prototype any) bool {
	for _, call := range s.calls {
		if call.Raised(prototype) {
			return true
		}
	}

	return false
}

// LastRaised reports whether the most recent call panicked with the
// prototype's exact dynamic type.
func (s *Spy) LastRaised(prototype any) bool {
	last := s.LastCall()

	return last != nil && last.Raised(prototype)
}

// RaisedWithMessage reports whether any recorded call panicked with the
// prototype's exact type and the given message.
func (s *Spy) RaisedWithMessage(prototype any, message string) bool {
	for _, call := range s.calls {
		if call.RaisedWithMessage(prototype, message) {
			return true
		}
	}

	return false
}

// LastRaisedWithMessage reports whether the most recent call panicked with
// the prototype's exact type and the given message.
func (s *Spy) LastRaisedWithMessage(prototype any, message string) bool {
	last := s.LastCall()

	return last != nil && last.RaisedWithMessage(prototype, message)
}

// ResetCalls clears the recorded call log.
func (s *Spy) ResetCalls() {
	s.calls = nil
}

// Unspy releases this spy, restoring the original call behavior.
func (s *Spy) Unspy() error {
	return s.agency.releaseSpy(s)
}

// Call invokes the target through the spy directly, recording the call and
// dispatching like an intercepted invocation would. Values may end with a
// KW map for keyword arguments. Released spies forward straight to the
// original without recording.
func (s *Spy) Call(values ...any) []any {
	args, kwargs := splitCallValues(values)

	if s.released {
		return s.callOriginalRaw(args, kwargs)
	}

	return s.invoke(args, kwargs)
}

// CallOriginal invokes the saved original implementation with the given
// values, without recording anything. Operations use this for passthrough
// outcomes; the triggering call is already on the log.
func (s *Spy) CallOriginal(values ...any) []any {
	args, kwargs := splitCallValues(values)

	return s.callOriginalRaw(args, kwargs)
}

// invoke is the dispatch heart: record the call, resolve an outcome per the
// dispatch mode, and complete the record with the result or the panic value
// before it continues unwinding.
func (s *Spy) invoke(args []any, kwargs map[string]any) []any {
	recordArgs := args
	if s.sig.FuncType == TypeUnboundMethod && len(args) > 0 {
		recordArgs = args[1:]
	}

	if kwargs == nil {
		kwargs = map[string]any{}
	}

	call := &SpyCall{spy: s, Index: len(s.calls), Args: recordArgs, Kwargs: kwargs}
	s.calls = append(s.calls, call)

	var out []any

	defer func() {
		if p := recover(); p != nil {
			call.completePanic(p)
			panic(p)
		}

		call.completeReturn(out)
	}()

	switch s.mode {
	case modeDisabled:
		out = s.zeroResults()
	case modeFake:
		out = s.callFakeValue(s.fake, s.fakeTakesOwner, args, kwargs)
	case modeOperation:
		out = s.applyOutcome(s.op.Handle(call), args, kwargs)
	default:
		out = s.callOriginalRaw(args, kwargs)
	}

	return out
}

func (s *Spy) applyOutcome(outcome Outcome, args []any, kwargs map[string]any) []any {
	switch outcome.Kind {
	case OutcomeReturn:
		return outcome.Values
	case OutcomeRaise:
		panic(outcome.PanicValue)
	case OutcomeFake:
		fake := reflect.ValueOf(outcome.Fake)

		return s.callFakeValue(fake, fakeTakesOwner(fake.Type(), s.sig), args, kwargs)
	case OutcomeDisabled:
		return s.zeroResults()
	default:
		return s.callOriginalRaw(args, kwargs)
	}
}

func (s *Spy) callOriginalRaw(args []any, kwargs map[string]any) []any {
	return callGoFunc(s.original, s.buildGoArgs(args, kwargs))
}

// callFakeValue invokes a fake with the same call shape as the original,
// prepending the owner when the fake declares the receiver as an extra
// leading parameter.
func (s *Spy) callFakeValue(fake reflect.Value, takesOwner bool, args []any, kwargs map[string]any) []any {
	goArgs := s.buildGoArgs(args, kwargs)
	if takesOwner {
		goArgs = append([]any{s.sig.Owner}, goArgs...)
	}

	return callGoFunc(fake, goArgs)
}

// buildGoArgs maps a recorded (args, kwargs) call shape onto the positional
// argument list a Go function needs, filling trailing parameter slots from
// the keyword arguments by name.
func (s *Spy) buildGoArgs(args []any, kwargs map[string]any) []any {
	if len(kwargs) == 0 {
		return args
	}

	names := s.sig.posOrKwNames(s.sig.FuncType == TypeBoundMethod)
	goArgs := append([]any{}, args...)

	for i := len(args); i < len(names); i++ {
		value, ok := kwargs[names[i]]
		if !ok {
			panic(&InvalidTargetError{
				Target: s.Name(),
				Reason: fmt.Sprintf("call supplies no value for parameter %q and keyword forwarding cannot skip slots", names[i]),
			})
		}

		goArgs = append(goArgs, value)
	}

	for key := range kwargs {
		if !paramNamed(s.sig.PosOrKw, key) && !paramNamed(s.sig.KwOnly, key) && s.sig.VarKwargs == "" {
			panic(&InvalidTargetError{
				Target: s.Name(),
				Reason: fmt.Sprintf("keyword argument %q has no parameter slot", key),
			})
		}
	}

	return goArgs
}

func (s *Spy) zeroResults() []any {
	fnType := s.sig.goType
	out := make([]any, fnType.NumOut())

	for i := range out {
		out[i] = reflect.Zero(fnType.Out(i)).Interface()
	}

	return out
}

// splitCallValues separates positional values from trailing KW maps. Later
// KW maps overlay earlier ones.
func splitCallValues(values []any) ([]any, map[string]any) {
	args := []any{}
	kwargs := map[string]any{}

	for _, v := range values {
		if kw, ok := v.(KW); ok {
			for key, value := range kw {
				kwargs[key] = value
			}

			continue
		}

		args = append(args, v)
	}

	return args, kwargs
}

// callGoFunc calls fn with the given arguments through reflection,
// substituting typed zero values for untyped nils.
func callGoFunc(fn reflect.Value, args []any) []any {
	fnType := fn.Type()
	in := make([]reflect.Value, len(args))

	for i, arg := range args {
		paramType := paramTypeAt(fnType, i)

		if arg == nil {
			in[i] = reflect.Zero(paramType)
			continue
		}

		value := reflect.ValueOf(arg)
		if value.Type() != paramType && !value.Type().AssignableTo(paramType) && value.Type().ConvertibleTo(paramType) {
			value = value.Convert(paramType)
		}

		in[i] = value
	}

	out := fn.Call(in)

	return unreflectValues(out)
}

// paramTypeAt returns the parameter type at a call position, unrolling the
// variadic element type past the fixed parameters.
func paramTypeAt(fnType reflect.Type, i int) reflect.Type {
	if fnType.IsVariadic() && i >= fnType.NumIn()-1 {
		return fnType.In(fnType.NumIn() - 1).Elem()
	}

	if i < fnType.NumIn() {
		return fnType.In(i)
	}

	return reflect.TypeOf((*any)(nil)).Elem()
}

// unreflectValues returns the concrete values behind reflected ones.
func unreflectValues(values []reflect.Value) []any {
	if len(values) == 0 {
		return nil
	}

	result := make([]any, len(values))
	for i := range values {
		result[i] = values[i].Interface()
	}

	return result
}
