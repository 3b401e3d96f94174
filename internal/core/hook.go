package core

import (
	"reflect"
)

// Handle is an opaque token a Hook returns from Attach and consumes in
// Detach.
type Handle any

// Hook installs and removes the interception point for a spy's target.
// The default implementation swaps func-typed variables and fields; custom
// hooks can intercept other kinds of call sites.
type Hook interface {
	Attach(spy *Spy) (Handle, error)
	Detach(handle Handle) error
}

// funcVarHook intercepts by overwriting a settable func cell with a wrapper
// built by reflect.MakeFunc. The wrapper consults the agency's registry on
// every call, so copies of the wrapper that escaped before release become
// transparent forwarders to the original instead of stale interceptors.
type funcVarHook struct{}

type funcVarHandle struct {
	cell     reflect.Value
	original reflect.Value
}

func (funcVarHook) Attach(spy *Spy) (Handle, error) {
	cell := spy.cell
	cellType := cell.Type()
	original := reflect.ValueOf(cell.Interface())
	agency := spy.agency
	key := spy.key

	relayer := func(in []reflect.Value) []reflect.Value {
		current := agency.lookup(key)
		if current == nil || current.released {
			if cellType.IsVariadic() {
				return original.CallSlice(in)
			}

			return original.Call(in)
		}

		out := current.invoke(flattenCallArgs(cellType, in), nil)

		return reflectResults(cellType, out)
	}

	cell.Set(reflect.MakeFunc(cellType, relayer))

	return &funcVarHandle{cell: cell, original: original}, nil
}

func (funcVarHook) Detach(handle Handle) error {
	h, ok := handle.(*funcVarHandle)
	if !ok {
		return &InternalError{Message: "detach was handed a handle it did not create"}
	}

	h.cell.Set(h.original)

	return nil
}

// flattenCallArgs unpacks the reflected argument list MakeFunc delivers,
// expanding the packed variadic tail into individual values so the recorded
// call looks the way the call site wrote it.
func flattenCallArgs(fnType reflect.Type, in []reflect.Value) []any {
	args := []any{}

	for i, v := range in {
		if fnType.IsVariadic() && i == fnType.NumIn()-1 {
			for j := 0; j < v.Len(); j++ {
				args = append(args, v.Index(j).Interface())
			}

			continue
		}

		args = append(args, v.Interface())
	}

	return args
}

// reflectResults converts a dispatch result back into the reflected return
// values the wrapper's func type demands, substituting typed zeros for nils
// and converting values whose type merely differs, so a canned Return(42)
// satisfies a float64 result.
func reflectResults(fnType reflect.Type, out []any) []reflect.Value {
	results := make([]reflect.Value, fnType.NumOut())

	for i := range results {
		outType := fnType.Out(i)

		var value any
		if i < len(out) {
			value = out[i]
		}

		if value == nil {
			results[i] = reflect.Zero(outType)
			continue
		}

		rv := reflect.ValueOf(value)
		if rv.Type() != outType && !rv.Type().AssignableTo(outType) && rv.Type().ConvertibleTo(outType) {
			rv = rv.Convert(outType)
		}

		results[i] = rv
	}

	return results
}
