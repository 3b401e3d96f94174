package core

import (
	"fmt"
	"reflect"
)

// SpyCall records one invocation of a spied target. Spies create and store
// these on every call; they are reachable through Spy.Calls. The result
// fields are written exactly once, immediately after the underlying
// invocation finishes, even when it finishes by panicking.
type SpyCall struct {
	spy *Spy

	// Index is the position of this call in the spy's log, starting at 0.
	Index int

	// Args holds the positional arguments literally supplied at the call
	// site, with the receiver stripped for method-mode targets. Kwargs holds
	// keyword arguments as supplied; calls arriving through the function
	// hook are purely positional and record an empty map.
	Args   []any
	Kwargs map[string]any

	// ReturnValues and PanicValue record the outcome; exactly one is
	// meaningful once completed. A call is pending only while the underlying
	// invocation is still on the stack.
	ReturnValues []any
	PanicValue   any

	completed bool
	panicked  bool
}

// Completed reports whether the underlying invocation has finished.
func (c *SpyCall) Completed() bool {
	return c.completed
}

// completeReturn records a normal completion. Writing a result twice means
// the dispatch path is broken.
func (c *SpyCall) completeReturn(values []any) {
	if c.completed {
		panic(&InternalError{Message: fmt.Sprintf("call %d completed twice", c.Index)})
	}

	c.completed = true
	c.ReturnValues = values
}

// completePanic records a completion by panic.
func (c *SpyCall) completePanic(value any) {
	if c.completed {
		panic(&InternalError{Message: fmt.Sprintf("call %d completed twice", c.Index)})
	}

	c.completed = true
	c.panicked = true
	c.PanicValue = value
}

// CalledWith reports whether this call is consistent with the given
// arguments. The expected positionals may be a prefix of the actual ones,
// and the expected kwargs may be a subset, checked against the canonical
// binding so a positionally-passed value still matches by name. Expected
// values may be Matchers.
func (c *SpyCall) CalledWith(args []any, kwargs map[string]any) bool {
	if len(args) > len(c.Args) {
		return false
	}

	for i, expected := range args {
		if !valuesEqual(c.Args[i], expected) {
			return false
		}
	}

	canonical := c.spy.sig.Bind(c.Args, c.Kwargs)

	for key, expected := range kwargs {
		actual, ok := canonical[key]
		if !ok || !valuesEqual(actual, expected) {
			return false
		}
	}

	return true
}

// CalledWithExactly reports whether this call equals the given arguments
// exactly: same positionals in full, and no keyword material beyond what was
// expected. Nil args and kwargs together are fully unconstrained, which is
// how order-only expectations are expressed; nil args alone leaves just the
// positionals unconstrained.
func (c *SpyCall) CalledWithExactly(args []any, kwargs map[string]any) bool {
	if args == nil && kwargs == nil {
		return true
	}

	if args != nil {
		if len(args) != len(c.Args) {
			return false
		}

		for i, expected := range args {
			if !valuesEqual(c.Args[i], expected) {
				return false
			}
		}
	}

	canonical := c.spy.sig.Bind(c.Args, c.Kwargs)

	for key, expected := range kwargs {
		actual, ok := canonical[key]
		if !ok || !valuesEqual(actual, expected) {
			return false
		}
	}

	// Keyword material the expectation didn't name is a mismatch in exact
	// mode. Positionally-bound names are fine; they're covered by the args
	// comparison above.
	names := c.spy.sig.posOrKwNames(true)
	boundByPosition := map[string]bool{}

	for i := range c.Args {
		if i < len(names) {
			boundByPosition[names[i]] = true
		}
	}

	for key := range c.Kwargs {
		if boundByPosition[key] {
			continue
		}

		if _, ok := kwargs[key]; !ok {
			return false
		}
	}

	return true
}

// Returned reports whether this call completed normally with the given
// return values.
func (c *SpyCall) Returned(values ...any) bool {
	if !c.completed || c.panicked {
		return false
	}

	if len(values) != len(c.ReturnValues) {
		return false
	}

	for i, expected := range values {
		if !valuesEqual(c.ReturnValues[i], expected) {
			return false
		}
	}

	return true
}

// Raised reports whether this call panicked with a value of exactly the
// prototype's dynamic type. Subtypes and assignability don't count; this is
// an identity check on the runtime type. Raised(nil) reports whether the
// call completed without panicking.
func (c *SpyCall) Raised(prototype any) bool {
	if prototype == nil {
		return c.completed && !c.panicked
	}

	return c.panicked && reflect.TypeOf(c.PanicValue) == reflect.TypeOf(prototype)
}

// RaisedWithMessage reports whether this call panicked with the prototype's
// exact type and the given message. Error values compare by Error(),
// everything else by its fmt rendering.
func (c *SpyCall) RaisedWithMessage(prototype any, message string) bool {
	return c.panicked && c.Raised(prototype) && panicMessage(c.PanicValue) == message
}

// String renders the call with key-sorted kwargs for reproducible output.
func (c *SpyCall) String() string {
	outcome := "pending"

	switch {
	case c.panicked:
		outcome = "raised=" + FormatValue(c.PanicValue)
	case c.completed:
		outcome = "returned=" + FormatValue(c.ReturnValues)
	}

	return fmt.Sprintf("call(args=%s, kwargs=%s, %s)",
		FormatArgs(c.Args), FormatKwargs(c.Kwargs), outcome)
}

// panicMessage renders a panic value the way a caller would describe it.
func panicMessage(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}

	return fmt.Sprint(v)
}
