package core

import (
	"fmt"
)

// TestReporter is the slice of testing.TB the assertion layer needs.
type TestReporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// AssertCalled fails the test unless the target was called at least once.
// The target may be a *Spy or the spied-on pointer itself.
func (a *Agency) AssertCalled(t TestReporter, spyOrTarget any) {
	t.Helper()
	a.check(t, spyOrTarget, checkCalled)
}

// AssertNotCalled fails the test if the target was called at all.
func (a *Agency) AssertNotCalled(t TestReporter, spyOrTarget any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.Called() {
			return &AssertionError{Message: fmt.Sprintf(
				"%s was called %d time(s) when it should not have been called at all.\nThe calls:\n%s",
				spy.Name(), spy.CallCount(), FormatCalls(spy.Calls()))}
		}

		return nil
	})
}

// AssertCallCount fails the test unless the target was called exactly count
// times.
func (a *Agency) AssertCallCount(t TestReporter, spyOrTarget any, count int) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.CallCount() != count {
			return &AssertionError{Message: fmt.Sprintf(
				"%s was called %d time(s), not %d.\nThe calls:\n%s",
				spy.Name(), spy.CallCount(), count, FormatCalls(spy.Calls()))}
		}

		return nil
	})
}

// AssertCalledWith fails the test unless some call is consistent with the
// given values. Values may end with a KW map and may be Matchers.
func (a *Agency) AssertCalledWith(t TestReporter, spyOrTarget any, values ...any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.CalledWith(values...) {
			return nil
		}

		args, kwargs := splitCallValues(values)

		return &AssertionError{Message: fmt.Sprintf(
			"%s was not called with %s.\nThe calls:\n%s",
			spy.Name(), FormatCall(args, kwargs), FormatCalls(spy.Calls()))}
	})
}

// AssertLastCalledWith fails the test unless the most recent call is
// consistent with the given values.
func (a *Agency) AssertLastCalledWith(t TestReporter, spyOrTarget any, values ...any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.LastCalledWith(values...) {
			return nil
		}

		args, kwargs := splitCallValues(values)

		return &AssertionError{Message: fmt.Sprintf(
			"%s was not last called with %s.\nThe calls:\n%s",
			spy.Name(), FormatCall(args, kwargs), FormatCalls(spy.Calls()))}
	})
}

// AssertReturned fails the test unless some call returned the given values.
func (a *Agency) AssertReturned(t TestReporter, spyOrTarget any, values ...any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.Returned(values...) {
			return nil
		}

		return &AssertionError{Message: fmt.Sprintf(
			"No call to %s returned %s.\nThe calls:\n%s",
			spy.Name(), FormatArgs(values), FormatCalls(spy.Calls()))}
	})
}

// AssertLastReturned fails the test unless the most recent call returned the
// given values.
func (a *Agency) AssertLastReturned(t TestReporter, spyOrTarget any, values ...any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.LastReturned(values...) {
			return nil
		}

		return &AssertionError{Message: fmt.Sprintf(
			"The last call to %s did not return %s.\nThe calls:\n%s",
			spy.Name(), FormatArgs(values), FormatCalls(spy.Calls()))}
	})
}

// AssertRaised fails the test unless some call panicked with the prototype's
// exact dynamic type.
func (a *Agency) AssertRaised(t TestReporter, spyOrTarget any, prototype any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.Raised(prototype) {
			return nil
		}

		return &AssertionError{Message: fmt.Sprintf(
			"No call to %s raised %T.\nThe calls:\n%s",
			spy.Name(), prototype, FormatCalls(spy.Calls()))}
	})
}

// AssertLastRaised fails the test unless the most recent call panicked with
// the prototype's exact dynamic type.
func (a *Agency) AssertLastRaised(t TestReporter, spyOrTarget any, prototype any) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.LastRaised(prototype) {
			return nil
		}

		return &AssertionError{Message: fmt.Sprintf(
			"The last call to %s did not raise %T.\nThe calls:\n%s",
			spy.Name(), prototype, FormatCalls(spy.Calls()))}
	})
}

// AssertRaisedWithMessage fails the test unless some call panicked with the
// prototype's exact type and the given message.
func (a *Agency) AssertRaisedWithMessage(t TestReporter, spyOrTarget any, prototype any, message string) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.RaisedWithMessage(prototype, message) {
			return nil
		}

		return raisedMessageFailure(spy, prototype, message, "No call to")
	})
}

// AssertLastRaisedWithMessage fails the test unless the most recent call
// panicked with the prototype's exact type and the given message.
func (a *Agency) AssertLastRaisedWithMessage(t TestReporter, spyOrTarget any, prototype any, message string) {
	t.Helper()
	a.check(t, spyOrTarget, func(spy *Spy) error {
		if spy.LastRaisedWithMessage(prototype, message) {
			return nil
		}

		return raisedMessageFailure(spy, prototype, message, "The last call to")
	})
}

// raisedMessageFailure includes a unified diff against the closest recorded
// panic message, which is usually the one the test author meant.
func raisedMessageFailure(spy *Spy, prototype any, message, prefix string) error {
	failure := fmt.Sprintf("%s %s raised %T with message %q.\nThe calls:\n%s",
		prefix, spy.Name(), prototype, message, FormatCalls(spy.Calls()))

	for _, call := range spy.Calls() {
		if call.Raised(prototype) {
			if diff := diffRendered(message, panicMessage(call.PanicValue)); diff != "" {
				failure += "\n\nClosest panic message:\n" + diff
			}

			break
		}
	}

	return &AssertionError{Message: failure}
}

func checkCalled(spy *Spy) error {
	if !spy.Called() {
		return &AssertionError{Message: fmt.Sprintf("%s was not called.", spy.Name())}
	}

	return nil
}

func (a *Agency) check(t TestReporter, spyOrTarget any, verify func(*Spy) error) {
	t.Helper()

	spy, err := a.resolveSpy(spyOrTarget)
	if err != nil {
		t.Fatalf("%v", err)

		return
	}

	if err := verify(spy); err != nil {
		t.Fatalf("%v", err)
	}
}
