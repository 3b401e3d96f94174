// Package asserts provides standalone assertion functions for spies, for
// tests that prefer free functions over methods on the agency:
//
//	asserts.CalledWith(t, spy, 10, 20)
//
// Every function delegates to the spy's own agency, so the two styles are
// interchangeable and fail with identical messages.
package asserts

import (
	"github.com/toejough/stakeout"
)

// Called fails the test unless the spied target was called at least once.
func Called(t stakeout.TestReporter, spy *stakeout.Spy) {
	t.Helper()
	spy.Agency().AssertCalled(t, spy)
}

// NotCalled fails the test if the spied target was called at all.
func NotCalled(t stakeout.TestReporter, spy *stakeout.Spy) {
	t.Helper()
	spy.Agency().AssertNotCalled(t, spy)
}

// CallCount fails the test unless the target was called exactly count times.
func CallCount(t stakeout.TestReporter, spy *stakeout.Spy, count int) {
	t.Helper()
	spy.Agency().AssertCallCount(t, spy, count)
}

// CalledWith fails the test unless some call is consistent with the given
// values. Values may end with a stakeout.KW map and may be Matchers.
func CalledWith(t stakeout.TestReporter, spy *stakeout.Spy, values ...any) {
	t.Helper()
	spy.Agency().AssertCalledWith(t, spy, values...)
}

// LastCalledWith fails the test unless the most recent call is consistent
// with the given values.
func LastCalledWith(t stakeout.TestReporter, spy *stakeout.Spy, values ...any) {
	t.Helper()
	spy.Agency().AssertLastCalledWith(t, spy, values...)
}

// Returned fails the test unless some call returned the given values.
func Returned(t stakeout.TestReporter, spy *stakeout.Spy, values ...any) {
	t.Helper()
	spy.Agency().AssertReturned(t, spy, values...)
}

// LastReturned fails the test unless the most recent call returned the
// given values.
func LastReturned(t stakeout.TestReporter, spy *stakeout.Spy, values ...any) {
	t.Helper()
	spy.Agency().AssertLastReturned(t, spy, values...)
}

// Raised fails the test unless some call panicked with the prototype's
// exact dynamic type.
func Raised(t stakeout.TestReporter, spy *stakeout.Spy, prototype any) {
	t.Helper()
	spy.Agency().AssertRaised(t, spy, prototype)
}

// LastRaised fails the test unless the most recent call panicked with the
// prototype's exact dynamic type.
func LastRaised(t stakeout.TestReporter, spy *stakeout.Spy, prototype any) {
	t.Helper()
	spy.Agency().AssertLastRaised(t, spy, prototype)
}

// RaisedWithMessage fails the test unless some call panicked with the
// prototype's exact type and the given message.
func RaisedWithMessage(t stakeout.TestReporter, spy *stakeout.Spy, prototype any, message string) {
	t.Helper()
	spy.Agency().AssertRaisedWithMessage(t, spy, prototype, message)
}

// LastRaisedWithMessage fails the test unless the most recent call panicked
// with the prototype's exact type and the given message.
func LastRaisedWithMessage(t stakeout.TestReporter, spy *stakeout.Spy, prototype any, message string) {
	t.Helper()
	spy.Agency().AssertLastRaisedWithMessage(t, spy, prototype, message)
}
