package core

import (
	"fmt"
	"runtime"
	"strings"
)

// InvalidTargetError reports a target that cannot be spied on at all, or a
// release of a target that has no spy attached.
type InvalidTargetError struct {
	Target string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("cannot spy on %s: %s", e.Target, e.Reason)
}

// ExistingSpyError reports a double-spy on the same target. It carries the
// provenance of the original spy's setup to help diagnose the problem.
type ExistingSpyError struct {
	Target string
	Origin []uintptr // call stack captured when the first spy was set up
}

func (e *ExistingSpyError) Error() string {
	return fmt.Sprintf(
		"the target %s has already been spied on. Here is where that spy was set up:\n\n%s\n"+
			"You may have encountered a crash in that test preventing the spy from "+
			"being released. Try running that test manually.",
		e.Target, formatStack(e.Origin))
}

// IncompatibleFakeError reports a fake whose signature cannot stand in for
// the original. It is raised before any call is ever forwarded.
type IncompatibleFakeError struct {
	Target    string
	TargetSig string
	Fake      string
	FakeSig   string
}

func (e *IncompatibleFakeError) Error() string {
	return fmt.Sprintf(
		"the signature of %s (%s) is not compatible with %s (%s)",
		e.Fake, e.FakeSig, e.Target, e.TargetSig)
}

// UnexpectedCallError reports a call that an operation had no configuration
// for, or one past the number of expected calls. Operations raise it by
// panicking from inside the spied call, so it propagates to the caller
// exactly as a panic from the original would.
type UnexpectedCallError struct {
	Target        string
	Message       string
	OffendingCall string
}

func (e *UnexpectedCallError) Error() string {
	if e.OffendingCall == "" {
		return e.Message
	}

	return e.Message + "\nThe offending call:\n  " + e.OffendingCall
}

// AssertionError reports a failed expectation, either from the query layer
// or from a strict in-order operation rejecting a mismatched call.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// InternalError reports corrupted internal state, like a double-release or a
// registry entry pointing at the wrong spy. It is never recovered from.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return e.Message + "\n\nThis is an internal error in stakeout. Please report it!"
}

// formatStack renders the most recent frames of a captured call stack,
// trimmed to the few that point at the user's own setup code.
func formatStack(pcs []uintptr) string {
	if len(pcs) == 0 {
		return "  (no stack captured)"
	}

	const maxFrames = 4

	frames := runtime.CallersFrames(pcs)
	lines := []string{}

	for {
		frame, more := frames.Next()
		lines = append(lines, fmt.Sprintf("  %s\n    %s:%d", frame.Function, frame.File, frame.Line))

		if !more || len(lines) >= maxFrames {
			break
		}
	}

	return strings.Join(lines, "\n")
}
