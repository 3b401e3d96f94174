package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/google/go-cmp/cmp"
)

// FormatValue formats a value for display in diagnostics, using the
// Go-syntax representation so strings and nils are unambiguous.
func FormatValue(v any) string {
	if v == nil {
		return "nil"
	}

	return fmt.Sprintf("%#v", v)
}

// FormatArgs renders a positional argument list.
func FormatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

// FormatKwargs renders a keyword argument map in key-sorted order, so
// failure messages are reproducible regardless of map iteration order.
func FormatKwargs(kwargs map[string]any) string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + FormatValue(kwargs[k])
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatCall renders an (args, kwargs) pair the way they appear in every
// diagnostic: "(1, 2) {b=20}". The kwargs block is omitted when empty.
func FormatCall(args []any, kwargs map[string]any) string {
	if len(kwargs) == 0 {
		return FormatArgs(args)
	}

	return FormatArgs(args) + " " + FormatKwargs(kwargs)
}

// FormatCalls renders every recorded call, one per line, for "here is what
// actually happened" sections of failure messages.
func FormatCalls(calls []*SpyCall) string {
	if len(calls) == 0 {
		return "  (no calls recorded)"
	}

	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = "  " + c.String()
	}

	return strings.Join(lines, "\n")
}

// diffValues renders a readable diff between an expected and an actual
// value. go-cmp panics on unexported fields it has no exporter for; fall
// back to plain rendering rather than crash a diagnostic path.
func diffValues(expected, actual any) (diff string) {
	defer func() {
		if recover() != nil {
			diff = fmt.Sprintf("expected: %s\nactual:   %s", FormatValue(expected), FormatValue(actual))
		}
	}()

	diff = cmp.Diff(expected, actual)
	if diff == "" {
		diff = fmt.Sprintf("expected: %s\nactual:   %s", FormatValue(expected), FormatValue(actual))
	}

	return diff
}

// diffRendered produces a unified diff between an expected rendering and the
// rendering of what was recorded.
func diffRendered(expected, actual string) string {
	if expected == actual {
		return ""
	}

	return textdiff.Unified("expected", "recorded", expected+"\n", actual+"\n")
}
