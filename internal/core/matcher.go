package core

import (
	"fmt"
	"reflect"
)

// Matcher defines the interface for flexible value matching in expectations
// and predicates. Compatible with gomega.GomegaMatcher via duck typing - any
// type implementing Match and FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// MatchValue checks if actual matches expected. If expected implements the
// Matcher interface, its Match method decides. Otherwise the values are
// compared with reflect.DeepEqual. Returns (success, failureMessage).
func MatchValue(actual, expected any) (bool, string) {
	if matcher, ok := expected.(Matcher); ok {
		success, err := matcher.Match(actual)
		if err != nil {
			return false, err.Error()
		}

		if !success {
			return false, matcher.FailureMessage(actual)
		}

		return true, ""
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %s, got %s", FormatValue(expected), FormatValue(actual))
}

// valuesEqual reports whether actual matches expected, ignoring the failure
// message. Expectation args and kwargs run through this, so matchers work
// anywhere a literal value does.
func valuesEqual(actual, expected any) bool {
	ok, _ := MatchValue(actual, expected)
	return ok
}

// Any returns a matcher that matches any value.
func Any() Matcher {
	return anyMatcher{}
}

type anyMatcher struct{}

func (anyMatcher) Match(any) (bool, error) { return true, nil }

func (anyMatcher) FailureMessage(any) string { return "" }

// Satisfies returns a matcher that uses a predicate function to check for a
// match. The predicate returns nil for a match, or an error describing the
// mismatch.
func Satisfies[T any](predicate func(T) error) Matcher {
	return &satisfiesMatcher[T]{predicate: predicate}
}

type satisfiesMatcher[T any] struct {
	predicate func(T) error
	lastErr   error
}

func (m *satisfiesMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)
	if !ok {
		return false, fmt.Errorf("type mismatch: expected %T, got %T", *new(T), actual)
	}

	m.lastErr = m.predicate(val)

	return m.lastErr == nil, nil
}

func (m *satisfiesMatcher[T]) FailureMessage(actual any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, m.lastErr)
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}
