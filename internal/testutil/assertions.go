package testutil

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/stretchr/testify/assert"
)

type tHelper interface {
	Helper()
}

// CommandResult is the observable outcome of running a command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r CommandResult) describe() string {
	return fmt.Sprintf("stdout was <%s> and stderr was <%s>", r.Stdout, r.Stderr)
}

// AssertExitCode asserts that r exited with want.
func AssertExitCode(t assert.TestingT, want int, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if r.ExitCode != want {
		return assert.Fail(t, fmt.Sprintf("expected exit code <%d> but exit code was <%d> and %s",
			want, r.ExitCode, r.describe()), msgAndArgs...)
	}
	return true
}

// AssertZeroExitCode asserts that r succeeded.
func AssertZeroExitCode(t assert.TestingT, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return AssertExitCode(t, 0, r, msgAndArgs...)
}

// AssertNonZeroExitCode asserts that r failed.
func AssertNonZeroExitCode(t assert.TestingT, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if r.ExitCode == 0 {
		return assert.Fail(t, "expected non-zero exit code but exit code was 0 and "+r.describe(), msgAndArgs...)
	}
	return true
}

// AssertStdoutContainsString asserts that r's stdout contains s.
func AssertStdoutContainsString(t assert.TestingT, s string, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !strings.Contains(r.Stdout, s) {
		return assert.Fail(t, fmt.Sprintf("expected stdout to contain string <%s> but %s", s, r.describe()), msgAndArgs...)
	}
	return true
}

// AssertStderrContainsString asserts that r's stderr contains s.
func AssertStderrContainsString(t assert.TestingT, s string, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !strings.Contains(r.Stderr, s) {
		return assert.Fail(t, fmt.Sprintf("expected stderr to contain string <%s> but %s", s, r.describe()), msgAndArgs...)
	}
	return true
}

// AssertStdoutContainsRegex asserts that expr matches somewhere in r's stdout.
func AssertStdoutContainsRegex(t assert.TestingT, expr string, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !regexp.MustCompile(expr).MatchString(r.Stdout) {
		return assert.Fail(t, fmt.Sprintf("expected stdout to contain regex <%s> but %s", expr, r.describe()), msgAndArgs...)
	}
	return true
}

// AssertStderrContainsRegex asserts that expr matches somewhere in r's stderr.
func AssertStderrContainsRegex(t assert.TestingT, expr string, r CommandResult, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !regexp.MustCompile(expr).MatchString(r.Stderr) {
		return assert.Fail(t, fmt.Sprintf("expected stderr to contain regex <%s> but %s", expr, r.describe()), msgAndArgs...)
	}
	return true
}

// AssertContainsWordsWithQuotes asserts that message contains each word
// wrapped in single quotes.
func AssertContainsWordsWithQuotes(t assert.TestingT, message string, words ...string) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	ok := true
	for _, w := range words {
		if !strings.Contains(message, "'"+w+"'") {
			ok = assert.Fail(t, fmt.Sprintf("%s should contain '%s' (with quotes)", message, w))
		}
	}
	return ok
}

// AsStringSet renders each value quoted and returns the sorted distinct set.
func AsStringSet[T any](values []T) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := fmt.Sprintf("%q", fmt.Sprint(v))
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func indexOfSublist[T comparable](list, sub []T) int {
	if len(sub) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(sub) <= len(list); i++ {
		for j := range sub {
			if list[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// AssertContainsSublist asserts that sub appears contiguously in list.
func AssertContainsSublist[T comparable](t assert.TestingT, list []T, sub ...T) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if indexOfSublist(list, sub) < 0 {
		return assert.Fail(t, fmt.Sprintf("Did not find %v as a sublist of %v", sub, list))
	}
	return true
}

// AssertDoesNotContainSublist asserts that sub does not appear contiguously
// in list.
func AssertDoesNotContainSublist[T comparable](t assert.TestingT, list []T, sub ...T) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if indexOfSublist(list, sub) >= 0 {
		return assert.Fail(t, fmt.Sprintf("Found %v as a sublist of %v", sub, list))
	}
	return true
}

// ContainsSublistWithGaps reports whether every element of want occurs in
// list in order, other elements in between allowed. On failure it returns
// the first element of want that could not be matched.
func ContainsSublistWithGaps[S, T any](list []S, equal func(S, T) bool, want ...T) (missing T, ok bool) {
	i := 0
	for _, w := range want {
		for ; i < len(list); i++ {
			if equal(list[i], w) {
				break
			}
		}
		if i == len(list) {
			return w, false
		}
		i++
	}
	return missing, true
}

// AssertEqualsUnifyingLineEnds compares strings after turning CRLF into LF
// in actual.
func AssertEqualsUnifyingLineEnds(t assert.TestingT, expected, actual string, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return assert.Equal(t, expected, strings.ReplaceAll(actual, "\r\n", "\n"), msgAndArgs...)
}

func typeDescription(v interface{}) string {
	if v == nil {
		return "null"
	}
	return "instance of " + reflect.TypeOf(v).String()
}

// ChattyFormat describes a mismatch including the dynamic types of both
// values. An empty message is omitted.
func ChattyFormat(message string, expected, actual interface{}) string {
	lines := []string{""}
	if message != "" {
		lines[0] = "\n" + message
	}
	lines = append(lines,
		fmt.Sprintf("  expected %s: <%v>", typeDescription(expected), expected),
		fmt.Sprintf("  but was %s: <%v>", typeDescription(actual), actual))
	return strings.Join(lines, "\n")
}

// AssertPanicsWithType asserts that f panics with a value of type T, or an
// error that errors.As can convert to T, and returns that value.
func AssertPanicsWithType[T any](t assert.TestingT, f func(), msgAndArgs ...interface{}) (value T, ok bool) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	want := reflect.TypeOf((*T)(nil)).Elem()

	var (
		panicked  bool
		recovered interface{}
	)
	func() {
		defer func() {
			if recovered = recover(); recovered != nil {
				panicked = true
			}
		}()
		f()
	}()

	if !panicked {
		assert.Fail(t, fmt.Sprintf("expected %s to be panicked, but nothing was panicked", want), msgAndArgs...)
		return value, false
	}
	if v, match := recovered.(T); match {
		return v, true
	}
	if err, isErr := recovered.(error); isErr {
		var target T
		if want.Kind() == reflect.Interface || want.Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if errors.As(err, &target) {
				return target, true
			}
		}
	}
	assert.Fail(t, fmt.Sprintf("expected %s to be panicked, but %T was panicked: %v", want, recovered, recovered), msgAndArgs...)
	return value, false
}

// AssertErrorAs asserts that err has a T in its chain and returns it.
func AssertErrorAs[T error](t assert.TestingT, err error, msgAndArgs ...interface{}) (T, bool) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	var target T
	if err == nil {
		assert.Fail(t, fmt.Sprintf("expected an error of type %T but got nil", target), msgAndArgs...)
		return target, false
	}
	if !errors.As(err, &target) {
		assert.Fail(t, fmt.Sprintf("expected an error of type %T but got %T: %v", target, err, err), msgAndArgs...)
		return target, false
	}
	return target, true
}
