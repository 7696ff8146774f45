// Package reachtest provides testify-style assertions built on package reach.
package reachtest

import (
	"fmt"
	"reflect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachscan/pkg/reach"
)

type tHelper interface {
	Helper()
}

// AssertInstanceOfNotReachable asserts that no instance of T is strongly
// reachable from start. The start object itself is not considered.
func AssertInstanceOfNotReachable[T any](t assert.TestingT, start any, msgAndArgs ...any) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}

	found, err := reach.IsReachable(reach.InstanceOf[T](), start)
	if err != nil {
		return assert.Fail(t, fmt.Sprintf("Reachability scan from %s failed: %v", describe(start), err), msgAndArgs...)
	}
	if found {
		return assert.Fail(t, fmt.Sprintf("Found an instance of %s reachable from %s", reflect.TypeFor[T](), describe(start)), msgAndArgs...)
	}
	return true
}

// AssertInstanceOfReachable asserts that an instance of T is strongly
// reachable from start.
func AssertInstanceOfReachable[T any](t assert.TestingT, start any, msgAndArgs ...any) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}

	found, err := reach.IsReachable(reach.InstanceOf[T](), start)
	if err != nil {
		return assert.Fail(t, fmt.Sprintf("Reachability scan from %s failed: %v", describe(start), err), msgAndArgs...)
	}
	if !found {
		return assert.Fail(t, fmt.Sprintf("No instance of %s is reachable from %s", reflect.TypeFor[T](), describe(start)), msgAndArgs...)
	}
	return true
}

// RequireInstanceOfNotReachable is AssertInstanceOfNotReachable that stops
// the test on failure.
func RequireInstanceOfNotReachable[T any](t require.TestingT, start any, msgAndArgs ...any) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertInstanceOfNotReachable[T](t, start, msgAndArgs...) {
		t.FailNow()
	}
}

func describe(x any) string {
	if x == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(x)
	if s, ok := x.(fmt.Stringer); ok {
		if str, ok := stringOf(s); ok {
			return str
		}
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return fmt.Sprintf("%T@%#x", x, v.Pointer())
	}
	return fmt.Sprintf("%T", x)
}

// stringOf calls String, reporting false if it panics, as it does for a nil
// pointer whose String has a value receiver.
func stringOf(s fmt.Stringer) (str string, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return s.String(), true
}
