// Package tester carries the small assertion helpers shared by the
// package tests.
package tester

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Test fixtures often carry unexported fields; compare them too.
var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Eq asserts that got equals want and prints a diff when it does not.
// Types with an Equal method, such as time.Time, are compared with it.
func Eq[T any](t testing.TB, got, want T, msgAndArgs ...any) {
	t.Helper()
	diff := cmp.Diff(want, got, exportAll)
	if diff == "" {
		return
	}
	if len(msgAndArgs) > 0 {
		t.Fatalf("%v (-want +got):\n%s", msgAndArgs[0], diff)
	}
	t.Fatalf("mismatch (-want +got):\n%s", diff)
}

// True asserts that cond is true.
func True(t testing.TB, cond bool, msgAndArgs ...any) {
	t.Helper()
	if !cond {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v", msgAndArgs[0])
		}
		t.Fatalf("expected condition to be true")
	}
}

// False asserts that cond is false.
func False(t testing.TB, cond bool, msgAndArgs ...any) {
	t.Helper()
	if cond {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v", msgAndArgs[0])
		}
		t.Fatalf("expected condition to be false")
	}
}

// NoErr asserts that err is nil.
func NoErr(t testing.TB, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", msgAndArgs[0], err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

// ErrIs asserts that errors.Is(err, target).
func ErrIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error %v is not %v", err, target)
	}
}

// Contains asserts that s contains sub.
func Contains(t testing.TB, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%q does not contain %q", s, sub)
	}
}
