// Package require is a minimal, dependency-free stand-in for testify/require,
// covering only the assertions this repository's tests actually use.
package require

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// Equal fails the test if want != got (or, for non-comparable kinds, if they are not deeply equal).
func Equal(t *testing.T, want, got interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if !objectsAreEqual(want, got) {
		t.Fatalf("expected %#v, but got %#v%s", want, got, formatExtra(msgAndArgs))
	}
}

// NotEqual fails the test if want == got.
func NotEqual(t *testing.T, want, got interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if objectsAreEqual(want, got) {
		t.Fatalf("expected values to differ, but both were %#v%s", got, formatExtra(msgAndArgs))
	}
}

// True fails the test if v is false.
func True(t *testing.T, v bool, msgAndArgs ...interface{}) {
	t.Helper()
	if !v {
		t.Fatalf("expected true, but was false%s", formatExtra(msgAndArgs))
	}
}

// False fails the test if v is true.
func False(t *testing.T, v bool, msgAndArgs ...interface{}) {
	t.Helper()
	if v {
		t.Fatalf("expected false, but was true%s", formatExtra(msgAndArgs))
	}
}

// NoError fails the test if err is non-nil.
func NoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected no error, but got %v%s", err, formatExtra(msgAndArgs))
	}
}

// Error fails the test if err is nil.
func Error(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error, but got none%s", formatExtra(msgAndArgs))
	}
}

// ErrorContains fails the test unless err is non-nil and its message contains substr.
func ErrorContains(t *testing.T, err error, substr string, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q, but got none%s", substr, formatExtra(msgAndArgs))
		return
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("expected error to contain %q, but got %q%s", substr, err.Error(), formatExtra(msgAndArgs))
	}
}

// Nil fails the test if v is not nil.
func Nil(t *testing.T, v interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if !isNil(v) {
		t.Fatalf("expected nil, but got %#v%s", v, formatExtra(msgAndArgs))
	}
}

// NotNil fails the test if v is nil.
func NotNil(t *testing.T, v interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if isNil(v) {
		t.Fatalf("expected a non-nil value%s", formatExtra(msgAndArgs))
	}
}

// Len fails the test unless v has the given length.
func Len(t *testing.T, v interface{}, length int, msgAndArgs ...interface{}) {
	t.Helper()
	rv := reflect.ValueOf(v)
	if rv.Len() != length {
		t.Fatalf("expected length %d, but got %d%s", length, rv.Len(), formatExtra(msgAndArgs))
	}
}

// CapturePanic runs fn and returns the recovered panic value as an error, or nil if fn did not panic.
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = panicString(v)
			default:
				err = panicString(reflectString(v))
			}
		}
	}()
	fn()
	return
}

type panicString string

func (p panicString) Error() string { return string(p) }

func reflectString(v interface{}) string {
	return reflect.ValueOf(v).String()
}

func objectsAreEqual(want, got interface{}) bool {
	if want == nil || got == nil {
		return want == got
	}
	return reflect.DeepEqual(want, got)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

func formatExtra(msgAndArgs []interface{}) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if len(msgAndArgs) == 1 {
		return ": " + toString(msgAndArgs[0])
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return ""
	}
	return ": " + fmt.Sprintf(format, msgAndArgs[1:]...)
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
