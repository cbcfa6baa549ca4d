package require

import (
	"errors"
	"testing"
)

func TestCapturePanic(t *testing.T) {
	if err := CapturePanic(func() {}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := CapturePanic(func() { panic(errors.New("boom")) }); err == nil || err.Error() != "boom" {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CapturePanic(func() { panic("stringy") }); err == nil || err.Error() != "stringy" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEqual(t *testing.T) {
	Equal(t, 1, 1)
	Equal(t, "a", "a")
}
