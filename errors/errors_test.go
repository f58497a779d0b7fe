package errors

import (
	"testing"
)

func TestSentinelClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", ErrNotFound, IsNotFound},
		{"forbidden", ErrForbidden, IsForbidden},
		{"invalid input", ErrInvalidInput, IsInvalidInput},
		{"unavailable", ErrUnavailable, IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("check(%v) = false, want true", tt.err)
			}
		})
	}
}

func TestWrappedSentinelPreservesClass(t *testing.T) {
	err := Wrap(ErrNotFound, "entity 0xabc")
	err = Wrap(err, "get")

	if !IsNotFound(err) {
		t.Errorf("IsNotFound() = false for wrapped sentinel")
	}
	if IsForbidden(err) {
		t.Errorf("IsForbidden() = true for not-found error")
	}
}

func TestNewFormattedConstructors(t *testing.T) {
	err := NewNotFoundf("entity %s", "0xdead")
	if !IsNotFound(err) {
		t.Errorf("NewNotFoundf did not produce a not-found error")
	}

	err = NewInvalidInputf("ttl %d <= 0", -5)
	if !IsInvalidInput(err) {
		t.Errorf("NewInvalidInputf did not produce an invalid-input error")
	}

	err = NewForbiddenf("caller %s is not owner", "0xcafe")
	if !IsForbidden(err) {
		t.Errorf("NewForbiddenf did not produce a forbidden error")
	}
}

func TestWrapUnavailable(t *testing.T) {
	if WrapUnavailable(nil, "read") != nil {
		t.Error("WrapUnavailable(nil) should return nil")
	}

	err := WrapUnavailable(New("disk I/O error"), "list entities")
	if !IsUnavailable(err) {
		t.Errorf("WrapUnavailable did not produce an unavailable error")
	}
}

func TestChecksRejectNil(t *testing.T) {
	if IsNotFound(nil) || IsForbidden(nil) || IsInvalidInput(nil) || IsUnavailable(nil) {
		t.Error("nil error must not match any class")
	}
}
