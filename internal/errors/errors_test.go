// Package errors tests for error code handling.
package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrNotFound, "no presence recorded")

	if err.Code != ErrNotFound {
		t.Errorf("Expected code %s, got %s", ErrNotFound, err.Code)
	}
	if err.Message != "no presence recorded" {
		t.Errorf("Unexpected message: %s", err.Message)
	}
	if err.Err != nil {
		t.Error("New should not set an underlying error")
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrForbidden, "user mismatch")
	if got := err.Error(); got != "[FORBIDDEN] user mismatch" {
		t.Errorf("Unexpected error string: %s", got)
	}

	wrapped := Wrap(ErrDatabase, "upsert failed", stderrors.New("disk io"))
	if got := wrapped.Error(); !strings.Contains(got, "DATABASE_ERROR") || !strings.Contains(got, "disk io") {
		t.Errorf("Wrapped error string missing parts: %s", got)
	}
}

func TestWrapUnwrap(t *testing.T) {
	inner := stderrors.New("constraint violated")
	err := Wrap(ErrConflict, "duplicate subscription", inner)

	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if err.Unwrap() != inner {
		t.Error("Unwrap should return the inner error")
	}
}

func TestIs(t *testing.T) {
	err := New(ErrDataCorruption, "bad stored presence")

	if !Is(err, ErrDataCorruption) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrNotFound) {
		t.Error("Is should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrInternal) {
		t.Error("Is should not match plain errors")
	}
}

func TestCode(t *testing.T) {
	if got := Code(New(ErrUnknownUsers, "x")); got != ErrUnknownUsers {
		t.Errorf("Expected UNKNOWN_USERS, got %s", got)
	}
	if got := Code(stderrors.New("plain")); got != ErrInternal {
		t.Errorf("Plain errors should map to INTERNAL_ERROR, got %s", got)
	}
}
