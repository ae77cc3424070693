package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ErrMissingData.WithDetails("slot 3"))

	if !errors.Is(err, ErrMissingData) {
		t.Fatal("wrapped error should match sentinel by code")
	}
	if errors.Is(err, ErrQuotaExceeded) {
		t.Fatal("different codes should not match")
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := ErrStorageUnavailable.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable via errors.Is")
	}
	if ErrorCode(err) != "GN-STOR-5030" {
		t.Fatalf("ErrorCode = %q", ErrorCode(err))
	}
}

func TestDomainErrorMessage(t *testing.T) {
	err := ErrInvalidSlot.WithDetails("slot 12 of 10")
	want := "[GN-SAVE-4000] invalid save slot: slot 12 of 10"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	if ErrorCode(errors.New("plain")) != "" {
		t.Fatal("plain errors have no code")
	}
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	detailed := ErrCorruption.WithDetails("key slot0")
	if ErrCorruption.Details != "" {
		t.Fatal("WithDetails mutated the sentinel")
	}
	if detailed.Code != ErrCorruption.Code {
		t.Fatal("WithDetails changed the code")
	}
}
