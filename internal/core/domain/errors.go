// Package domain defines the core domain models for Granary.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a persistence-engine error with a structured
// error code. Codes follow the GN-<AREA>-<NNNN> convention so operators
// can grep logs and map failures back to the taxonomy.
type DomainError struct {
	Code    string // Error code (e.g., "GN-STOR-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support; two DomainErrors match on code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// ErrorCode extracts the code from an error if it is a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrMissingData indicates the requested key does not exist in the store.
	ErrMissingData = NewDomainError("GN-STOR-4040", "save data not found")

	// ErrQuotaExceeded indicates the store is full and cleanup could not
	// free enough space.
	ErrQuotaExceeded = NewDomainError("GN-STOR-5070", "storage quota exceeded")

	// ErrPermissionDenied indicates the storage medium refused access.
	ErrPermissionDenied = NewDomainError("GN-STOR-4030", "storage permission denied")

	// ErrStorageUnavailable indicates the storage medium is inoperative.
	ErrStorageUnavailable = NewDomainError("GN-STOR-5030", "storage medium unavailable")
)

// ============================================================================
// Save / Snapshot Errors (SAVE)
// ============================================================================

var (
	// ErrInvalidSlot indicates a slot identifier outside [0, maxSlots).
	ErrInvalidSlot = NewDomainError("GN-SAVE-4000", "invalid save slot")

	// ErrInvalidSnapshot indicates required top-level sections are missing.
	ErrInvalidSnapshot = NewDomainError("GN-SAVE-4001", "snapshot missing required sections")

	// ErrIncompatibleVersion indicates the snapshot's major version differs
	// from the engine's and no migration path exists.
	ErrIncompatibleVersion = NewDomainError("GN-SAVE-4090", "incompatible save version")

	// ErrSaveInFlight indicates another save or load currently holds the
	// per-slot guard. The request is rejected, never queued.
	ErrSaveInFlight = NewDomainError("GN-SAVE-4091", "save operation already in flight for slot")

	// ErrInvalidExport indicates an export blob failed validation on import.
	ErrInvalidExport = NewDomainError("GN-SAVE-4002", "invalid export blob")
)

// ============================================================================
// Recovery Errors (REC)
// ============================================================================

var (
	// ErrCorruption indicates stored bytes could not be decoded.
	ErrCorruption = NewDomainError("GN-REC-5001", "save data corrupted")

	// ErrInvalidFormat indicates malformed but not outright unparsable bytes.
	ErrInvalidFormat = NewDomainError("GN-REC-4000", "save data malformed")

	// ErrMigrationNotPossible indicates no migration path covers the
	// snapshot's source version.
	ErrMigrationNotPossible = NewDomainError("GN-REC-4091", "no migration path for save version")

	// ErrRecoveryExhausted indicates the recovery attempt ceiling was hit.
	ErrRecoveryExhausted = NewDomainError("GN-REC-5090", "recovery attempts exhausted")
)
