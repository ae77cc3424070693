package recovery

import (
	"bytes"
	"errors"

	"github.com/elacour/granary/internal/codec"
	"github.com/elacour/granary/internal/core/domain"
)

// Kind is the failure taxonomy.
type Kind string

const (
	KindCorruption         Kind = "corruption"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindPermissionDenied   Kind = "permission_denied"
	KindVersionMismatch    Kind = "version_mismatch"
	KindMissingData        Kind = "missing_data"
	KindInvalidFormat      Kind = "invalid_format"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindUnknown            Kind = "unknown"
)

// Severity grades a classified failure for diagnostics.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Op is the operation during which a failure occurred.
type Op string

const (
	OpSave   Op = "save"
	OpLoad   Op = "load"
	OpDelete Op = "delete"
)

// Classification is the taxonomy verdict for one failure.
type Classification struct {
	Kind        Kind
	Severity    Severity
	Recoverable bool
}

// Classify maps a failure (plus the raw bytes involved, if any) onto
// the taxonomy. Decode failures split on repairability: bytes that look
// structurally repairable are InvalidFormat, everything else Corruption.
func Classify(err error, raw []byte) Classification {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		return Classification{KindQuotaExceeded, SeverityHigh, true}
	case errors.Is(err, domain.ErrPermissionDenied):
		return Classification{KindPermissionDenied, SeverityCritical, false}
	case errors.Is(err, domain.ErrStorageUnavailable):
		return Classification{KindStorageUnavailable, SeverityCritical, false}
	case errors.Is(err, domain.ErrMissingData):
		return Classification{KindMissingData, SeverityMedium, true}
	case errors.Is(err, domain.ErrIncompatibleVersion),
		errors.Is(err, domain.ErrMigrationNotPossible):
		return Classification{KindVersionMismatch, SeverityMedium, true}
	case errors.Is(err, domain.ErrInvalidFormat):
		return Classification{KindInvalidFormat, SeverityMedium, true}
	}

	var decodeErr *codec.DecodeError
	if errors.As(err, &decodeErr) || errors.Is(err, domain.ErrCorruption) ||
		errors.Is(err, domain.ErrInvalidSnapshot) {
		if looksRepairable(raw) {
			return Classification{KindInvalidFormat, SeverityMedium, true}
		}
		return Classification{KindCorruption, SeverityHigh, true}
	}

	return Classification{KindUnknown, SeverityHigh, false}
}

// looksRepairable reports whether raw resembles a JSON document that
// narrow structural repair (trailing commas, a few missing closers)
// could plausibly fix. Anything truncated mid-string or deeply broken
// is corruption; partial salvage handles those better.
func looksRepairable(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	unclosed, inString, ok := scanBalance(trimmed)
	return ok && !inString && unclosed <= maxRepairDepth
}
