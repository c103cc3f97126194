// Package errors provides structured errors for issuesync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Relational store errors
//   - 3XX: Search index availability errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category classifies an error by the subsystem that produced it.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryStore      Category = "STORE"
	CategoryIndex      Category = "INDEX"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the process cannot continue with this store or index.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning means the operation failed but a retry may succeed.
	SeverityWarning Severity = "WARNING"
)

const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreOpen    = "ERR_201_STORE_OPEN"
	ErrCodeStoreQuery   = "ERR_202_STORE_QUERY"
	ErrCodeStoreLocked  = "ERR_203_STORE_LOCKED"
	ErrCodeCorruptIndex = "ERR_204_CORRUPT_INDEX"

	// Index availability errors (300-399)
	ErrCodeIndexUnavailable = "ERR_301_INDEX_UNAVAILABLE"
	ErrCodeIndexReadOnly    = "ERR_302_INDEX_READ_ONLY"
	ErrCodeIndexClosed      = "ERR_303_INDEX_CLOSED"

	// Validation errors (400-499)
	ErrCodeInvalidInput         = "ERR_401_INVALID_INPUT"
	ErrCodeUnsupportedDocIDType = "ERR_402_UNSUPPORTED_DOC_ID_TYPE"
	ErrCodeUnknownCause         = "ERR_403_UNKNOWN_CAUSE"
	ErrCodeUnknownDocType       = "ERR_404_UNKNOWN_DOC_TYPE"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeIndexFailed    = "ERR_502_INDEX_FAILED"
	ErrCodeRecoveryFailed = "ERR_503_RECOVERY_FAILED"
)

// categoryFromCode reads the hundreds digit of the code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	if code == ErrCodeCorruptIndex {
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether the index may accept the same write later.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeIndexUnavailable, ErrCodeIndexReadOnly, ErrCodeStoreLocked:
		return true
	default:
		return false
	}
}
