package errors

import (
	stderrors "errors"
	"fmt"
)

// SyncError is the structured error type returned across package boundaries.
type SyncError struct {
	// Code is the unique error code (e.g., "ERR_301_INDEX_UNAVAILABLE").
	Code string

	Message  string
	Category Category
	Severity Severity

	// Details carries identifiers such as issue keys or project uuids.
	Details map[string]string

	Cause error

	// Retryable is true when repeating the same call may succeed.
	Retryable bool

	// Suggestion is an operator-facing hint.
	Suggestion string
}

func (e *SyncError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is matches another SyncError by code so callers can test with
// errors.Is(err, errors.New(ErrCodeIndexReadOnly, "", nil)).
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *SyncError) WithDetail(key, value string) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the operator hint and returns the error for chaining.
func (e *SyncError) WithSuggestion(suggestion string) *SyncError {
	e.Suggestion = suggestion
	return e
}

// New creates a SyncError. Category, severity and retryability derive from the code.
func New(code string, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SyncError from an existing error, reusing its message.
// A nil err yields nil.
func Wrap(code string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreError creates a relational store query error.
func StoreError(message string, cause error) *SyncError {
	return New(ErrCodeStoreQuery, message, cause)
}

// IndexUnavailable creates the retryable error returned when the search index rejects writes.
func IndexUnavailable(message string, cause error) *SyncError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *SyncError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SyncError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first SyncError in err's chain.
func as(err error) (*SyncError, bool) {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether any SyncError in the chain is retryable.
func IsRetryable(err error) bool {
	if se, ok := as(err); ok {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether the error has fatal severity.
func IsFatal(err error) bool {
	if se, ok := as(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the code of the first SyncError in the chain, or "".
func GetCode(err error) string {
	if se, ok := as(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category of the first SyncError in the chain, or "".
func GetCategory(err error) Category {
	if se, ok := as(err); ok {
		return se.Category
	}
	return ""
}
