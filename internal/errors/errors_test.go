package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an engine error
	cause := errors.New("bulk rejected")

	// When: wrapping it
	err := IndexUnavailable("index rejected bulk write", cause)

	// Then: the cause is reachable through the chain
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestSyncError_Error_IncludesCodeAndCause(t *testing.T) {
	tests := []struct {
		name     string
		err      *SyncError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeConfigNotFound, "config file not found", nil),
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "distinct cause",
			err:      New(ErrCodeIndexReadOnly, "index is read-only", errors.New("writes locked")),
			expected: "[ERR_302_INDEX_READ_ONLY] index is read-only: writes locked",
		},
		{
			name:     "wrapped cause is not repeated",
			err:      Wrap(ErrCodeStoreQuery, errors.New("no such table: issues")),
			expected: "[ERR_202_STORE_QUERY] no such table: issues",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSyncError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeIndexReadOnly, "project A", nil)
	err2 := New(ErrCodeIndexReadOnly, "project B", nil)
	err3 := New(ErrCodeIndexClosed, "closed", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestSyncError_Is_ThroughFmtWrapping(t *testing.T) {
	// Given: a SyncError wrapped by fmt.Errorf
	err := fmt.Errorf("index on startup: %w", New(ErrCodeIndexReadOnly, "locked", nil))

	// Then: helpers still see it
	assert.True(t, errors.Is(err, New(ErrCodeIndexReadOnly, "", nil)))
	assert.Equal(t, ErrCodeIndexReadOnly, GetCode(err))
	assert.Equal(t, CategoryIndex, GetCategory(err))
	assert.True(t, IsRetryable(err))
}

func TestSyncError_WithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeUnsupportedDocIDType, "unsupported doc id type", nil).
		WithDetail("doc_id_type", "FOO").
		WithDetail("queue_uuid", "u1").
		WithSuggestion("delete the row from es_queue")

	assert.Equal(t, "FOO", err.Details["doc_id_type"])
	assert.Equal(t, "u1", err.Details["queue_uuid"])
	assert.Equal(t, "delete the row from es_queue", err.Suggestion)
}

func TestSyncError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStoreOpen, CategoryStore},
		{ErrCodeIndexUnavailable, CategoryIndex},
		{ErrCodeUnsupportedDocIDType, CategoryValidation},
		{ErrCodeIndexFailed, CategoryInternal},
		{"bogus", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "msg", nil).Category)
		})
	}
}

func TestSyncError_SeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code          string
		wantSeverity  Severity
		wantRetryable bool
	}{
		{ErrCodeCorruptIndex, SeverityFatal, false},
		{ErrCodeIndexUnavailable, SeverityWarning, true},
		{ErrCodeIndexReadOnly, SeverityWarning, true},
		{ErrCodeStoreLocked, SeverityWarning, true},
		{ErrCodeIndexClosed, SeverityError, false},
		{ErrCodeUnknownCause, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestHelpers_NonSyncError(t *testing.T) {
	err := errors.New("plain")

	assert.False(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Empty(t, GetCode(err))
	assert.Empty(t, GetCategory(err))
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
