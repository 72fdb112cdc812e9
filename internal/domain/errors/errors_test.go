package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name          string
		err           *AppError
		wantType      ErrorType
		wantCode      string
		wantRetryable bool
	}{
		{"insufficient data", NewInsufficientDataError("too few samples"), ErrorTypeInsufficientData, "INSUFFICIENT_DATA", false},
		{"validation", NewValidationError("INVALID_HORIZON", "days ahead must be positive"), ErrorTypeValidation, "INVALID_HORIZON", false},
		{"not found", NewNotFoundError("client"), ErrorTypeNotFound, "RESOURCE_NOT_FOUND", false},
		{"upstream", NewUpstreamError("query failed"), ErrorTypeUpstream, "UPSTREAM_FAILURE", true},
		{"internal", NewInternalError("unexpected state"), ErrorTypeInternal, "INTERNAL_ERROR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantRetryable, tt.err.Retryable)
			assert.True(t, IsType(tt.err, tt.wantType))
			assert.Equal(t, tt.wantRetryable, IsRetryable(tt.err))
		})
	}
}

func TestCauseChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewUpstreamError("failed to get metrics").WithCause(cause)

	assert.Contains(t, err.Error(), "failed to get metrics")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, stderrors.Is(err, cause))

	// typed checks see through further wrapping
	wrapped := Wrap(err, "scan aborted")
	require.Error(t, wrapped)
	assert.True(t, IsType(wrapped, ErrorTypeUpstream))
	assert.True(t, IsRetryable(wrapped))
	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
}

func TestIsInsufficientData(t *testing.T) {
	assert.True(t, IsInsufficientData(NewInsufficientDataError("short series")))
	assert.False(t, IsInsufficientData(NewUpstreamError("boom")))
	assert.False(t, IsInsufficientData(stderrors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	err := NewValidationError("INVALID_RECOMMENDATION", "record rejected").
		WithDetails(map[string]interface{}{"index": 3})
	assert.Equal(t, 3, err.Details["index"])
}
