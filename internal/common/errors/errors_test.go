package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Classification
// ==========================

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"model load", NewModelLoadError("bad bundle", nil), ErrCodeModelLoadFailed},
		{"wrapped", fmt.Errorf("query: %w", NewIntentNotFoundError("GetWeather")), ErrCodeIntentNotFound},
		{"resolution", NewResolutionError("snips/number", "table"), ErrCodeResolutionFailed},
		{"plain error", stderrors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
			assert.True(t, HasCode(tt.err, tt.want))
		})
	}
	assert.False(t, HasCode(nil, ErrCodeInternal))
}

func TestAsStandardError_WrapsUnknown(t *testing.T) {
	cause := stderrors.New("nil map")
	stdErr := AsStandardError(cause)

	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.ErrorIs(t, stdErr, cause)
}

func TestModelLoadError_KeepsCause(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := NewModelLoadError("corrupt model archive", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "MODEL_LOAD_FAILED")
}

// ==========================
// BPMN Conversion
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"intent not found", NewIntentNotFoundError("GetWeather"), "NLU_INTENT_NOT_FOUND", 0},
		{"invalid input", NewInvalidInputError("text is required"), "NLU_INVALID_INPUT", 0},
		{"timeout", NewParseTimeoutError(2 * time.Second), "NLU_PARSE_TIMEOUT", 2},
		{"cache", NewCacheUnavailableError(stderrors.New("dial tcp")), "NLU_CACHE_UNAVAILABLE", 3},
		{"broker not retryable", NewBrokerError("complete", stderrors.New("denied"), false), "NLU_BROKER_UNAVAILABLE", 0},
		{"internal", NewInternalError(stderrors.New("boom")), "INTERNAL_ERROR", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)
			assert.Equal(t, string(tt.err.Code), bpmnErr.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "MODEL", GetErrorCategory(ErrCodeModelLoadFailed))
	assert.Equal(t, "NLU", GetErrorCategory(ErrCodeIntentNotFound))
	assert.Equal(t, "NLU", GetErrorCategory(ErrCodeResolutionFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeHistoryWriteFailed))
	assert.Equal(t, "TIMEOUT", GetErrorCategory(ErrCodeParseTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestWithMetadata(t *testing.T) {
	err := NewInvalidInputError("bad").WithMetadata("field", "text")
	require.NotNil(t, err.Metadata)
	assert.Equal(t, "text", err.Metadata["field"])
	assert.False(t, IsRetryableErrorCode(err.Code))
	assert.True(t, IsRetryableErrorCode(ErrCodeParseTimeout))
}
