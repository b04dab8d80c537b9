// Package errors provides standardized error handling for the NLU engine and its BPMN workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Engine errors
const (
	ErrCodeModelLoadFailed  ErrorCode = "MODEL_LOAD_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeIntentNotFound   ErrorCode = "INTENT_NOT_FOUND"
	ErrCodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// Infrastructure errors
const (
	ErrCodeParseTimeout       ErrorCode = "PARSE_TIMEOUT"
	ErrCodeCacheUnavailable   ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeHistoryWriteFailed ErrorCode = "HISTORY_WRITE_FAILED"
	ErrCodeBrokerUnavailable  ErrorCode = "BROKER_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns e.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// AsStandardError returns err as a StandardError, wrapping unknown errors as internal ones.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewModelLoadError reports a missing, corrupt or incompatible model bundle.
func NewModelLoadError(details string, cause error) *StandardError {
	if cause != nil {
		details = fmt.Sprintf("%s: %v", details, cause)
	}
	return &StandardError{
		Code:      ErrCodeModelLoadFailed,
		Message:   "Failed to load model bundle",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidInputError reports malformed text or a missing required argument.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentNotFoundError reports an intent name absent from the loaded model.
func NewIntentNotFoundError(intent string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentNotFound,
		Message:   "Intent not found in model",
		Details:   fmt.Sprintf("unknown intent %q", intent),
		Retryable: false,
		Metadata:  map[string]interface{}{"intent": intent},
		Timestamp: time.Now().UTC(),
	}
}

// NewResolutionError reports a builtin entity span that could not be canonicalized.
func NewResolutionError(entity, raw string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResolutionFailed,
		Message:   "Builtin entity could not be resolved",
		Details:   fmt.Sprintf("%s: %q", entity, raw),
		Retryable: false,
		Metadata:  map[string]interface{}{"entity": entity, "rawValue": raw},
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected fault.
func NewInternalError(cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewParseTimeoutError creates a retryable timeout raised around a synchronous parse.
func NewParseTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseTimeout,
		Message:   "Parse exceeded timeout",
		Details:   fmt.Sprintf("no result after %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable cache error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Parse cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewHistoryWriteError creates a retryable history persistence error.
func NewHistoryWriteError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryWriteFailed,
		Message:   "Failed to record parse history",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBrokerError wraps a failed Zeebe gateway call.
func NewBrokerError(operation string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeBrokerUnavailable,
		Message:   fmt.Sprintf("Zeebe operation '%s' failed", operation),
		Details:   err.Error(),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeModelLoadFailed:    "NLU_MODEL_UNAVAILABLE",
	ErrCodeInvalidInput:       "NLU_INVALID_INPUT",
	ErrCodeIntentNotFound:     "NLU_INTENT_NOT_FOUND",
	ErrCodeResolutionFailed:   "NLU_RESOLUTION_FAILED",
	ErrCodeParseTimeout:       "NLU_PARSE_TIMEOUT",
	ErrCodeCacheUnavailable:   "NLU_CACHE_UNAVAILABLE",
	ErrCodeHistoryWriteFailed: "NLU_HISTORY_WRITE_FAILED",
	ErrCodeBrokerUnavailable:  "NLU_BROKER_UNAVAILABLE",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCacheUnavailable,
		ErrCodeHistoryWriteFailed,
		ErrCodeBrokerUnavailable:
		return 3

	case ErrCodeParseTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "MODEL"):
		return "MODEL"
	case strings.Contains(codeStr, "INTENT") || strings.Contains(codeStr, "RESOLUTION"):
		return "NLU"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "HISTORY"):
		return "STORAGE"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "BROKER"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}
