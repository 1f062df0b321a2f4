// Package errors provides the standardized error taxonomy for the loan assistant.
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

// Extraction errors never reach the user; they are counted and logged per turn.
const (
	ErrCodeExtractionAmbiguous   ErrorCode = "EXTRACTION_AMBIGUOUS"
	ErrCodeExtractionUnparseable ErrorCode = "EXTRACTION_UNPARSEABLE"
	ErrCodeInvalidInputValue     ErrorCode = "INVALID_INPUT_VALUE"
	ErrCodeEntityHintInvalid     ErrorCode = "ENTITY_HINT_INVALID"
)

// LLM collaborator errors.
const (
	ErrCodeLLMAPIFailure    ErrorCode = "LLM_API_FAILURE"
	ErrCodeLLMTimeout       ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMAuthFailed    ErrorCode = "LLM_AUTH_FAILED"
	ErrCodeLLMQuotaExceeded ErrorCode = "LLM_QUOTA_EXCEEDED"
)

// Session, metrics and notification errors.
const (
	ErrCodeSessionNotFound        ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeMetricsRecordFailed    ErrorCode = "METRICS_RECORD_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause sets the error returned by Unwrap.
func (e *StandardError) WithCause(err error) *StandardError {
	e.cause = err
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is the shape thrown back to the Camunda engine by the turn worker.
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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewExtractionAmbiguousError reports several distinct candidates for one field in one turn.
func NewExtractionAmbiguousError(field string, candidates int) *StandardError {
	return newError(ErrCodeExtractionAmbiguous, "Multiple candidate values found",
		fmt.Sprintf("field: %s, candidates: %d", field, candidates), false, nil)
}

// NewExtractionUnparseableError reports a field cue with no parseable value.
func NewExtractionUnparseableError(field, details string) *StandardError {
	return newError(ErrCodeExtractionUnparseable, "No value could be parsed",
		fmt.Sprintf("field: %s, %s", field, details), false, nil)
}

// NewInvalidInputValueError reports a parsed value that fails a sanity bound.
func NewInvalidInputValueError(field, value, rule string) *StandardError {
	return newError(ErrCodeInvalidInputValue, "Value rejected by sanity bound",
		fmt.Sprintf("field: %s, value: %s, rule: %s", field, value, rule), false, nil)
}

// NewEntityHintInvalidError reports a model-proposed entity block that failed validation.
func NewEntityHintInvalidError(details string) *StandardError {
	return newError(ErrCodeEntityHintInvalid, "Model entity hint rejected", details, false, nil)
}

// NewLLMAPIFailureError reports an LLM call that exhausted its retry budget.
func NewLLMAPIFailureError(attempts int, err error) *StandardError {
	return newError(ErrCodeLLMAPIFailure, "LLM API call failed",
		fmt.Sprintf("attempts: %d, error: %v", attempts, err), true, err).
		WithMetadata("attempts", attempts)
}

// NewLLMTimeoutError reports an LLM call that exceeded its latency budget.
func NewLLMTimeoutError(budget time.Duration) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM API timeout",
		fmt.Sprintf("call exceeded %s latency budget", budget), true, nil)
}

// NewLLMAuthFailedError reports a rejected API key.
func NewLLMAuthFailedError(status int) *StandardError {
	return newError(ErrCodeLLMAuthFailed, "LLM API authentication failed",
		fmt.Sprintf("status: %d", status), false, nil)
}

// NewLLMQuotaExceededError reports a quota or rate limit response.
func NewLLMQuotaExceededError(status int) *StandardError {
	return newError(ErrCodeLLMQuotaExceeded, "LLM API quota exceeded",
		fmt.Sprintf("status: %d", status), true, nil)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Session not found",
		fmt.Sprintf("sessionId: %s", sessionID), false, nil)
}

func NewSessionStoreFailedError(op string, err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store operation failed",
		fmt.Sprintf("op: %s, error: %v", op, err), true, err)
}

func NewMetricsRecordFailedError(sink string, err error) *StandardError {
	return newError(ErrCodeMetricsRecordFailed, "Metrics record failed",
		fmt.Sprintf("sink: %s, error: %v", sink, err), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed,
		ErrCodeMetricsRecordFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeLLMAPIFailure,
		ErrCodeLLMQuotaExceeded:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
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

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := As(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Retryable
}

// Normalize wraps foreign errors into an INTERNAL_ERROR StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "EXTRACTION") || codeStr == string(ErrCodeInvalidInputValue) ||
		codeStr == string(ErrCodeEntityHintInvalid):
		return "EXTRACTION"
	case strings.HasPrefix(codeStr, "LLM"):
		return "AI"
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "METRICS"):
		return "METRICS"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
