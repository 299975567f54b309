// Package errors provides the structured error taxonomy for the wallpaper fetch path.
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

const (
	ErrCodeSourceUnavailable  ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeAllSourcesFailed   ErrorCode = "ALL_SOURCES_FAILED"
	ErrCodeDownloadFailed     ErrorCode = "DOWNLOAD_FAILED"
	ErrCodeValidationRejected ErrorCode = "VALIDATION_REJECTED"

	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeUserNotFound     ErrorCode = "USER_NOT_FOUND"

	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeInvalidArgument      ErrorCode = "INVALID_ARGUMENT"
	ErrCodePermissionDenied     ErrorCode = "PERMISSION_DENIED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

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

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSourceUnavailableError reports one provider attempt that produced no descriptor.
func NewSourceUnavailableError(source string, err error) *StandardError {
	return newError(ErrCodeSourceUnavailable,
		fmt.Sprintf("Image source '%s' unavailable", source),
		errText(err), true, err).WithMetadata("source", source)
}

// NewAllSourcesFailedError reports that every configured source was attempted and failed.
func NewAllSourcesFailedError(category string, attempts int) *StandardError {
	return newError(ErrCodeAllSourcesFailed,
		"All image sources failed",
		fmt.Sprintf("category: %s, attempts: %d", category, attempts),
		true, nil).WithMetadata("attempts", attempts)
}

// NewDownloadFailedError reports a failed image body fetch.
func NewDownloadFailedError(url string, err error) *StandardError {
	return newError(ErrCodeDownloadFailed,
		"Image download failed",
		fmt.Sprintf("url: %s, error: %s", url, errText(err)),
		true, err)
}

// NewValidationRejectedError reports bytes that failed the quality checks.
func NewValidationRejectedError(reason string) *StandardError {
	return newError(ErrCodeValidationRejected,
		"Image rejected by validation",
		reason, false, nil)
}

// NewStoreUnavailableError wraps a persistence failure.
func NewStoreUnavailableError(op string, err error) *StandardError {
	return newError(ErrCodeStoreUnavailable,
		"Persistence store unavailable",
		fmt.Sprintf("op: %s, error: %s", op, errText(err)),
		true, err)
}

// NewUserNotFoundError reports an unknown user id.
func NewUserNotFoundError(userID int64) *StandardError {
	return newError(ErrCodeUserNotFound,
		"User not found",
		fmt.Sprintf("userId: %d", userID),
		false, nil)
}

// NewInvalidConfigurationError reports a config value that fails validation.
func NewInvalidConfigurationError(details string) *StandardError {
	return newError(ErrCodeInvalidConfiguration, "Invalid configuration", details, false, nil)
}

// NewInvalidArgumentError reports a bad caller-supplied argument.
func NewInvalidArgumentError(details string) *StandardError {
	return newError(ErrCodeInvalidArgument, "Invalid argument", details, false, nil)
}

// NewPermissionDeniedError reports a non-owner attempting an admin action.
func NewPermissionDeniedError(userID int64, action string) *StandardError {
	return newError(ErrCodePermissionDenied,
		"Permission denied",
		fmt.Sprintf("userId: %d, action: %s", userID, action),
		false, nil)
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns how many times the caller may retry an operation failing with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable:
		return 3
	case ErrCodeDownloadFailed, ErrCodeAllSourcesFailed:
		return 1
	default:
		// Source failures are recovered by the fallback chain, not by retrying the same source.
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SOURCE") || strings.Contains(codeStr, "DOWNLOAD"):
		return "SOURCE"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "USER"):
		return "STORE"
	case strings.Contains(codeStr, "PERMISSION"):
		return "AUTH"
	case strings.Contains(codeStr, "INVALID"):
		return "INPUT"
	default:
		return "OTHER"
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandardError returns the StandardError in err's chain, if any.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Normalize ensures the caller always holds a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}
