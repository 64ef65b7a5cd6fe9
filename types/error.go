package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Input and validation error codes.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrEmptyQuery     ErrorCode = "EMPTY_QUERY"
)

// Transient error codes. Errors carrying these codes are candidates for
// bounded retry (see llm/retry).
const (
	ErrTimeout         ErrorCode = "TIMEOUT"
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
	ErrConnectionReset ErrorCode = "CONNECTION_RESET"
)

// Retrieval and generation error codes.
const (
	ErrRetrievalEmpty     ErrorCode = "RETRIEVAL_EMPTY"
	ErrEmbeddingFailed    ErrorCode = "EMBEDDING_FAILED"
	ErrGenerationFailed   ErrorCode = "GENERATION_FAILED"
	ErrTranslationFailed  ErrorCode = "TRANSLATION_FAILED"
	ErrRerankFailed       ErrorCode = "RERANK_FAILED"
	ErrGraphUnavailable   ErrorCode = "GRAPH_UNAVAILABLE"
	ErrVectorUnavailable  ErrorCode = "VECTOR_UNAVAILABLE"
	ErrStoreQueryFailed   ErrorCode = "STORE_QUERY_FAILED"
	ErrCancelled          ErrorCode = "CANCELLED"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// transientCodes are retried by default. Everything else fails fast
// unless marked retryable explicitly.
var transientCodes = map[ErrorCode]bool{
	ErrTimeout:         true,
	ErrUpstreamTimeout: true,
	ErrRateLimited:     true,
	ErrUpstreamError:   true,
	ErrConnectionReset: true,
}

// NewError creates a new Error with the given code and message.
// Retryable defaults to true for transient codes.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: transientCodes[code]}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts a *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsRetryable checks if an error anywhere in the chain is marked retryable.
// Context cancellation and deadline expiry are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if e := AsError(err); e != nil {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
