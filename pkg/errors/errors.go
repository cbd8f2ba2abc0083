// Package errors defines custom error types and error handling utilities for the edugate admission service.
// This package provides structured error types that map to HTTP status codes and JSON error bodies.
package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
)

// Code identifies an error class.
type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeUnauthorized         Code = "unauthorized"
	CodeForbidden            Code = "forbidden"
	CodeNotFound             Code = "not_found"
	CodeRateLimitExceeded    Code = "rate_limit_exceeded"
	CodeStoreUnavailable     Code = "store_unavailable"
	CodeMisconfiguredPolicy  Code = "misconfigured_policy"
	CodeUnsupportedAdapter   Code = "unsupported_adapter"
	CodeUnsupportedStrategy  Code = "unsupported_strategy"
	CodeConnectionRejected   Code = "connection_rejected"
	CodeServerError          Code = "server_error"
	CodeServiceUnavailable   Code = "service_unavailable"
	CodeNotificationRejected Code = "notification_rejected"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// AppError represents a structured error with additional metadata
type AppError interface {
	error

	// Code returns the machine-readable error code
	Code() Code

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) AppError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code        Code
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Code() Code {
	return e.code
}

func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

func (e *baseError) Description() string {
	return e.description
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) WithCause(cause error) AppError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new AppError with the specified parameters
func NewError(code Code, httpStatus int, description string, message string) AppError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error
func ErrInvalidRequest(message string) AppError {
	return NewError(
		CodeInvalidRequest,
		http.StatusBadRequest,
		"The request is missing a required parameter or is otherwise malformed.",
		message,
	)
}

// ErrUnauthorized creates an unauthorized error
func ErrUnauthorized(message string) AppError {
	return NewError(
		CodeUnauthorized,
		http.StatusUnauthorized,
		"Authentication is required and has failed or has not been provided.",
		message,
	)
}

// ErrForbidden creates a forbidden error
func ErrForbidden(message string) AppError {
	return NewError(
		CodeForbidden,
		http.StatusForbidden,
		"The authenticated identity is not allowed to perform this action.",
		message,
	)
}

// ErrNotFound creates a not_found error
func ErrNotFound(message string) AppError {
	return NewError(CodeNotFound, http.StatusNotFound, "The requested resource was not found.", message)
}

// ErrServerError creates a server_error error
func ErrServerError(message string) AppError {
	return NewError(
		CodeServerError,
		http.StatusInternalServerError,
		"The server encountered an unexpected condition that prevented it from fulfilling the request.",
		message,
	)
}

// ================================================================================
// Admission-Control Error Constructors
// ================================================================================

// ErrRateLimitExceeded is the expected, deterministic rejection of a limited operation.
// retryAfter is the client hint in whole seconds.
func ErrRateLimitExceeded(scope string, limit int, retryAfter int64) AppError {
	return NewError(
		CodeRateLimitExceeded,
		http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.",
		fmt.Sprintf("rate limit exceeded for %s: %d requests", scope, limit),
	).WithMetadata("scope", scope).
		WithMetadata("limit", limit).
		WithMetadata("retry_after", retryAfter)
}

// ErrStoreUnavailable wraps a failure to reach the shared limiter store.
func ErrStoreUnavailable(cause error) AppError {
	return NewError(
		CodeStoreUnavailable,
		http.StatusServiceUnavailable,
		"The rate limiter backend could not be reached.",
		"rate limiter store unavailable",
	).WithCause(cause)
}

// ErrMisconfiguredPolicy reports a policy whose limit or window cannot be resolved.
func ErrMisconfiguredPolicy(context string, limit, windowSeconds int) AppError {
	return NewError(
		CodeMisconfiguredPolicy,
		http.StatusInternalServerError,
		"Rate limit policy is missing a limit or a window.",
		fmt.Sprintf("policy for context %q has limit=%d window=%ds", context, limit, windowSeconds),
	).WithMetadata("context", context)
}

// ErrUnsupportedAdapter reports a backing adapter that lacks its required dependency.
func ErrUnsupportedAdapter(adapter, missing string) AppError {
	return NewError(
		CodeUnsupportedAdapter,
		http.StatusInternalServerError,
		"Rate limit storage adapter is not usable.",
		fmt.Sprintf("%s adapter requires %s", adapter, missing),
	).WithMetadata("adapter", adapter)
}

// ErrUnsupportedStrategy reports a strategy type outside the known set.
func ErrUnsupportedStrategy(strategy string) AppError {
	return NewError(
		CodeUnsupportedStrategy,
		http.StatusInternalServerError,
		"Unknown rate limit strategy.",
		fmt.Sprintf("unsupported rate limit strategy %q", strategy),
	).WithMetadata("strategy", strategy)
}

// ErrConnectionRejected terminates a connection attempt with a stage-specific message.
func ErrConnectionRejected(stage, message string, httpStatus int) AppError {
	return NewError(
		CodeConnectionRejected,
		httpStatus,
		"The connection attempt was refused.",
		message,
	).WithMetadata("stage", stage)
}

// ErrNotificationRejected reports an admitted notification that the outbound channel refused.
func ErrNotificationRejected(cause error) AppError {
	return NewError(
		CodeNotificationRejected,
		http.StatusBadGateway,
		"The notification could not be delivered to the outbound channel.",
		"notification send failed",
	).WithCause(cause)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsAppError finds the first AppError in the chain of err
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if goerrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code Code) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code() == code
	}
	return false
}

// IsRateLimitError checks if an error is related to rate limiting
func IsRateLimitError(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus() == http.StatusTooManyRequests
	}
	return false
}

// IsStoreUnavailable checks if an error originates from the limiter backend
func IsStoreUnavailable(err error) bool {
	return HasCode(err, CodeStoreUnavailable)
}

// Is delegates to the standard library.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Message          string                 `json:"message,omitempty"`
	RetryAfter       int64                  `json:"retry_after,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts an AppError to an ErrorResponse
func ToErrorResponse(err AppError) *ErrorResponse {
	resp := &ErrorResponse{
		Error:            string(err.Code()),
		ErrorDescription: err.Description(),
		Message:          err.Error(),
		Metadata:         err.Metadata(),
	}
	if v, ok := err.Metadata()["retry_after"].(int64); ok {
		resp.RetryAfter = v
	}
	return resp
}

// ToGenericErrorResponse converts any error to an ErrorResponse and a status code
func ToGenericErrorResponse(err error) (int, *ErrorResponse) {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus(), ToErrorResponse(appErr)
	}

	return http.StatusInternalServerError, &ErrorResponse{
		Error:            string(CodeServerError),
		ErrorDescription: "An unexpected error occurred",
	}
}
