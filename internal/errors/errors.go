// Package errors provides unified error handling with structured error codes.
// Codes mirror the failure taxonomy of the cloud providers the platform talks to.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code int

const (
	CodeUnknown Code = iota
	// CodeTransport covers network-unreachable and provider-side outages.
	CodeTransport
	// CodeAuth covers rejected credentials.
	CodeAuth
	// CodeRateLimit covers provider throttling (HTTP 429).
	CodeRateLimit
	// CodeFormat covers unexpected response shapes.
	CodeFormat
	// CodeValidation covers bad input caught before any network activity.
	CodeValidation
	// CodeStorage covers note persistence failures.
	CodeStorage
)

var codeNames = map[Code]string{
	CodeUnknown:    "UNKNOWN",
	CodeTransport:  "TRANSPORT",
	CodeAuth:       "AUTH",
	CodeRateLimit:  "RATE_LIMIT",
	CodeFormat:     "FORMAT",
	CodeValidation: "VALIDATION",
	CodeStorage:    "STORAGE",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromHTTPStatus maps a non-2xx provider status to the failure taxonomy.
func FromHTTPStatus(status int, body string) *AppError {
	var code Code
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeAuth
	case status == http.StatusTooManyRequests:
		code = CodeRateLimit
	default:
		code = CodeTransport
	}
	e := Newf(code, "provider returned status %d", status)
	if body != "" {
		e = e.WithMetadata("body", body)
	}
	return e
}

// CodeOf extracts the code from an error chain, CodeUnknown if none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially retryable.
// Every remote-call failure kind is retried; validation and storage
// failures are surfaced immediately.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeTransport, CodeAuth, CodeRateLimit, CodeFormat:
		return true
	default:
		return false
	}
}
