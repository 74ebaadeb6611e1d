// Package apperr defines the error categories surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the broad category of a failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindProvider      Kind = "provider"
	KindStorage       Kind = "storage"
	KindRateLimited   Kind = "rate_limited"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Machine-readable codes returned in the "error" field of API responses.
const (
	CodeValidationFailed      = "validation_failed"
	CodeProviderNotConfigured = "provider_not_configured"
	CodeAllProvidersFailed    = "all_providers_failed"
	CodeSynthesisFailed       = "synthesis_failed"
	CodeStorageFailed         = "storage_failed"
	CodeRateLimited           = "rate_limited"
	CodeUnauthorized          = "unauthorized"
	CodeForbidden             = "forbidden"
	CodeNotFound              = "not_found"
	CodeInternal              = "internal_error"
)

// Error is an application error with a caller-safe message.
// Err holds the underlying cause and is never shown to callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code string, status int, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Status: status, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidationFailed, http.StatusBadRequest, message, nil)
}

func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Configuration reports a missing provider credential. callerCorrectable
// selects 400 (the caller asked for it) over 500 (server default is broken).
func Configuration(message string, callerCorrectable bool, err error) *Error {
	status := http.StatusInternalServerError
	if callerCorrectable {
		status = http.StatusBadRequest
	}
	return New(KindConfiguration, CodeProviderNotConfigured, status, message, err)
}

func Provider(code, message string, err error) *Error {
	return New(KindProvider, code, http.StatusInternalServerError, message, err)
}

func Storage(message string, err error) *Error {
	return New(KindStorage, CodeStorageFailed, http.StatusInternalServerError, message, err)
}

func RateLimited(message string) *Error {
	return New(KindRateLimited, CodeRateLimited, http.StatusTooManyRequests, message, nil)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, http.StatusForbidden, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, http.StatusNotFound, message, nil)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// StatusOf is the HTTP status Public would report for err.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Public returns the code, message and status safe to return to a caller.
// Errors outside the taxonomy collapse to a generic internal error.
func Public(err error) (code, message string, status int) {
	if e, ok := As(err); ok {
		return e.Code, e.Message, e.Status
	}
	return CodeInternal, "an internal error occurred", http.StatusInternalServerError
}
