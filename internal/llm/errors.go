package llm

import (
	"errors"
	"fmt"
)

// FailureReason classifies a failed provider call.
type FailureReason string

const (
	ReasonTimeout   FailureReason = "timeout"
	ReasonCanceled  FailureReason = "canceled"
	ReasonStatus    FailureReason = "status"
	ReasonDecode    FailureReason = "decode"
	ReasonEmpty     FailureReason = "empty"
	ReasonTransport FailureReason = "transport"
)

// ErrNotConfigured is wrapped by every ConfigError.
var ErrNotConfigured = errors.New("provider not configured")

// ConfigError means the provider has no usable credentials. It is never
// retried.
type ConfigError struct {
	Provider ProviderName
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, ErrNotConfigured)
}

func (e *ConfigError) Unwrap() error {
	return ErrNotConfigured
}

// ProviderError is a failed call against a configured provider. Err may hold
// the raw upstream body and must only be logged.
type ProviderError struct {
	Provider   ProviderName
	Reason     FailureReason
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s call failed (%s)", e.Provider, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err wraps a ProviderError that is Transient.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient()
}

// Transient reports whether retrying the same call could plausibly succeed.
func (e *ProviderError) Transient() bool {
	switch e.Reason {
	case ReasonTimeout, ReasonTransport:
		return true
	case ReasonStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}
