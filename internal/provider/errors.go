package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means no valid credential is available for the user.
	// The engine never refreshes tokens itself.
	ErrAuthRequired = errors.New("auth required")

	// ErrValidation marks a malformed request rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownProvider is returned by the factory for providers outside
	// the closed enum.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ExternalServiceError wraps a non-2xx or network failure from a provider
// API, keeping the provider's status and body for diagnostics.
type ExternalServiceError struct {
	Provider   Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
