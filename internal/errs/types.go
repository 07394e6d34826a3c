package errs

import "fmt"

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

// AuthError is a credential failure from a provider. Permanent means the
// credential is revoked or invalid and refreshing will not help; the link
// should be removed. Non-permanent auth errors are retried next cycle.
type AuthError struct {
	ErrorMessage
	Provider  string
	Permanent bool
}

// UnavailableError is a transient provider outage: the link is left alone and
// retried on the next cycle.
type UnavailableError struct {
	ErrorMessage
	Provider string
}

// NotConfiguredError covers missing setup (no money link, no designated pot).
// It is logged, never surfaced to the user.
type NotConfiguredError struct {
	ErrorMessage
}

// InsufficientFundsError aborts a whole sync cycle: the funding account cannot
// cover a required deposit.
type InsufficientFundsError struct {
	ErrorMessage
	Required  int64
	Available int64
}

// Shortfall is the amount the funding account is missing.
func (e *InsufficientFundsError) Shortfall() int64 { return e.Required - e.Available }

type NotFoundError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
}

func NewAuthError(provider, message string, permanent bool) *AuthError {
	return &AuthError{
		ErrorMessage: ErrorMessage{Message: message},
		Provider:     provider,
		Permanent:    permanent,
	}
}

func NewUnavailableError(provider, message string) *UnavailableError {
	return &UnavailableError{
		ErrorMessage: ErrorMessage{Message: message},
		Provider:     provider,
	}
}

func NewNotConfiguredError(message string) *NotConfiguredError {
	return &NotConfiguredError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewInsufficientFundsError(required, available int64) *InsufficientFundsError {
	return &InsufficientFundsError{
		ErrorMessage: ErrorMessage{
			Message: fmt.Sprintf("funding account holds %d but %d is required", available, required),
		},
		Required:  required,
		Available: available,
	}
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}
