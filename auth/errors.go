package auth

import "errors"

var (
	// ErrInvalidCredentials is deliberately generic; it never distinguishes
	// an unknown identifier from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers missing, already-used, and expired single-use
	// tokens uniformly so redemption failures leak nothing.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// ValidationError carries a field-specific message safe to show the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}
