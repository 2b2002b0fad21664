package service

import "errors"

// Errors returned by AuthService. Callers compare with errors.Is.
var (
	// ErrInvalidCredentials covers an unknown email, a wrong password, a
	// corrupt stored hash and an unknown external id alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateIdentity  = errors.New("email or external id already registered")
	ErrNotFound           = errors.New("user not found")
	// ErrInternal wraps hashing, store, token-config and data-integrity
	// failures. The wrapped cause is for logs only.
	ErrInternal = errors.New("internal error")
)

// internalError joins ErrInternal with its cause so both match errors.Is.
func internalError(op string, cause error) error {
	return &opError{op: op, err: cause}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }

func (e *opError) Unwrap() []error { return []error{ErrInternal, e.err} }
