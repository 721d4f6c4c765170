package auth

import "errors"

var (
	// ErrInvalidInput marks request payloads that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing user, role, or permission.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a unique-key collision (duplicate email or role name).
	ErrConflict = errors.New("resource conflict")
	// ErrInvalidToken indicates a token failed signature or expiry validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated collapses every credential failure: missing or bad
	// token, unknown email, wrong password, inactive account. The message is
	// deliberately generic so callers cannot enumerate accounts.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden marks an authenticated caller lacking a required permission.
	ErrForbidden = errors.New("insufficient permissions")
)
