package domain

import (
	"errors"
	"net/http"
)

// ErrorKind classifies failures surfaced to the boundary layer.
type ErrorKind string

const (
	KindPasswordMismatch    ErrorKind = "password_mismatch"
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindInvalidRefreshToken ErrorKind = "invalid_refresh_token"
	KindUserAlreadyExists   ErrorKind = "user_already_exists"
	KindUserNotFound        ErrorKind = "user_not_found"
	KindTransport           ErrorKind = "transport"
	KindUnclassified        ErrorKind = "unclassified"
	KindInvalidAccessToken  ErrorKind = "invalid_access_token"
	KindValidationFailed    ErrorKind = "validation_failed"
)

// DomainError carries the kind, HTTP status and user-facing message of a failure.
// Two DomainErrors match under errors.Is when their kinds are equal.
type DomainError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// Wrap returns a copy of e with cause attached.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Kind: e.Kind, Status: e.Status, Message: e.Message, Err: cause}
}

// Workflow errors.
var (
	ErrPasswordMismatch = &DomainError{
		Kind:    KindPasswordMismatch,
		Status:  http.StatusBadRequest,
		Message: "Password confirmation does not match",
	}
	ErrInvalidCredentials = &DomainError{
		Kind:    KindInvalidCredentials,
		Status:  http.StatusUnauthorized,
		Message: "Invalid email or password",
	}
	ErrInvalidRefreshToken = &DomainError{
		Kind:    KindInvalidRefreshToken,
		Status:  http.StatusUnauthorized,
		Message: "Invalid or expired refresh token",
	}
	ErrUserAlreadyExists = &DomainError{
		Kind:    KindUserAlreadyExists,
		Status:  http.StatusConflict,
		Message: "User with this email already exists",
	}
	ErrUserNotFound = &DomainError{
		Kind:    KindUserNotFound,
		Status:  http.StatusNotFound,
		Message: "User not found",
	}
)

// External service errors.
var (
	ErrTransport = &DomainError{
		Kind:    KindTransport,
		Status:  http.StatusInternalServerError,
		Message: "identity provider unavailable",
	}
	ErrUnclassified = &DomainError{
		Kind:    KindUnclassified,
		Status:  http.StatusInternalServerError,
		Message: "Unexpected server error",
	}

	// ErrAdminTokenRejected is wrapped inside a transport error when the
	// provider answers an admin-scoped call with 401.
	ErrAdminTokenRejected = errors.New("admin token rejected by provider")

	// ErrAdminCredentialsRejected is wrapped inside a transport error when the
	// provider refuses the admin password grant itself.
	ErrAdminCredentialsRejected = errors.New("admin credentials rejected by provider")
)

// Boundary errors.
var (
	ErrInvalidAccessToken = &DomainError{
		Kind:    KindInvalidAccessToken,
		Status:  http.StatusUnauthorized,
		Message: "Invalid or expired access token",
	}
	ErrValidationFailed = &DomainError{
		Kind:    KindValidationFailed,
		Status:  http.StatusBadRequest,
		Message: "Request validation failed",
	}
)

// AsDomainError extracts the DomainError carried by err. Errors without one
// are reported as ErrUnclassified wrapping err.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return ErrUnclassified.Wrap(err)
}
