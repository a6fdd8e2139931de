package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates the request carries no usable credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates the credential does not resolve to an active user.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
