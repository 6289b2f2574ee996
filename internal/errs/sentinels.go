// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist
	// (unknown file id, unknown or expired download grant).
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials indicates a failed login. Unknown user and wrong
	// password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated indicates a missing, malformed, expired or forged bearer
	// token, or a token whose subject is unknown or disabled.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates an authenticated caller without the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrUnsupportedFileType indicates an upload outside the allowed extensions.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
