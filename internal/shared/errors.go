package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited indicates too many attempts within the window.
	ErrRateLimited = errors.New("too many attempts")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates the caller's role does not permit the action.
	ErrForbidden = errors.New("forbidden")
)
