// Package apperrors defines the error taxonomy shared by services and the
// HTTP layer. Services wrap these sentinels with fmt.Errorf("%w: ...") and
// handlers map them to HTTP statuses.
package apperrors

import "errors"

var (
	// ErrInvalidArgument marks missing or malformed input. Mapped to 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks an absent user, code or resource. Mapped to 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate unique key: already following, already
	// liked, referral already used, username taken. Mapped to 409.
	ErrConflict = errors.New("conflict")

	// ErrExternalRequired marks a delete-class operation aborted because the
	// external social graph rejected it. Mapped to 500.
	ErrExternalRequired = errors.New("external social graph unavailable")
)
