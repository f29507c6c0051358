package service

import "errors"

var (
	// ErrConflict is returned when a registration collides with existing
	// state: a duplicate node address or a duplicate user name.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned for an unknown region, container or user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when a token does not resolve to a user,
	// either because it was never issued or because it has expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when credentials are present but wrong.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable is returned when a compute node cannot be reached or
	// reports itself as not running.
	ErrUnavailable = errors.New("unavailable")

	// ErrUnknown covers unexpected node or storage failures that fit none
	// of the categories above.
	ErrUnknown = errors.New("unknown error")
)
