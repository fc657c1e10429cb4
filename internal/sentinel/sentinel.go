package sentinel

import "errors"

// Sentinel dependency errors. Stores and adapters return these (optionally
// wrapped) so the registry service can translate them into domain errors
// exactly once.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
