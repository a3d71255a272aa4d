// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")
	// ErrClaimed means another subsystem holds temporary exclusive
	// ownership of the file (bulk import in progress).
	ErrClaimed = errors.New("file is claimed by another subsystem")
)
