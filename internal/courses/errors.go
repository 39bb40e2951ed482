package courses

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidAmount      = errors.New("payment amount must be positive")
	ErrInvalidTransition  = errors.New("invalid enrollment status transition")
	ErrDuplicateSortOrder = errors.New("duplicate section sort order")
	ErrLocked             = errors.New("content locked")
	// ErrMalformedSection marks section data missing a price or sort order.
	// It is a data-integrity failure and is never defaulted.
	ErrMalformedSection = errors.New("malformed section")
)
