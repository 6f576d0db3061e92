package storage

import "errors"

var (
	// ErrNotFound is returned when a launch event, balance row or log entry
	// does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey is returned when a launch event is registered twice for
	// the same token or address, or a ledger event id is appended twice.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrInvalidInput is returned for nil records or zero addresses.
	ErrInvalidInput = errors.New("storage: invalid input")
)
