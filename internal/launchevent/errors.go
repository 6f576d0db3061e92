package launchevent

import "errors"

var (
	// ErrInvalidPhase is returned when an operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("launch event: operation not allowed in current phase")

	// ErrAllocationExceeded is returned when a deposit would exceed the user's max allocation.
	ErrAllocationExceeded = errors.New("launch event: max allocation exceeded")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the user's balance.
	ErrInsufficientBalance = errors.New("launch event: insufficient balance")

	// ErrAlreadyInitialized is returned on a second Initialize.
	ErrAlreadyInitialized = errors.New("launch event: already initialized")

	// ErrNotInitialized is returned by operations on an uninitialized event.
	ErrNotInitialized = errors.New("launch event: not initialized")

	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("launch event: unauthorized")

	// ErrInvalidParams is returned for out-of-range parameters or amounts.
	ErrInvalidParams = errors.New("launch event: invalid parameters")

	// ErrAlreadyFinalized is returned on a second Finalize.
	ErrAlreadyFinalized = errors.New("launch event: already finalized")

	// ErrTimelocked is returned when a claim is made before its timelock expires.
	ErrTimelocked = errors.New("launch event: timelock not expired")

	// ErrNothingToClaim is returned when the caller has no unclaimed share.
	ErrNothingToClaim = errors.New("launch event: nothing to claim")

	// ErrCorruptLog is returned when a ledger log cannot be restored.
	ErrCorruptLog = errors.New("launch event: corrupt ledger log")
)
