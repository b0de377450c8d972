package booking

import "errors"

var (
	// ErrNotFound means no reservation exists for the given PNR.
	ErrNotFound = errors.New("reservation not found")
	// ErrAlreadyCancelled guards double cancellation. The first
	// cancellation already released the allocations.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	// ErrLockTimeout means the slot locks could not be acquired within
	// the configured wait. The booking was not attempted.
	ErrLockTimeout = errors.New("could not lock inventory slots")
	// ErrInvalidRequest covers structurally bad input such as an empty
	// passenger list or a negative age.
	ErrInvalidRequest = errors.New("invalid booking request")
)
