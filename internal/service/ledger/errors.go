package ledger

import "errors"

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotConfirmed        = errors.New("reservation is not confirmed")

	// ErrMissingCategory means the venue lost one of its platform
	// categories. Configuration error; surfaced to operators, never
	// skipped silently.
	ErrMissingCategory = errors.New("venue is missing a platform ledger category")
)
