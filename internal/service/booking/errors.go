package booking

import "errors"

var (
	ErrSlotConflict  = errors.New("slot already taken")
	ErrHoldNotFound  = errors.New("hold not found")
	ErrHoldNotActive = errors.New("hold expired or already settled")
	ErrCourtNotFound = errors.New("court not found")
	ErrInvalidSlot   = errors.New("invalid slot parameters")
	ErrRateLimited   = errors.New("rate limited")

	// ErrStorageTimeout means the slot write did not commit within the
	// bounded wait. The caller must re-check availability before retrying;
	// a blind retry can race a legitimately concurrent claim.
	ErrStorageTimeout = errors.New("storage timeout")
)
