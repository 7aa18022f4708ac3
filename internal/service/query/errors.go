package query

import (
	"errors"
)

var (
	ErrCourtNotFound       = errors.New("court not found")
	ErrVenueNotFound       = errors.New("venue not found")
	ErrHoldNotFound        = errors.New("hold not found")
	ErrReservationNotFound = errors.New("reservation not found")
)
