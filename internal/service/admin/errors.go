package admin

import (
	"errors"
)

var (
	ErrVenueConflict = errors.New("venue already exists")
	ErrCourtConflict = errors.New("court already exists")
	ErrVenueNotFound = errors.New("venue does not exist")
)
