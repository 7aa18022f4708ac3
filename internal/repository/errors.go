package repository

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSlotTaken       = errors.New("slot already taken")
	ErrHoldExpired     = errors.New("hold expired")
	ErrHoldTerminal    = errors.New("hold already in a terminal state")
	ErrMissingCategory = errors.New("venue ledger category missing")
	ErrAlreadyPaid     = errors.New("deposit batch already paid")
)
