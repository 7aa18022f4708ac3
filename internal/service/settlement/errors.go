package settlement

import "errors"

var (
	ErrBatchNotFound = errors.New("deposit batch not found")
	ErrAlreadyPaid   = errors.New("deposit batch already paid")
	ErrInvalidDate   = errors.New("invalid settlement date")
	ErrMissingMethod = errors.New("payment method is required")
)
