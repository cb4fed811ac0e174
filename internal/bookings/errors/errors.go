package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid ID format")

	ErrTourNotFound = errors.New("tour not found")

	ErrCartNotFound = errors.New("cart not found")

	// ErrDuplicatePayment means a booking for the payment reference exists.
	ErrDuplicatePayment = errors.New("booking already recorded for payment reference")
)
