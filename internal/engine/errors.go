package engine

import "errors"

// Every validation error leaves the session in its prior valid state; the
// caller is expected to surface the message and let the user retry.
// ErrPersistenceFailed also preserves state but signals an external-system
// problem rather than a user input problem.
var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrOutOfStock         = errors.New("out of stock")
	ErrInvalidAdjustment  = errors.New("invalid adjustment")
	ErrEmptyCart          = errors.New("empty cart")
	ErrNoCustomerSelected = errors.New("no customer selected")
	ErrNotFound           = errors.New("not found")
	ErrPersistenceFailed  = errors.New("persistence failed")
)
