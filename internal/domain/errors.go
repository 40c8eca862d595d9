package domain

import "errors"

// Sentinel errors for the engine. Every failing operation wraps exactly one
// of these so callers can classify failures with errors.Is without parsing
// messages. A failed operation leaves no partial state behind.
var (
	ErrUnauthorized        = errors.New("caller not authorized")
	ErrNotFound            = errors.New("not found")
	ErrState               = errors.New("operation invalid for market state")
	ErrValidation          = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNothingToRedeem     = errors.New("nothing to redeem")
	ErrTooEarly            = errors.New("too early")
	ErrTooLate             = errors.New("too late")
	ErrArithmetic          = errors.New("arithmetic overflow")
	ErrExternalCall        = errors.New("external call failed")
	ErrLockHeld            = errors.New("lock already held")
)
