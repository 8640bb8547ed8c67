package risk

import "errors"

var (
	ErrOrderTooLarge    = errors.New("single order exceeds limit")
	ErrPositionExceeded = errors.New("net position limit exceeded")
	ErrInsufficientCash = errors.New("insufficient cash")
)
