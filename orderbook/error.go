package orderbook

import "errors"

var (
	ErrInvalidQty    = errors.New("order quantity must be positive")
	ErrInvalidPrice  = errors.New("limit order price must be positive")
	ErrUnknownType   = errors.New("unknown order type")
	ErrUnknownSide   = errors.New("unknown order side")
	ErrEmptyID       = errors.New("order id is required")
	ErrDuplicateID   = errors.New("order id already resting")
	ErrNoLiquidity   = errors.New("market order rejected: insufficient liquidity")
	ErrBelowNotional = errors.New("order notional below minimum")
)
