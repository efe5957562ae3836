package orderbook

import "cosmossdk.io/errors"

// Registered error kinds, each surfaced either as a command return or as
// the Err field on an OrderRejected event.
var (
	ErrBadOrder              = errors.Register("lobengine", 1, "invalid order: missing or invalid price, non-positive quantity, or expiry in the past")
	ErrUnknownSymbol         = errors.Register("lobengine", 2, "no book exists for the requested symbol")
	ErrDuplicateID           = errors.Register("lobengine", 3, "id generator returned an id already live in the book")
	ErrNotFound              = errors.Register("lobengine", 4, "order id is unknown or already terminal")
	ErrInvalidState          = errors.Register("lobengine", 5, "transition attempted from a terminal or incompatible state")
	ErrInsufficientLiquidity = errors.Register("lobengine", 6, "fill-or-kill order cannot be completely filled pre-trade")
	ErrExpiredOnArrival      = errors.Register("lobengine", 7, "good-till-date order carries an expiry at or before now")
	ErrInvalidModify         = errors.Register("lobengine", 8, "modify requires price and quantity to be non-increasing")
)
