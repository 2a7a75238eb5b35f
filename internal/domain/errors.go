package domain

import "github.com/pkg/errors"

// Error kinds returned across the engine boundary. Callers match them with errors.Is.
var (
	ErrInvalidAmount        = errors.New("amount must be greater than 0")
	ErrInsufficientCash     = errors.New("insufficient cash balance")
	ErrInsufficientAsset    = errors.New("insufficient asset balance")
	ErrNothingToSell        = errors.New("nothing to sell")
	ErrPriceUnavailable     = errors.New("price is unavailable")
	ErrPersistence          = errors.New("ledger persistence failed")
	ErrMalformedFeedMessage = errors.New("malformed feed message")
)
