package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LedgerState cash and asset balances plus the baseline P/L is measured against.
type LedgerState struct {
	Cash          decimal.Decimal
	Asset         decimal.Decimal
	StartingTotal decimal.Decimal
}

// NewLedgerState returns the state of a fresh account funded with startingCash.
func NewLedgerState(startingCash decimal.Decimal) LedgerState {
	return LedgerState{
		Cash:          startingCash,
		Asset:         decimal.Zero,
		StartingTotal: startingCash,
	}
}

// Validate checks balance invariants.
func (s LedgerState) Validate() error {
	if s.Cash.IsNegative() {
		return errors.Errorf("cash balance must not be negative, got %s", s.Cash)
	}
	if s.Asset.IsNegative() {
		return errors.Errorf("asset balance must not be negative, got %s", s.Asset)
	}
	if !s.StartingTotal.IsPositive() {
		return errors.Errorf("starting total must be positive, got %s", s.StartingTotal)
	}
	return nil
}

// Equal reports whether both states hold the same balances.
func (s LedgerState) Equal(other LedgerState) bool {
	return s.Cash.Equal(other.Cash) && s.Asset.Equal(other.Asset) && s.StartingTotal.Equal(other.StartingTotal)
}

// Value returns the mark-to-market value at price.
func (s LedgerState) Value(price decimal.Decimal) decimal.Decimal {
	return s.Cash.Add(s.Asset.Mul(price))
}

// Valuation mark-to-market view of the account.
type Valuation struct {
	Cash              decimal.Decimal
	Asset             decimal.Decimal
	Price             decimal.Decimal
	PriceObservedAt   time.Time
	TotalValue        decimal.Decimal
	ProfitLoss        decimal.Decimal
	ProfitLossPercent decimal.Decimal
	// Stale is set when the price is older than the configured threshold.
	Stale bool
}

// NewValuation values state at the given price snapshot.
func NewValuation(state LedgerState, price PriceSnapshot, stale bool) Valuation {
	total := state.Value(price.Price)
	pl := total.Sub(state.StartingTotal)

	plPercent := decimal.Zero
	if state.StartingTotal.IsPositive() {
		plPercent = pl.Div(state.StartingTotal).Mul(hundred)
	}

	return Valuation{
		Cash:              state.Cash,
		Asset:             state.Asset,
		Price:             price.Price,
		PriceObservedAt:   price.ObservedAt,
		TotalValue:        total,
		ProfitLoss:        pl,
		ProfitLossPercent: plPercent,
		Stale:             stale,
	}
}

// AssetValue asset holdings valued at the latest price.
type AssetValue struct {
	Asset    decimal.Decimal
	Price    decimal.Decimal
	ValueUSD decimal.Decimal
	Stale    bool
}
