package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Transaction immutable record of an executed paper trade.
type Transaction struct {
	ID string
	// Kind buy or sell.
	Kind TxKind
	// AmountUSD quote notional of the trade.
	AmountUSD decimal.Decimal
	// AssetAmount quantity of the base currency.
	AssetAmount decimal.Decimal
	// PricePerUnit execution price.
	PricePerUnit decimal.Decimal
	// Timestamp execution time, always UTC.
	Timestamp time.Time
}

// NewTransaction builds a validated transaction.
func NewTransaction(id string, kind TxKind, amountUSD, assetAmount, price decimal.Decimal, ts time.Time) (Transaction, error) {
	tx := Transaction{
		ID:           id,
		Kind:         kind,
		AmountUSD:    amountUSD,
		AssetAmount:  assetAmount,
		PricePerUnit: price,
		Timestamp:    ts.UTC(),
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}

	return tx, nil
}

// Validate checks the record invariants.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("transaction id is required")
	}
	if !t.Kind.Valid() {
		return errors.Errorf("unknown transaction type %q", t.Kind)
	}
	if !t.AmountUSD.IsPositive() {
		return errors.Errorf("transaction usd amount must be positive, got %s", t.AmountUSD)
	}
	if !t.AssetAmount.IsPositive() {
		return errors.Errorf("transaction asset amount must be positive, got %s", t.AssetAmount)
	}
	if !t.PricePerUnit.IsPositive() {
		return errors.Errorf("transaction price must be positive, got %s", t.PricePerUnit)
	}
	if t.Timestamp.IsZero() {
		return errors.New("transaction timestamp is required")
	}

	return nil
}

// Notional returns AssetAmount * PricePerUnit.
func (t Transaction) Notional() decimal.Decimal {
	return t.AssetAmount.Mul(t.PricePerUnit)
}

// String returns a human-readable string representation.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s amount: %s usd: %s price: %s", t.ID, t.Kind, t.AssetAmount, t.AmountUSD, t.PricePerUnit)
}
