package domain

import "time"

// BalanceSnapshot wallet state published after every ledger mutation.
// Decimals are strings so web consumers never see float drift.
type BalanceSnapshot struct {
	Timestamp  time.Time `json:"ts"`
	Pair       string    `json:"pair"`
	Cash       string    `json:"cash"`
	Asset      string    `json:"asset"`
	Price      string    `json:"price,omitempty"`
	TotalValue string    `json:"total_value,omitempty"`
}

// NewBalanceSnapshot creates a BalanceSnapshot for state valued at price.
// A zero price leaves the price and total fields empty.
func NewBalanceSnapshot(ts time.Time, pair Pair, state LedgerState, price PriceSnapshot) BalanceSnapshot {
	snap := BalanceSnapshot{
		Timestamp: ts.UTC(),
		Pair:      pair.String(),
		Cash:      state.Cash.String(),
		Asset:     state.Asset.String(),
	}
	if price.Price.IsPositive() {
		snap.Price = price.Price.String()
		snap.TotalValue = state.Value(price.Price).String()
	}
	return snap
}

// PriceTick price event streamed to dashboard consumers.
type PriceTick struct {
	Timestamp time.Time `json:"ts"`
	Pair      string    `json:"pair"`
	Price     string    `json:"price"`
}
