package domain

// TxKind direction of a recorded trade.
type TxKind string

const (
	// TxKindBuy cash spent for the asset.
	TxKindBuy TxKind = "buy"
	// TxKindSell asset sold for cash.
	TxKindSell TxKind = "sell"
)

// Valid reports whether the kind is one of the known trade directions.
func (k TxKind) Valid() bool {
	switch k {
	case TxKindBuy, TxKindSell:
		return true
	}
	return false
}

// String returns the string representation.
func (k TxKind) String() string {
	return string(k)
}

// SellMode selects how much of the asset a sell order disposes of.
type SellMode int

const (
	// SellAll sells the whole asset balance.
	SellAll SellMode = iota + 1
	// SellAmount sells the asset worth a given USD amount.
	SellAmount
)

// String returns the string representation of the sell mode.
func (m SellMode) String() string {
	switch m {
	case SellAll:
		return "sell_all"
	case SellAmount:
		return "sell_amount"
	default:
		return "unknown"
	}
}
