package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	one := decimal.NewFromInt(1)

	tx, err := NewTransaction("id-1", TxKindBuy, decimal.NewFromInt(10000), decimal.RequireFromString("0.2"), decimal.NewFromInt(50000), ts)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tx.Timestamp.Location())
	assert.True(t, tx.Notional().Equal(tx.AmountUSD))

	tests := []struct {
		name  string
		id    string
		kind  TxKind
		usd   decimal.Decimal
		asset decimal.Decimal
		price decimal.Decimal
		ts    time.Time
	}{
		{name: "missing id", kind: TxKindBuy, usd: one, asset: one, price: one, ts: ts},
		{name: "unknown kind", id: "x", kind: "hold", usd: one, asset: one, price: one, ts: ts},
		{name: "zero usd", id: "x", kind: TxKindSell, usd: decimal.Zero, asset: one, price: one, ts: ts},
		{name: "negative asset", id: "x", kind: TxKindSell, usd: one, asset: one.Neg(), price: one, ts: ts},
		{name: "zero price", id: "x", kind: TxKindSell, usd: one, asset: one, price: decimal.Zero, ts: ts},
		{name: "zero timestamp", id: "x", kind: TxKindSell, usd: one, asset: one, price: one},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransaction(tt.id, tt.kind, tt.usd, tt.asset, tt.price, tt.ts)
			assert.Error(t, err)
		})
	}
}

func TestParsePair(t *testing.T) {
	pair, err := ParsePair("btc_usd")
	require.NoError(t, err)
	assert.Equal(t, Pair{From: "BTC", To: "USD"}, pair)
	assert.Equal(t, "BTC_USD", pair.String())
	assert.Equal(t, "BTC/USD", pair.WSName())

	for _, bad := range []string{"", "BTCUSD", "BTC_", "_USD", "A_B_C"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestSellMode_ZeroValueIsUnknown(t *testing.T) {
	var mode SellMode
	assert.Equal(t, "unknown", mode.String())
	assert.NotEqual(t, SellAll, mode)
	assert.Equal(t, "sell_all", SellAll.String())
	assert.Equal(t, "sell_amount", SellAmount.String())
}
