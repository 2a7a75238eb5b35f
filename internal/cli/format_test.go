package cli

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "$0.00"},
		{in: "65000.1", want: "$65,000.10"},
		{in: "1234567.891", want: "$1,234,567.89"},
		{in: "0.005", want: "$0.01"},
		{in: "-2000", want: "-$2,000.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestFormatAsset(t *testing.T) {
	assert.Equal(t, "0.153846 BTC", FormatAsset(decimal.RequireFromString("0.1538461538"), "BTC"))
	assert.Equal(t, "0.000000 BTC", FormatAsset(decimal.Zero, "BTC"))
}

func TestParseAmount(t *testing.T) {
	d, err := parseAmount(" $1,000.50 ")
	require.NoError(t, err)
	assert.Equal(t, "1000.5", d.String())

	_, err = parseAmount("ten")
	assert.Error(t, err)
	assert.Error(t, validateAmount(""))
	assert.NoError(t, validateAmount("-5"))
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, RenderHistory(nil, testPair), "No transactions have been made yet.")

	tx, err := domain.NewTransaction("id-1", domain.TxKindBuy,
		decimal.NewFromInt(1000), decimal.RequireFromString("0.0153846"), decimal.NewFromInt(65000),
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	out := RenderHistory([]domain.Transaction{tx}, testPair)
	assert.Contains(t, out, "Timestamp")
	assert.Contains(t, out, "Price per BTC (USD)")
	assert.Contains(t, out, "2024-05-01T12:00:00Z")
	assert.Contains(t, out, "Buy")
	assert.Contains(t, out, "$1,000.00")
	assert.Contains(t, out, "0.015385")
	assert.Contains(t, out, "$65,000.00")
}

func TestRenderValuationStale(t *testing.T) {
	v := domain.NewValuation(domain.NewLedgerState(decimal.NewFromInt(20000)),
		domain.PriceSnapshot{Price: decimal.NewFromInt(50000), ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, true)

	out := RenderValuation(v, testPair)
	assert.Contains(t, out, "Total P/L: $0.00")
	assert.Contains(t, out, "Price is stale (last update 2024-01-01T00:00:00Z).")
}
