package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/trader"
)

const assetDecimals = 6

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F87"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().Foreground(special)
	errorStyle   = lipgloss.NewStyle().Foreground(warning)
	mutedStyle   = lipgloss.NewStyle().Foreground(subtle)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// FormatUSD renders an amount as dollars with thousands separators and two
// decimals, e.g. $65,000.10.
func FormatUSD(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatAsset renders an asset quantity with six decimals and its symbol.
func FormatAsset(d decimal.Decimal, symbol string) string {
	return d.StringFixed(assetDecimals) + " " + symbol
}

// FormatPercent renders a percentage with two decimals.
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// RenderHistory renders the transaction history as a table, or a notice when
// there is nothing to show.
func RenderHistory(history []domain.Transaction, pair domain.Pair) string {
	if len(history) == 0 {
		return mutedStyle.Render("No transactions have been made yet.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(highlight)).
		Headers(
			"Timestamp",
			"Type",
			fmt.Sprintf("Amount (%s)", pair.To),
			fmt.Sprintf("Amount (%s)", pair.From),
			fmt.Sprintf("Price per %s (%s)", pair.From, pair.To),
		)

	for _, tx := range history {
		t.Row(
			tx.Timestamp.UTC().Format(time.RFC3339),
			capitalize(tx.Kind.String()),
			FormatUSD(tx.AmountUSD),
			tx.AssetAmount.StringFixed(assetDecimals),
			FormatUSD(tx.PricePerUnit),
		)
	}

	return headerStyle.Render("TRANSACTION HISTORY") + "\n" + t.String()
}

// RenderValuation renders the profit/loss view.
func RenderValuation(v domain.Valuation, pair domain.Pair) string {
	lines := []string{
		fmt.Sprintf("Current %s Price: %s", pair.From, FormatUSD(v.Price)),
		fmt.Sprintf("Cash Balance: %s", FormatUSD(v.Cash)),
		fmt.Sprintf("%s Balance: %s", pair.From, FormatAsset(v.Asset, pair.From)),
		fmt.Sprintf("Total Portfolio Value: %s", FormatUSD(v.TotalValue)),
		fmt.Sprintf("Total P/L: %s", FormatUSD(v.ProfitLoss)),
		fmt.Sprintf("P/L Percent: %s", FormatPercent(v.ProfitLossPercent)),
	}
	if v.Stale {
		lines = append(lines, errorStyle.Render(staleNotice(v.PriceObservedAt)))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// RenderAssetValue renders the asset holdings view.
func RenderAssetValue(v domain.AssetValue, pair domain.Pair) string {
	line := fmt.Sprintf("%s Balance: %s USD (Equivalent to %s at %s/%s)",
		pair.From, FormatUSD(v.ValueUSD), FormatAsset(v.Asset, pair.From), FormatUSD(v.Price), pair.From)
	if v.Stale {
		line += "\n" + errorStyle.Render("Price is stale.")
	}
	return line
}

// RenderReceipt renders an executed trade.
func RenderReceipt(r trader.Receipt, pair domain.Pair, sellAll bool) string {
	tx := r.Transaction
	verb := "Bought"
	if tx.Kind == domain.TxKindSell {
		verb = "Sold"
		if sellAll {
			verb = "Sold all"
		}
	}

	out := successStyle.Render(fmt.Sprintf("%s %s at %s per %s for %s.",
		verb, FormatAsset(tx.AssetAmount, pair.From), FormatUSD(tx.PricePerUnit), pair.From, FormatUSD(tx.AmountUSD)))
	if r.Warning != nil {
		out += "\n" + errorStyle.Render("Warning: trade applied but not saved: "+r.Warning.Error())
	}
	return out
}

func staleNotice(observed time.Time) string {
	if observed.IsZero() {
		return "Price is stale."
	}
	return fmt.Sprintf("Price is stale (last update %s).", observed.UTC().Format(time.RFC3339))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
