package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Prompter collects user input for the menu.
type Prompter interface {
	SelectCommand(asset string) (Command, error)
	SelectSellMode() (domain.SellMode, error)
	Amount(title string) (decimal.Decimal, error)
	Confirm(title string) (bool, error)
	Pause() error
}

// HuhPrompter prompts with huh forms on the terminal.
type HuhPrompter struct {
	out io.Writer
}

// NewHuhPrompter creates a prompter that writes screen headers to out.
func NewHuhPrompter(out io.Writer) *HuhPrompter {
	return &HuhPrompter{out: out}
}

func (p *HuhPrompter) SelectCommand(asset string) (Command, error) {
	fmt.Fprint(p.out, "\033[H\033[2J") // clear screen
	fmt.Fprintln(p.out, headerStyle.Render(asset+" PAPER TRADING PLATFORM"))

	options := make([]huh.Option[Command], 0, len(Commands()))
	for _, c := range Commands() {
		options = append(options, huh.NewOption(c.Title(asset), c))
	}

	var cmd Command
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Command]().
				Title("Select an option").
				Options(options...).
				Value(&cmd),
		),
	).Run()
	return cmd, err
}

func (p *HuhPrompter) SelectSellMode() (domain.SellMode, error) {
	var mode domain.SellMode
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[domain.SellMode]().
				Title("How much to sell?").
				Options(
					huh.NewOption("Sell All", domain.SellAll),
					huh.NewOption("Input Amount", domain.SellAmount),
				).
				Value(&mode),
		),
	).Run()
	return mode, err
}

func (p *HuhPrompter) Amount(title string) (decimal.Decimal, error) {
	var raw string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Prompt("$ ").
				Value(&raw).
				Validate(validateAmount),
		),
	).Run()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return parseAmount(raw)
}

func (p *HuhPrompter) Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).Run()
	return ok, err
}

func (p *HuhPrompter) Pause() error {
	var ok bool
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Press Enter to continue...").
				Affirmative("Continue").
				Negative("").
				Value(&ok),
		),
	).Run()
}

// validateAmount accepts any number; the engine rejects non-positive amounts.
func validateAmount(s string) error {
	if _, err := parseAmount(s); err != nil {
		return fmt.Errorf("invalid input, please enter a numerical value")
	}
	return nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(normalizeAmount(s))
}
