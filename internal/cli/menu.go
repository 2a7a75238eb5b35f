package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/trader"
)

// Engine is the trading contract the menu drives. Implemented by
// trader.PaperTrader.
type Engine interface {
	Cash() decimal.Decimal
	State() domain.LedgerState
	AssetValue(ctx context.Context) (domain.AssetValue, error)
	Buy(ctx context.Context, usd decimal.Decimal) (trader.Receipt, error)
	Sell(ctx context.Context, order trader.SellOrder) (trader.Receipt, error)
	Valuation(ctx context.Context) (domain.Valuation, error)
	History() []domain.Transaction
	Reset(ctx context.Context) error
}

// Menu runs the interactive loop.
type Menu struct {
	engine   Engine
	prompter Prompter
	out      io.Writer
	pair     domain.Pair
	logger   *zap.Logger
}

// NewMenu creates a menu.
func NewMenu(engine Engine, prompter Prompter, out io.Writer, pair domain.Pair, logger *zap.Logger) *Menu {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Menu{engine: engine, prompter: prompter, out: out, pair: pair, logger: logger}
}

// Run shows the menu until the user exits, aborts the prompt or ctx is done.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		cmd, err := m.prompter.SelectCommand(m.pair.From)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				m.goodbye()
				return nil
			}
			return errors.Wrap(err, "select command")
		}

		exit, err := m.Execute(ctx, cmd)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				continue
			}
			return err
		}
		if exit {
			m.goodbye()
			return nil
		}

		if err := m.prompter.Pause(); err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return errors.Wrap(err, "pause")
		}
	}
}

// Execute runs one command. Engine errors are reported to the user, not
// returned; only prompt failures are returned.
func (m *Menu) Execute(ctx context.Context, cmd Command) (exit bool, err error) {
	switch cmd {
	case CmdCash:
		m.println(fmt.Sprintf("Cash Balance: %s", FormatUSD(m.engine.Cash())))
	case CmdAssetValue:
		v, err := m.engine.AssetValue(ctx)
		if err != nil {
			m.reportError(err)
			return false, nil
		}
		m.println(RenderAssetValue(v, m.pair))
	case CmdBuy:
		return false, m.buy(ctx)
	case CmdSell:
		return false, m.sell(ctx)
	case CmdValuation:
		v, err := m.engine.Valuation(ctx)
		if err != nil {
			m.reportError(err)
			return false, nil
		}
		m.println(RenderValuation(v, m.pair))
	case CmdHistory:
		m.println(RenderHistory(m.engine.History(), m.pair))
	case CmdReset:
		return false, m.reset(ctx)
	case CmdExit:
		return true, nil
	default:
		m.println(errorStyle.Render("Invalid selection."))
	}
	return false, nil
}

func (m *Menu) buy(ctx context.Context) error {
	usd, err := m.prompter.Amount(fmt.Sprintf("Enter USD amount to spend on buying %s", m.pair.From))
	if err != nil {
		return err
	}

	receipt, err := m.engine.Buy(ctx, usd)
	if err != nil {
		m.reportError(err)
		return nil
	}
	m.println(RenderReceipt(receipt, m.pair, false))
	return nil
}

func (m *Menu) sell(ctx context.Context) error {
	if !m.engine.State().Asset.IsPositive() {
		m.reportError(domain.ErrNothingToSell)
		return nil
	}

	mode, err := m.prompter.SelectSellMode()
	if err != nil {
		return err
	}

	order := trader.SellOrder{Mode: mode}
	if mode == domain.SellAmount {
		usd, err := m.prompter.Amount(fmt.Sprintf("Enter USD value of %s to sell", m.pair.From))
		if err != nil {
			return err
		}
		order.AmountUSD = usd
	}

	receipt, err := m.engine.Sell(ctx, order)
	if err != nil {
		m.reportError(err)
		return nil
	}
	m.println(RenderReceipt(receipt, m.pair, mode == domain.SellAll))
	return nil
}

func (m *Menu) reset(ctx context.Context) error {
	ok, err := m.prompter.Confirm("Are you sure you want to reset all balances and transaction history?")
	if err != nil {
		return err
	}
	if !ok {
		m.println(mutedStyle.Render("Reset cancelled."))
		return nil
	}

	if err := m.engine.Reset(ctx); err != nil {
		m.reportError(err)
		if !errors.Is(err, domain.ErrPersistence) {
			return nil
		}
	}
	m.println(successStyle.Render("All balances and transaction history have been reset."))
	return nil
}

func (m *Menu) reportError(err error) {
	m.logger.Debug("command failed", zap.Error(err))
	m.println(errorStyle.Render(ErrorMessage(err, m.pair)))
}

func (m *Menu) goodbye() {
	m.println("Exiting the Paper Trading Platform. Goodbye!")
}

func (m *Menu) println(s string) {
	fmt.Fprintln(m.out, s)
	fmt.Fprintln(m.out)
}

// ErrorMessage turns an engine error into a user-facing message.
func ErrorMessage(err error, pair domain.Pair) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Amount must be greater than 0."
	case errors.Is(err, domain.ErrInsufficientCash):
		return "Insufficient cash balance."
	case errors.Is(err, domain.ErrInsufficientAsset):
		return fmt.Sprintf("Insufficient %s balance.", pair.From)
	case errors.Is(err, domain.ErrNothingToSell):
		return fmt.Sprintf("No %s to sell.", pair.From)
	case errors.Is(err, domain.ErrPriceUnavailable):
		return fmt.Sprintf("Cannot fetch %s price at the moment.", pair.From)
	case errors.Is(err, domain.ErrPersistence):
		return "Warning: changes could not be saved: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	return strings.ReplaceAll(s, ",", "")
}
