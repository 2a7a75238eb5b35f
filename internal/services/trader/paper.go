package trader

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/events"
	"github.com/vadiminshakov/papertrader/internal/metrics"
)

// DefaultMaxPriceAge is how old a price may be before trades refuse it.
const DefaultMaxPriceAge = 2 * time.Minute

// Pricer provides the latest observed market price.
type Pricer interface {
	LatestPrice() (domain.PriceSnapshot, bool)
}

// Ledger owns balances and history. Implemented by ledger.Store.
type Ledger interface {
	State() domain.LedgerState
	History() []domain.Transaction
	Commit(state domain.LedgerState, tx domain.Transaction) error
	Reset() error
}

// Config tunes PaperTrader.
type Config struct {
	Pair domain.Pair
	// MaxPriceAge rejects trades against older prices. Zero disables the check.
	MaxPriceAge time.Duration
}

// SellOrder describes a sell request.
type SellOrder struct {
	Mode domain.SellMode
	// AmountUSD notional to sell, used with domain.SellAmount.
	AmountUSD decimal.Decimal
}

// Receipt is the outcome of an applied trade. Warning is set, wrapping
// domain.ErrPersistence, when the trade applied but could not be written.
type Receipt struct {
	Transaction domain.Transaction
	State       domain.LedgerState
	Warning     error
}

// Option configures PaperTrader.
type Option func(*PaperTrader)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *PaperTrader) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBalances publishes a snapshot to b after every committed mutation.
func WithBalances(b *events.BalanceBroadcaster) Option {
	return func(t *PaperTrader) {
		t.balances = b
	}
}

// WithMetrics records trades and rejections into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *PaperTrader) {
		t.metrics = c
	}
}

// WithClock overrides the clock used for timestamps and staleness.
func WithClock(now func() time.Time) Option {
	return func(t *PaperTrader) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(newID func() string) Option {
	return func(t *PaperTrader) {
		if newID != nil {
			t.newID = newID
		}
	}
}

// PaperTrader executes simulated market orders against the latest feed price.
// One mutex spans price resolution, validation, mutation and persistence, so
// callers may use it concurrently.
type PaperTrader struct {
	mu       sync.Mutex
	cfg      Config
	pricer   Pricer
	ledger   Ledger
	logger   *zap.Logger
	balances *events.BalanceBroadcaster
	metrics  *metrics.Collector
	now      func() time.Time
	newID    func() string
}

// NewPaperTrader creates a PaperTrader.
func NewPaperTrader(cfg Config, pricer Pricer, ledger Ledger, opts ...Option) (*PaperTrader, error) {
	if pricer == nil {
		return nil, errors.New("pricer is required for PaperTrader")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required for PaperTrader")
	}
	if cfg.MaxPriceAge < 0 {
		cfg.MaxPriceAge = 0
	}

	t := &PaperTrader{
		cfg:    cfg,
		pricer: pricer,
		ledger: ledger,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(t)
	}

	state := ledger.State()
	t.metrics.RecordBalances(state.Cash, state.Asset)
	t.logger.Info("paper trader init",
		zap.String("pair", cfg.Pair.String()),
		zap.String("cash", state.Cash.String()),
		zap.String("asset", state.Asset.String()),
		zap.Duration("max_price_age", cfg.MaxPriceAge))

	return t, nil
}

// Buy spends usd of cash on the asset at the latest price.
func (t *PaperTrader) Buy(ctx context.Context, usd decimal.Decimal) (Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	state := t.ledger.State()
	if !usd.IsPositive() {
		return Receipt{}, t.reject("buy", errors.Wrapf(domain.ErrInvalidAmount, "buy %s", usd))
	}
	if usd.GreaterThan(state.Cash) {
		return Receipt{}, t.reject("buy", errors.Wrapf(domain.ErrInsufficientCash, "buy %s with cash %s", usd, state.Cash))
	}

	price, err := t.tradePrice()
	if err != nil {
		return Receipt{}, t.reject("buy", err)
	}

	bought := usd.Div(price.Price)
	if !bought.IsPositive() {
		return Receipt{}, t.reject("buy", errors.Wrapf(domain.ErrInvalidAmount, "buy %s buys no %s at %s", usd, t.cfg.Pair.From, price.Price))
	}
	next := state
	next.Cash = state.Cash.Sub(usd)
	next.Asset = state.Asset.Add(bought)

	return t.commit(domain.TxKindBuy, next, usd, bought, price)
}

// Sell disposes of the asset at the latest price, either all of it or the
// amount worth order.AmountUSD.
func (t *PaperTrader) Sell(ctx context.Context, order SellOrder) (Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	switch order.Mode {
	case domain.SellAll:
		return t.sellAll()
	case domain.SellAmount:
		return t.sellAmount(order.AmountUSD)
	default:
		return Receipt{}, errors.Errorf("unknown sell mode %d", order.Mode)
	}
}

func (t *PaperTrader) sellAll() (Receipt, error) {
	state := t.ledger.State()
	if !state.Asset.IsPositive() {
		return Receipt{}, t.reject("sell", domain.ErrNothingToSell)
	}

	price, err := t.tradePrice()
	if err != nil {
		return Receipt{}, t.reject("sell", err)
	}

	proceeds := state.Asset.Mul(price.Price)
	next := state
	next.Cash = state.Cash.Add(proceeds)
	next.Asset = decimal.Zero

	return t.commit(domain.TxKindSell, next, proceeds, state.Asset, price)
}

func (t *PaperTrader) sellAmount(usd decimal.Decimal) (Receipt, error) {
	if !usd.IsPositive() {
		return Receipt{}, t.reject("sell", errors.Wrapf(domain.ErrInvalidAmount, "sell %s", usd))
	}

	price, err := t.tradePrice()
	if err != nil {
		return Receipt{}, t.reject("sell", err)
	}

	state := t.ledger.State()
	toSell := usd.Div(price.Price)
	if !toSell.IsPositive() {
		return Receipt{}, t.reject("sell", errors.Wrapf(domain.ErrInvalidAmount, "sell %s sells no %s at %s", usd, t.cfg.Pair.From, price.Price))
	}
	if toSell.GreaterThan(state.Asset) {
		return Receipt{}, t.reject("sell", errors.Wrapf(domain.ErrInsufficientAsset,
			"sell %s needs %s, have %s", usd, toSell, state.Asset))
	}

	next := state
	next.Cash = state.Cash.Add(usd)
	next.Asset = state.Asset.Sub(toSell)

	return t.commit(domain.TxKindSell, next, usd, toSell, price)
}

// commit records the trade and hands it to the ledger. Must hold t.mu.
func (t *PaperTrader) commit(kind domain.TxKind, next domain.LedgerState, usd, asset decimal.Decimal, price domain.PriceSnapshot) (Receipt, error) {
	tx, err := domain.NewTransaction(t.newID(), kind, usd, asset, price.Price, t.now())
	if err != nil {
		return Receipt{}, errors.Wrap(err, "build transaction")
	}

	receipt := Receipt{Transaction: tx, State: next}
	if err := t.ledger.Commit(next, tx); err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			return Receipt{}, errors.Wrap(err, "commit trade")
		}
		receipt.Warning = err
		t.logger.Warn("trade applied but not persisted", zap.String("id", tx.ID), zap.Error(err))
	}

	t.metrics.RecordTrade(kind.String())
	t.publish(next, price)
	t.logger.Info("trade executed",
		zap.String("id", tx.ID),
		zap.String("type", kind.String()),
		zap.String("usd", usd.String()),
		zap.String("asset", asset.String()),
		zap.String("price", price.Price.String()),
		zap.String("cash", next.Cash.String()),
		zap.String("asset_balance", next.Asset.String()))

	return receipt, nil
}

// tradePrice returns a price fit for trading.
func (t *PaperTrader) tradePrice() (domain.PriceSnapshot, error) {
	price, ok := t.pricer.LatestPrice()
	if !ok || !price.Price.IsPositive() {
		return domain.PriceSnapshot{}, domain.ErrPriceUnavailable
	}
	if price.StaleAt(t.now(), t.cfg.MaxPriceAge) {
		return domain.PriceSnapshot{}, errors.Wrapf(domain.ErrPriceUnavailable,
			"last price is %s old", price.Age(t.now()).Truncate(time.Second))
	}
	return price, nil
}

// Valuation marks the account to the latest price. A stale price still
// answers with Stale set; only a never-seen price is an error.
func (t *PaperTrader) Valuation(ctx context.Context) (domain.Valuation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Valuation{}, err
	}

	price, ok := t.pricer.LatestPrice()
	if !ok {
		return domain.Valuation{}, domain.ErrPriceUnavailable
	}

	stale := price.StaleAt(t.now(), t.cfg.MaxPriceAge)
	return domain.NewValuation(t.ledger.State(), price, stale), nil
}

// Cash returns the cash balance.
func (t *PaperTrader) Cash() decimal.Decimal {
	return t.ledger.State().Cash
}

// AssetValue returns the asset holdings and their USD value at the latest price.
func (t *PaperTrader) AssetValue(ctx context.Context) (domain.AssetValue, error) {
	if err := ctx.Err(); err != nil {
		return domain.AssetValue{}, err
	}

	price, ok := t.pricer.LatestPrice()
	if !ok {
		return domain.AssetValue{}, domain.ErrPriceUnavailable
	}

	asset := t.ledger.State().Asset
	return domain.AssetValue{
		Asset:    asset,
		Price:    price.Price,
		ValueUSD: asset.Mul(price.Price),
		Stale:    price.StaleAt(t.now(), t.cfg.MaxPriceAge),
	}, nil
}

// History returns executed trades in order.
func (t *PaperTrader) History() []domain.Transaction {
	return t.ledger.History()
}

// State returns the current balances.
func (t *PaperTrader) State() domain.LedgerState {
	return t.ledger.State()
}

// Snapshot returns the current balances valued at the latest price.
func (t *PaperTrader) Snapshot() domain.BalanceSnapshot {
	price, _ := t.pricer.LatestPrice()
	return domain.NewBalanceSnapshot(t.now(), t.cfg.Pair, t.ledger.State(), price)
}

// Reset restores the starting balances and clears the history. The reset
// applies in memory even when the returned error wraps domain.ErrPersistence.
func (t *PaperTrader) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	err := t.ledger.Reset()

	price, _ := t.pricer.LatestPrice()
	t.publish(t.ledger.State(), price)
	t.logger.Info("account reset", zap.Error(err))

	return err
}

func (t *PaperTrader) publish(state domain.LedgerState, price domain.PriceSnapshot) {
	t.metrics.RecordBalances(state.Cash, state.Asset)
	t.balances.Publish(domain.NewBalanceSnapshot(t.now(), t.cfg.Pair, state, price))
}

func (t *PaperTrader) reject(operation string, err error) error {
	t.metrics.RecordRejection(operation, rejectionReason(err))
	t.logger.Debug("trade rejected", zap.String("operation", operation), zap.Error(err))
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, domain.ErrInsufficientAsset):
		return "insufficient_asset"
	case errors.Is(err, domain.ErrNothingToSell):
		return "nothing_to_sell"
	case errors.Is(err, domain.ErrPriceUnavailable):
		return "price_unavailable"
	default:
		return "other"
	}
}
