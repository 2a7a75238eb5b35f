// Package app wires the price feed, ledger, trading engine, dashboard and
// interactive menu into one running paper trader.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/cli"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/events"
	"github.com/vadiminshakov/papertrader/internal/metrics"
	"github.com/vadiminshakov/papertrader/internal/services/pricer"
	"github.com/vadiminshakov/papertrader/internal/services/trader"
	"github.com/vadiminshakov/papertrader/internal/storage/journal"
	"github.com/vadiminshakov/papertrader/internal/storage/ledger"
	"github.com/vadiminshakov/papertrader/internal/storage/tradedb"
	"github.com/vadiminshakov/papertrader/internal/web"
)

// DefaultPollInterval is how often WaitForPrice checks for the first tick.
const DefaultPollInterval = 100 * time.Millisecond

const broadcastBuffer = 64

// UI drives the session once the first price is known. It returns when the
// user exits or ctx is done.
type UI func(ctx context.Context, engine *trader.PaperTrader) error

// App holds every component of a running trader.
type App struct {
	Config   config.Config
	Metrics  *metrics.Collector
	Prices   *events.PriceBroadcaster
	Balances *events.BalanceBroadcaster
	Ledger   *ledger.Store
	Feed     *pricer.KrakenFeed
	Trader   *trader.PaperTrader
	// Web is nil when the dashboard is disabled.
	Web *web.Server

	logger *zap.Logger
}

// New builds all components from cfg without starting any of them.
func New(cfg config.Config, logger *zap.Logger, feedOpts ...pricer.Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		Config:   cfg,
		Metrics:  metrics.NewCollector("papertrader"),
		Prices:   events.NewBroadcaster[domain.PriceTick](broadcastBuffer),
		Balances: events.NewBroadcaster[domain.BalanceSnapshot](broadcastBuffer),
		logger:   logger,
	}

	store, err := OpenLedger(cfg, logger, a.Metrics)
	if err != nil {
		return nil, err
	}
	a.Ledger = store

	opts := append([]pricer.Option{
		pricer.WithLogger(logger.Named("feed")),
		pricer.WithTicks(a.Prices),
		pricer.WithMetrics(a.Metrics),
	}, feedOpts...)
	a.Feed = pricer.NewKrakenFeed(cfg.FeedURL, cfg.Pair, opts...)

	a.Trader, err = trader.NewPaperTrader(
		trader.Config{Pair: cfg.Pair, MaxPriceAge: cfg.MaxPriceAge},
		a.Feed,
		store,
		trader.WithLogger(logger.Named("trader")),
		trader.WithBalances(a.Balances),
		trader.WithMetrics(a.Metrics),
	)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "create paper trader")
	}

	if cfg.WebAddr != "" {
		srv := web.NewServer(cfg.WebAddr, cfg.Pair, logger.Named("web"))
		srv.Prices = a.Prices
		srv.Balances = a.Balances
		srv.Ledger = a.Trader
		srv.Feed = a.Feed
		srv.Metrics = a.Metrics.Handler()
		a.Web = srv
	}

	return a, nil
}

// OpenLedger opens the ledger store in cfg.DataDir together with the journal
// selected by cfg.Journal.
func OpenLedger(cfg config.Config, logger *zap.Logger, collector *metrics.Collector) (*ledger.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	j, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}

	opts := []ledger.Option{ledger.WithMetrics(collector)}
	if j != nil {
		opts = append(opts, ledger.WithJournal(j))
	}

	store, err := ledger.Open(ledger.Config{
		Dir:          cfg.DataDir,
		BalanceFile:  cfg.BalanceFile,
		HistoryFile:  cfg.HistoryFile,
		StartingCash: cfg.StartingCash,
	}, logger.Named("ledger"), opts...)
	if err != nil {
		if j != nil {
			_ = j.Close()
		}
		return nil, errors.Wrap(err, "open ledger")
	}

	state := store.State()
	logger.Info("ledger loaded",
		zap.String("cash", state.Cash.String()),
		zap.String("asset", state.Asset.String()),
		zap.Int("transactions", len(store.History())),
		zap.String("journal", string(cfg.Journal)))

	return store, nil
}

func openJournal(cfg config.Config) (ledger.Journal, error) {
	switch cfg.Journal {
	case config.JournalWAL:
		j, err := journal.NewWALStore(cfg.JournalLocation())
		if err != nil {
			return nil, errors.Wrap(err, "open wal journal")
		}
		return j, nil
	case config.JournalSQLite:
		j, err := tradedb.Open(cfg.JournalLocation())
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite journal")
		}
		return j, nil
	case config.JournalNone, "":
		return nil, nil
	default:
		return nil, errors.Errorf("unknown journal kind %q", cfg.Journal)
	}
}

// WaitForPrice polls p every interval until a price is available or ctx is
// done.
func WaitForPrice(ctx context.Context, p trader.Pricer, interval time.Duration) (domain.PriceSnapshot, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if snapshot, ok := p.LatestPrice(); ok {
		return snapshot, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.PriceSnapshot{}, errors.Wrap(domain.ErrPriceUnavailable, ctx.Err().Error())
		case <-ticker.C:
			if snapshot, ok := p.LatestPrice(); ok {
				return snapshot, nil
			}
		}
	}
}

// Run starts the feed and the dashboard, waits for the first price and hands
// control to ui. When ui returns or ctx is done the feed is closed, the
// dashboard stopped and the ledger closed.
func (a *App) Run(ctx context.Context, out io.Writer, ui UI) error {
	if out == nil {
		out = io.Discard
	}
	defer func() {
		if err := a.Ledger.Close(); err != nil {
			a.logger.Warn("close ledger", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, a.Config.StartupTimeout)
	defer startCancel()

	g, gctx := errgroup.WithContext(ctx)

	feedErr := make(chan error, 1)
	g.Go(func() error {
		err := a.Feed.Run(gctx)
		if err != nil {
			a.logger.Error("price feed stopped", zap.Error(err))
		}
		feedErr <- err
		startCancel()
		return nil
	})

	if a.Web != nil {
		g.Go(func() error {
			if err := a.Web.Start(gctx); err != nil {
				a.logger.Error("dashboard stopped", zap.String("addr", a.Web.Addr), zap.Error(err))
			}
			return nil
		})
	}

	shutdown := func() {
		cancel()
		_ = a.Feed.Close()
		_ = g.Wait()
	}

	fmt.Fprintf(out, "Connecting to %s...\n", a.Config.Pair.WSName())

	snapshot, err := WaitForPrice(startCtx, a.Feed, DefaultPollInterval)
	if err != nil {
		shutdown()
		select {
		case ferr := <-feedErr:
			if ferr != nil {
				return errors.Wrap(ferr, "price feed")
			}
		default:
		}
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrapf(err, "no price within %s", a.Config.StartupTimeout)
	}

	fmt.Fprintf(out, "Initial %s Price: %s\n", a.Config.Pair.From, cli.FormatUSD(snapshot.Price))
	a.logger.Info("initial price received",
		zap.String("pair", a.Config.Pair.String()),
		zap.String("price", snapshot.Price.String()))
	if a.Web != nil {
		fmt.Fprintf(out, "Dashboard: http://%s/\n", a.Web.Addr)
	}

	uiErr := ui(ctx, a.Trader)
	shutdown()

	if uiErr != nil && !errors.Is(uiErr, context.Canceled) {
		return errors.Wrap(uiErr, "interactive session")
	}
	return nil
}

// MenuUI runs the interactive menu on prompter, writing to out.
func MenuUI(prompter cli.Prompter, out io.Writer, pair domain.Pair, logger *zap.Logger) UI {
	return func(ctx context.Context, engine *trader.PaperTrader) error {
		return cli.NewMenu(engine, prompter, out, pair, logger).Run(ctx)
	}
}
