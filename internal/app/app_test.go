package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/pricer"
	"github.com/vadiminshakov/papertrader/internal/services/trader"
	"github.com/vadiminshakov/papertrader/internal/storage/ledger"
)

// tickingVenue accepts a subscription and answers with a single tick.
func tickingVenue(t *testing.T, tick string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tick)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(t *testing.T, feedURL string) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.FeedURL = feedURL
	cfg.WebAddr = ""
	cfg.StartupTimeout = 5 * time.Second
	return cfg
}

func TestWaitForPrice(t *testing.T) {
	cell := &pricer.Cell{}
	want := domain.PriceSnapshot{Price: decimal.NewFromInt(42000), ObservedAt: time.Now()}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cell.Set(want)
	}()

	got, err := WaitForPrice(context.Background(), cell, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(want.Price))
}

func TestWaitForPrice_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := WaitForPrice(ctx, &pricer.Cell{}, 5*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestOpenLedger_Journals(t *testing.T) {
	for _, kind := range []config.JournalKind{config.JournalNone, config.JournalWAL, config.JournalSQLite} {
		t.Run(string(kind), func(t *testing.T) {
			cfg := testConfig(t, "")
			cfg.Journal = kind

			store, err := OpenLedger(cfg, zap.NewNop(), nil)
			require.NoError(t, err)

			tx, err := domain.NewTransaction("tx-1", domain.TxKindBuy, decimal.NewFromInt(100), decimal.RequireFromString("0.002"), decimal.NewFromInt(50000), time.Now())
			require.NoError(t, err)
			next := store.State()
			next.Cash = next.Cash.Sub(tx.AmountUSD)
			next.Asset = next.Asset.Add(tx.AssetAmount)
			require.NoError(t, store.Commit(next, tx))
			require.NoError(t, store.Close())

			// the history file is gone, the journal (if any) restores it
			require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, ledger.DefaultHistoryFile), []byte("{broken"), 0o644))

			reopened, err := OpenLedger(cfg, zap.NewNop(), nil)
			require.NoError(t, err)
			defer reopened.Close()

			if kind == config.JournalNone {
				assert.Empty(t, reopened.History())
				return
			}
			require.Len(t, reopened.History(), 1)
			assert.Equal(t, "tx-1", reopened.History()[0].ID)
		})
	}
}

func TestOpenLedger_UnknownJournal(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Journal = "redis"

	_, err := OpenLedger(cfg, nil, nil)
	assert.Error(t, err)
}

func TestApp_RunTradesAgainstFeed(t *testing.T) {
	cfg := testConfig(t, tickingVenue(t, `[340, {"c": ["50000", "0.5"]}, "ticker", "XBT/USD"]`))

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	err = a.Run(context.Background(), &out, func(ctx context.Context, engine *trader.PaperTrader) error {
		_, err := engine.Buy(ctx, decimal.NewFromInt(10000))
		return err
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Initial BTC Price: $50,000.00")

	_, ok := a.Feed.LatestPrice()
	assert.True(t, ok)

	reopened, err := OpenLedger(cfg, nil, nil)
	require.NoError(t, err)
	defer reopened.Close()

	state := reopened.State()
	assert.Equal(t, "10000", state.Cash.String())
	assert.Equal(t, "0.2", state.Asset.String())
	assert.Len(t, reopened.History(), 1)
}

func TestApp_RunFailsWhenVenueRejects(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	cfg := testConfig(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	called := false
	err = a.Run(context.Background(), nil, func(context.Context, *trader.PaperTrader) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called, "the session must not start without a price")
}

func TestApp_RunStopsWhenContextCancelled(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, nil, func(context.Context, *trader.PaperTrader) error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestNew_WiresDashboard(t *testing.T) {
	cfg := testConfig(t, "ws://127.0.0.1:1/")
	cfg.WebAddr = "127.0.0.1:0"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Ledger.Close()

	require.NotNil(t, a.Web)
	assert.Equal(t, cfg.WebAddr, a.Web.Addr)
	assert.NotNil(t, a.Web.Metrics)
	assert.Equal(t, a.Trader.Snapshot().Cash, a.Ledger.State().Cash.String())
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trader.log")

	logger, err := NewLogger("debug", path)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	_, err = NewLogger("loud", "")
	assert.Error(t, err)
}
