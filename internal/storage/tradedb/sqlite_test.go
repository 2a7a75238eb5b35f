package tradedb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal", "trades.db")
	s, err := Open(path)
	require.NoError(t, err)

	return s, path
}

func trade(t *testing.T, id string, kind domain.TxKind, usd, asset, price string) domain.Transaction {
	t.Helper()
	tx, err := domain.NewTransaction(id, kind,
		decimal.RequireFromString(usd),
		decimal.RequireFromString(asset),
		decimal.RequireFromString(price),
		time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC))
	require.NoError(t, err)
	return tx
}

func TestSchemaCreated(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='journal'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "journal", name)
}

func TestRecordTradeAndReplay(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	t.Cleanup(func() { _ = s.Close() })

	buy := trade(t, "b1", domain.TxKindBuy, "1000", "0.0153846153846154", "65000")
	sell := trade(t, "s1", domain.TxKindSell, "500", "0.0076923076923077", "65000")
	require.NoError(t, s.RecordTrade(buy))
	require.NoError(t, s.RecordTrade(sell))

	trades, err := s.Replay()
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "b1", trades[0].ID)
	assert.Equal(t, domain.TxKindBuy, trades[0].Kind)
	assert.Equal(t, "0.0153846153846154", trades[0].AssetAmount.String())
	assert.True(t, trades[0].Timestamp.Equal(buy.Timestamp))
	assert.Equal(t, "s1", trades[1].ID)
}

func TestReplayAfterReset(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.RecordTrade(trade(t, "old", domain.TxKindBuy, "10", "0.001", "10000")))
	require.NoError(t, s.RecordReset(time.Now()))

	trades, err := s.Replay()
	require.NoError(t, err)
	assert.Empty(t, trades)

	require.NoError(t, s.RecordTrade(trade(t, "new", domain.TxKindBuy, "10", "0.001", "10000")))
	trades, err = s.Replay()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "new", trades[0].ID)
}

func TestInMemory(t *testing.T) {
	t.Parallel()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.RecordTrade(trade(t, "m1", domain.TxKindBuy, "10", "0.001", "10000")))
	trades, err := s.Replay()
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
