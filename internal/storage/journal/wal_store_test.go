package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

func newTrade(t *testing.T, id string, kind domain.TxKind, usd, asset string) domain.Transaction {
	t.Helper()
	tx, err := domain.NewTransaction(id, kind,
		decimal.RequireFromString(usd),
		decimal.RequireFromString(asset),
		decimal.NewFromInt(50000),
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	return tx
}

func TestWALStore_ReplayInOrder(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordTrade(newTrade(t, "t1", domain.TxKindBuy, "1000", "0.02")))
	require.NoError(t, store.RecordTrade(newTrade(t, "t2", domain.TxKindSell, "500", "0.01")))

	trades, err := store.Replay()
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t1", trades[0].ID)
	assert.Equal(t, domain.TxKindBuy, trades[0].Kind)
	assert.True(t, trades[0].AmountUSD.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "t2", trades[1].ID)
	assert.Equal(t, uint64(2), store.CurrentIndex())
}

func TestWALStore_ReplayStartsAfterLastReset(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordTrade(newTrade(t, "old", domain.TxKindBuy, "1000", "0.02")))
	require.NoError(t, store.RecordReset(time.Now()))
	require.NoError(t, store.RecordTrade(newTrade(t, "new", domain.TxKindBuy, "10", "0.0002")))

	trades, err := store.Replay()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "new", trades[0].ID)
}

func TestWALStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.RecordTrade(newTrade(t, "t1", domain.TxKindBuy, "1000", "0.02")))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	trades, err := reopened.Replay()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].ID)
}

func TestWALStore_EmptyReplay(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	trades, err := store.Replay()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestWALStore_NilStore(t *testing.T) {
	var store *WALStore
	assert.Error(t, store.RecordTrade(domain.Transaction{}))
	assert.Error(t, store.RecordReset(time.Now()))
	_, err := store.Replay()
	assert.Error(t, err)
	assert.Equal(t, uint64(0), store.CurrentIndex())
}

func TestWALStore_CorruptSegment(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.RecordTrade(newTrade(t, "corrupt-me", domain.TxKindBuy, "1000", "0.02")))
	require.NoError(t, store.Close())

	segments, err := filepath.Glob(filepath.Join(dir, "journal_*"))
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	corrupted := false
	for _, path := range segments {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		if i := bytes.Index(data, []byte("corrupt-me")); i >= 0 {
			data[i] = 'k'
			require.NoError(t, os.WriteFile(path, data, 0o644))
			corrupted = true
		}
	}
	require.True(t, corrupted, "trade id not found in any segment")

	// the checksum mismatch surfaces on open or on replay, never as an empty journal
	reopened, err := NewWALStore(dir)
	if err == nil {
		defer reopened.Close()
		_, err = reopened.Replay()
	}
	assert.Error(t, err)
}
