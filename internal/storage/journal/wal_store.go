// Package journal keeps an append-only write-ahead log of paper trades and
// account resets.
package journal

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

const (
	defaultJournalDir   = "./wal/journal"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	tradeKeyPrefix      = "trade_"
	resetKey            = "reset"
)

// entry is the WAL payload of a trade.
type entry struct {
	ID          string          `json:"id"`
	Type        domain.TxKind   `json:"type"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	AssetAmount decimal.Decimal `json:"asset_amount"`
	Price       decimal.Decimal `json:"price"`
	Time        time.Time       `json:"time"`
}

type resetEntry struct {
	Time time.Time `json:"time"`
}

// WALStore journals trades and resets in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// RecordTrade appends tx to the journal.
func (s *WALStore) RecordTrade(tx domain.Transaction) error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	payload, err := json.Marshal(entry{
		ID:          tx.ID,
		Type:        tx.Kind,
		AmountUSD:   tx.AmountUSD,
		AssetAmount: tx.AssetAmount,
		Price:       tx.PricePerUnit,
		Time:        tx.Timestamp,
	})
	if err != nil {
		return errors.Wrap(err, "marshal journal trade")
	}

	return s.write(tradeKeyPrefix+tx.ID, payload)
}

// RecordReset appends a reset marker. Replay ignores everything before it.
func (s *WALStore) RecordReset(at time.Time) error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	payload, err := json.Marshal(resetEntry{Time: at.UTC()})
	if err != nil {
		return errors.Wrap(err, "marshal journal reset")
	}

	return s.write(resetKey, payload)
}

func (s *WALStore) write(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrapf(s.wal.Write(nextIndex, key, payload), "write journal entry %s", key)
}

// Replay returns the trades recorded after the latest reset, oldest first.
func (s *WALStore) Replay() ([]domain.Transaction, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var trades []domain.Transaction
	current := s.wal.CurrentIndex()
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read journal entry %d", idx)
		}

		switch {
		case key == resetKey:
			trades = nil
		case strings.HasPrefix(key, tradeKeyPrefix):
			var e entry
			if err := json.Unmarshal(payload, &e); err != nil {
				return nil, errors.Wrapf(err, "decode journal entry %d", idx)
			}
			tx, err := domain.NewTransaction(e.ID, e.Type, e.AmountUSD, e.AssetAmount, e.Price, e.Time)
			if err != nil {
				return nil, errors.Wrapf(err, "journal entry %d", idx)
			}
			trades = append(trades, tx)
		}
	}

	return trades, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
