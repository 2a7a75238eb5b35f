// Package tradedb journals paper trades and account resets in SQLite.
package tradedb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Store is a SQLite-backed trade journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create trade db dir")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open trade db")
	}
	// one connection keeps writes ordered and makes :memory: a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply trade db schema")
	}

	return &Store{db: db}, nil
}

// RecordTrade inserts tx.
func (s *Store) RecordTrade(tx domain.Transaction) error {
	_, err := s.db.Exec(`
		INSERT INTO journal
		(entry, trade_id, type, amount_usd, asset_amount, price, time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entryTrade, tx.ID, tx.Kind.String(), tx.AmountUSD.String(),
		tx.AssetAmount.String(), tx.PricePerUnit.String(), formatTime(tx.Timestamp),
	)
	return errors.Wrapf(err, "insert trade %s", tx.ID)
}

// RecordReset inserts a reset marker.
func (s *Store) RecordReset(at time.Time) error {
	_, err := s.db.Exec(`INSERT INTO journal (entry, time) VALUES (?, ?)`, entryReset, formatTime(at))
	return errors.Wrap(err, "insert reset marker")
}

// Replay returns the trades recorded after the latest reset, oldest first.
func (s *Store) Replay() ([]domain.Transaction, error) {
	return s.TradesSinceReset(context.Background())
}

// TradesSinceReset is Replay with a context.
func (s *Store) TradesSinceReset(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, type, amount_usd, asset_amount, price, time
		FROM journal
		WHERE entry = ?
		  AND seq > COALESCE((SELECT MAX(seq) FROM journal WHERE entry = ?), 0)
		ORDER BY seq`,
		entryTrade, entryReset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query trades")
	}
	defer rows.Close()

	var trades []domain.Transaction
	for rows.Next() {
		var id, kind, usd, asset, price, ts string
		if err := rows.Scan(&id, &kind, &usd, &asset, &price, &ts); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}

		tx, err := decodeTrade(id, kind, usd, asset, price, ts)
		if err != nil {
			return nil, err
		}
		trades = append(trades, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate trades")
	}

	return trades, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeTrade(id, kind, usd, asset, price, ts string) (domain.Transaction, error) {
	amountUSD, err := decimal.NewFromString(usd)
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode amount_usd of %s", id)
	}
	assetAmount, err := decimal.NewFromString(asset)
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode asset_amount of %s", id)
	}
	pricePerUnit, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode price of %s", id)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode time of %s", id)
	}

	return domain.NewTransaction(id, domain.TxKind(kind), amountUSD, assetAmount, pricePerUnit, at)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
