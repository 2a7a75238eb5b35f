package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

const jsonIndent = "    "

// balanceRecord is the on-disk balance file. Numbers are written as JSON
// numbers carrying the exact decimal text; quoted numbers are accepted on read.
type balanceRecord struct {
	CashBalance   json.Number `json:"cash_balance"`
	BTCBalance    json.Number `json:"btc_balance"`
	StartingTotal json.Number `json:"starting_total"`
}

// transactionRecord is one entry of the history file.
type transactionRecord struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	AmountUSD   json.Number `json:"amount_usd"`
	BTC         json.Number `json:"btc"`
	PricePerBTC json.Number `json:"price_per_btc"`
	Timestamp   time.Time   `json:"timestamp"`
}

func newBalanceRecord(state domain.LedgerState) balanceRecord {
	return balanceRecord{
		CashBalance:   json.Number(state.Cash.String()),
		BTCBalance:    json.Number(state.Asset.String()),
		StartingTotal: json.Number(state.StartingTotal.String()),
	}
}

// toState reconstructs the ledger state; absent fields fall back to a fresh
// account funded with startingCash.
func (r balanceRecord) toState(startingCash decimal.Decimal) (domain.LedgerState, error) {
	state := domain.NewLedgerState(startingCash)

	var err error
	if state.Cash, err = decodeNumber(r.CashBalance, startingCash); err != nil {
		return domain.LedgerState{}, errors.Wrap(err, "decode cash balance")
	}
	if state.Asset, err = decodeNumber(r.BTCBalance, decimal.Zero); err != nil {
		return domain.LedgerState{}, errors.Wrap(err, "decode asset balance")
	}
	if state.StartingTotal, err = decodeNumber(r.StartingTotal, startingCash); err != nil {
		return domain.LedgerState{}, errors.Wrap(err, "decode starting total")
	}

	if err := state.Validate(); err != nil {
		return domain.LedgerState{}, err
	}

	return state, nil
}

func newTransactionRecord(tx domain.Transaction) transactionRecord {
	return transactionRecord{
		ID:          tx.ID,
		Type:        tx.Kind.String(),
		AmountUSD:   json.Number(tx.AmountUSD.String()),
		BTC:         json.Number(tx.AssetAmount.String()),
		PricePerBTC: json.Number(tx.PricePerUnit.String()),
		Timestamp:   tx.Timestamp.UTC(),
	}
}

func (r transactionRecord) toTransaction() (domain.Transaction, error) {
	amountUSD, err := decimal.NewFromString(r.AmountUSD.String())
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode amount_usd of %s", r.ID)
	}
	asset, err := decimal.NewFromString(r.BTC.String())
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode btc of %s", r.ID)
	}
	price, err := decimal.NewFromString(r.PricePerBTC.String())
	if err != nil {
		return domain.Transaction{}, errors.Wrapf(err, "decode price_per_btc of %s", r.ID)
	}

	return domain.NewTransaction(r.ID, domain.TxKind(r.Type), amountUSD, asset, price, r.Timestamp)
}

func decodeNumber(n json.Number, fallback decimal.Decimal) (decimal.Decimal, error) {
	if n == "" {
		return fallback, nil
	}
	return decimal.NewFromString(n.String())
}

// EncodeHistory renders transactions in the history file format.
func EncodeHistory(history []domain.Transaction) ([]byte, error) {
	records := make([]transactionRecord, 0, len(history))
	for _, tx := range history {
		records = append(records, newTransactionRecord(tx))
	}
	return json.MarshalIndent(records, "", jsonIndent)
}

// DecodeHistory parses the history file format.
func DecodeHistory(payload []byte) ([]domain.Transaction, error) {
	var records []transactionRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, errors.Wrap(err, "decode transaction history")
	}

	history := make([]domain.Transaction, 0, len(records))
	for _, r := range records {
		tx, err := r.toTransaction()
		if err != nil {
			return nil, err
		}
		history = append(history, tx)
	}

	return history, nil
}

// writeFileAtomic writes payload to a temp file in the target directory,
// syncs it and renames it over path so readers never see a partial file.
func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace file")
	}

	return nil
}
