// Package ledger persists balances and the transaction history of the paper
// account so restarts keep them.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/metrics"
)

const (
	// DefaultBalanceFile balance file name inside the data dir.
	DefaultBalanceFile = "trader_data.json"
	// DefaultHistoryFile history file name inside the data dir.
	DefaultHistoryFile = "transaction_history.json"
)

// Journal is an append-only log of trades and resets. The store writes every
// trade and reset to it and replays it when the history file is unreadable.
type Journal interface {
	RecordTrade(tx domain.Transaction) error
	RecordReset(at time.Time) error
	// Replay returns the trades recorded after the latest reset, oldest first.
	Replay() ([]domain.Transaction, error)
	Close() error
}

// Config locates the ledger files.
type Config struct {
	Dir          string
	BalanceFile  string
	HistoryFile  string
	StartingCash decimal.Decimal
}

// Option configures a Store.
type Option func(*Store)

// WithJournal attaches an append-only journal.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

// WithMetrics records persistence failures into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithClock overrides the clock used to stamp reset markers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns the ledger state and transaction history. Every mutation is
// applied in memory first and then written through to disk; in-memory state
// stays authoritative when a write fails.
type Store struct {
	balancePath  string
	historyPath  string
	startingCash decimal.Decimal
	logger       *zap.Logger
	metrics      *metrics.Collector
	journal      Journal
	now          func() time.Time

	mu      sync.Mutex
	state   domain.LedgerState
	history []domain.Transaction

	// writeMu serializes file writes so two saves never interleave.
	writeMu sync.Mutex
}

// Open loads the ledger from cfg.Dir, initializing and persisting a fresh
// account when files are missing or unreadable. Only an unusable data dir or
// an invalid starting cash is reported as an error.
func Open(cfg Config, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.StartingCash.IsPositive() {
		return nil, errors.Errorf("starting cash must be positive, got %s", cfg.StartingCash)
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.BalanceFile == "" {
		cfg.BalanceFile = DefaultBalanceFile
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger dir")
	}

	s := &Store{
		balancePath:  filepath.Join(cfg.Dir, cfg.BalanceFile),
		historyPath:  filepath.Join(cfg.Dir, cfg.HistoryFile),
		startingCash: cfg.StartingCash,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()
	s.loadHistory()

	return s, nil
}

func (s *Store) load() {
	state, err := s.readState()
	switch {
	case err == nil:
		s.state = state
		s.logger.Info("loaded ledger state",
			zap.String("cash", state.Cash.String()),
			zap.String("asset", state.Asset.String()),
			zap.String("starting_total", state.StartingTotal.String()))
		return
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info("ledger state not found, initializing",
			zap.String("path", s.balancePath),
			zap.String("cash", s.startingCash.String()))
	default:
		s.logger.Warn("failed to load ledger state, initializing with defaults",
			zap.String("path", s.balancePath),
			zap.Error(err))
	}

	s.state = domain.NewLedgerState(s.startingCash)
	if err := s.writeState(s.state); err != nil {
		s.logger.Warn("failed to persist initial ledger state", zap.Error(err))
	}
}

func (s *Store) loadHistory() {
	history, err := s.readHistory()
	switch {
	case err == nil:
		s.history = history
		return
	case errors.Is(err, os.ErrNotExist):
		s.history = nil
	default:
		s.logger.Warn("failed to load transaction history",
			zap.String("path", s.historyPath),
			zap.Error(err))
		s.history = s.replayJournal()
	}

	if err := s.writeHistory(s.history); err != nil {
		s.logger.Warn("failed to persist transaction history", zap.Error(err))
	}
}

func (s *Store) replayJournal() []domain.Transaction {
	if s.journal == nil {
		return nil
	}

	history, err := s.journal.Replay()
	if err != nil {
		s.logger.Warn("failed to replay trade journal, starting with empty history", zap.Error(err))
		return nil
	}

	s.logger.Info("recovered transaction history from journal", zap.Int("transactions", len(history)))
	return history
}

func (s *Store) readState() (domain.LedgerState, error) {
	payload, err := os.ReadFile(s.balancePath)
	if err != nil {
		return domain.LedgerState{}, err
	}

	var record balanceRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.LedgerState{}, errors.Wrap(err, "decode ledger state")
	}

	return record.toState(s.startingCash)
}

func (s *Store) readHistory() ([]domain.Transaction, error) {
	payload, err := os.ReadFile(s.historyPath)
	if err != nil {
		return nil, err
	}

	return DecodeHistory(payload)
}

// State returns a copy of the current ledger state.
func (s *Store) State() domain.LedgerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the transaction history in insertion order.
func (s *Store) History() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHistory(s.history)
}

// StartingCash returns the cash a fresh or reset account starts with.
func (s *Store) StartingCash() decimal.Decimal {
	return s.startingCash
}

// Save replaces the ledger state and writes it to disk. An invalid state is
// rejected without being applied; a write failure wraps domain.ErrPersistence.
func (s *Store) Save(state domain.LedgerState) error {
	if err := state.Validate(); err != nil {
		return errors.Wrap(err, "save ledger state")
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	return s.persistState(state)
}

// AppendTransaction appends tx to the history and writes the history through.
func (s *Store) AppendTransaction(tx domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return errors.Wrap(err, "append transaction")
	}

	s.mu.Lock()
	s.history = append(s.history, tx)
	history := cloneHistory(s.history)
	s.mu.Unlock()

	journalErr := s.recordJournal("trade", func(j Journal) error { return j.RecordTrade(tx) })
	if err := s.persistHistory(history); err != nil {
		return err
	}

	return journalErr
}

// SaveHistory writes the current history to disk.
func (s *Store) SaveHistory() error {
	return s.persistHistory(s.History())
}

// Commit applies a trade: state replaces the current balances and tx is
// appended to the history, then both are persisted. Invalid input is rejected
// with nothing applied. Persistence failures leave the in-memory mutation in
// place and are returned wrapping domain.ErrPersistence.
func (s *Store) Commit(state domain.LedgerState, tx domain.Transaction) error {
	if err := state.Validate(); err != nil {
		return errors.Wrap(err, "commit ledger state")
	}
	if err := tx.Validate(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}

	s.mu.Lock()
	s.state = state
	s.history = append(s.history, tx)
	history := cloneHistory(s.history)
	s.mu.Unlock()

	return firstError(
		s.recordJournal("trade", func(j Journal) error { return j.RecordTrade(tx) }),
		s.persistState(state),
		s.persistHistory(history),
	)
}

// Reset restores the starting balances, clears the history and persists both.
func (s *Store) Reset() error {
	state := domain.NewLedgerState(s.startingCash)

	s.mu.Lock()
	s.state = state
	s.history = nil
	s.mu.Unlock()

	at := s.now().UTC()
	err := firstError(
		s.recordJournal("reset", func(j Journal) error { return j.RecordReset(at) }),
		s.persistState(state),
		s.persistHistory(nil),
	)

	s.logger.Info("ledger reset", zap.String("cash", state.Cash.String()))
	return err
}

// Close releases the journal.
func (s *Store) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func (s *Store) persistState(state domain.LedgerState) error {
	if err := s.writeState(state); err != nil {
		s.metrics.RecordPersistFailure("balance")
		s.logger.Warn("failed to persist ledger state", zap.String("path", s.balancePath), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) persistHistory(history []domain.Transaction) error {
	if err := s.writeHistory(history); err != nil {
		s.metrics.RecordPersistFailure("history")
		s.logger.Warn("failed to persist transaction history", zap.String("path", s.historyPath), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) recordJournal(what string, fn func(Journal) error) error {
	if s.journal == nil {
		return nil
	}
	if err := fn(s.journal); err != nil {
		s.metrics.RecordPersistFailure("journal")
		s.logger.Warn("failed to record journal entry", zap.String("entry", what), zap.Error(err))
		return fmt.Errorf("%w: journal %s: %w", domain.ErrPersistence, what, err)
	}
	return nil
}

func (s *Store) writeState(state domain.LedgerState) error {
	payload, err := json.MarshalIndent(newBalanceRecord(state), "", jsonIndent)
	if err != nil {
		return errors.Wrap(err, "encode ledger state")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return writeFileAtomic(s.balancePath, payload)
}

func (s *Store) writeHistory(history []domain.Transaction) error {
	payload, err := EncodeHistory(history)
	if err != nil {
		return errors.Wrap(err, "encode transaction history")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return writeFileAtomic(s.historyPath, payload)
}

func cloneHistory(history []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(history))
	copy(out, history)
	return out
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
