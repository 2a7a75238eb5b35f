// Package config loads paper trader settings from YAML, the environment and
// .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Environment overrides.
const (
	EnvDataDir = "PAPERTRADER_DATA_DIR"
	EnvFeedURL = "PAPERTRADER_FEED_URL"
)

// JournalKind selects the append-only trade journal backend.
type JournalKind string

const (
	JournalNone   JournalKind = "none"
	JournalWAL    JournalKind = "wal"
	JournalSQLite JournalKind = "sqlite"
)

type Config struct {
	Pair           domain.Pair
	FeedURL        string
	StartingCash   decimal.Decimal
	DataDir        string
	BalanceFile    string
	HistoryFile    string
	Journal        JournalKind
	JournalPath    string
	MaxPriceAge    time.Duration
	StartupTimeout time.Duration
	// WebAddr dashboard listen address, empty disables the dashboard.
	WebAddr  string
	LogLevel string
	LogFile  string
}

type ConfigTmp struct {
	Pair           string         `yaml:"pair"`
	FeedURL        string         `yaml:"feed_url"`
	StartingCash   string         `yaml:"starting_cash"`
	DataDir        string         `yaml:"data_dir"`
	BalanceFile    string         `yaml:"balance_file"`
	HistoryFile    string         `yaml:"history_file"`
	Journal        string         `yaml:"journal"`
	JournalPath    string         `yaml:"journal_path"`
	MaxPriceAge    *time.Duration `yaml:"max_price_age"`
	StartupTimeout time.Duration  `yaml:"startup_timeout"`
	WebAddr        *string        `yaml:"web_addr"`
	LogLevel       string         `yaml:"log_level"`
	LogFile        string         `yaml:"log_file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Pair:           domain.Pair{From: "BTC", To: "USD"},
		FeedURL:        "wss://ws.kraken.com/",
		StartingCash:   decimal.NewFromInt(20000),
		DataDir:        ".",
		BalanceFile:    "trader_data.json",
		HistoryFile:    "transaction_history.json",
		Journal:        JournalWAL,
		MaxPriceAge:    2 * time.Minute,
		StartupTimeout: 30 * time.Second,
		WebAddr:        "127.0.0.1:8089",
		LogLevel:       "info",
	}
}

// Get loads .env files, then the YAML file at path (optional), then applies
// environment overrides.
func Get(path string) (Config, error) {
	if err := LoadEnvFiles(".env"); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = getYaml(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFiles loads variables from the given files without overriding ones
// already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "load env file %s", p)
		}
	}
	return nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return Config{}, errors.Wrap(err, "parse yaml config")
	}

	return c.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if c.Pair != "" {
		pair, err := domain.ParsePair(c.Pair)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", c.Pair, err)
		}
		cfg.Pair = pair
	}
	if c.StartingCash != "" {
		cash, err := decimal.NewFromString(c.StartingCash)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'starting_cash' param in yaml config (correct format is 20000), error: %w", err)
		}
		cfg.StartingCash = cash
	}

	setString(&cfg.FeedURL, c.FeedURL)
	setString(&cfg.DataDir, c.DataDir)
	setString(&cfg.BalanceFile, c.BalanceFile)
	setString(&cfg.HistoryFile, c.HistoryFile)
	setString(&cfg.JournalPath, c.JournalPath)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.LogFile, c.LogFile)
	if c.Journal != "" {
		cfg.Journal = JournalKind(strings.ToLower(c.Journal))
	}
	if c.MaxPriceAge != nil {
		cfg.MaxPriceAge = *c.MaxPriceAge
	}
	if c.StartupTimeout != 0 {
		cfg.StartupTimeout = c.StartupTimeout
	}
	if c.WebAddr != nil {
		cfg.WebAddr = *c.WebAddr
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataDir = dir
	}
	if url := os.Getenv(EnvFeedURL); url != "" {
		c.FeedURL = url
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	if c.Pair.From == "" || c.Pair.To == "" {
		return errors.New("pair is required")
	}
	if c.FeedURL == "" {
		return errors.New("feed_url is required")
	}
	if !c.StartingCash.IsPositive() {
		return errors.Errorf("starting_cash must be positive, got %s", c.StartingCash)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.Journal {
	case JournalNone, JournalWAL, JournalSQLite:
	default:
		return errors.Errorf("unknown journal %q (supported: none, wal, sqlite)", c.Journal)
	}
	if c.MaxPriceAge < 0 {
		return errors.Errorf("max_price_age must not be negative, got %s", c.MaxPriceAge)
	}
	if c.StartupTimeout <= 0 {
		return errors.Errorf("startup_timeout must be positive, got %s", c.StartupTimeout)
	}
	return nil
}

// JournalLocation returns where the journal lives inside the data dir unless
// JournalPath overrides it.
func (c Config) JournalLocation() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	switch c.Journal {
	case JournalSQLite:
		return filepath.Join(c.DataDir, "journal.db")
	default:
		return filepath.Join(c.DataDir, "wal")
	}
}

// LogLocation returns the log file path, defaulting to the data dir.
func (c Config) LogLocation() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, "papertrader.log")
}
