package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/app"
)

var (
	cfgFile  string
	dataDir  string
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "Paper trading against live Kraken prices",
	Long: `Papertrader simulates buying and selling an asset with a virtual USD
balance. Prices stream from the Kraken ticker, balances and the transaction
history are kept as JSON files in the data dir.

Examples:
  papertrader run
  papertrader run --config papertrader.yaml --data-dir ~/.papertrader
  papertrader history
  papertrader reset --yes`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML config")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding balances, history and journal")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file (default <data-dir>/papertrader.log)")
}

// loadConfig reads the config and applies command line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Get(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := app.NewLogger(cfg.LogLevel, cfg.LogLocation())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
