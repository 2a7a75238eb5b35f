package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/app"
	"github.com/vadiminshakov/papertrader/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the price feed and open the trading menu",
	Args:  cobra.NoArgs,
	RunE:  runTrader,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTrader(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	ui := app.MenuUI(cli.NewHuhPrompter(out), out, cfg.Pair, logger.Named("menu"))
	if err := a.Run(ctx, out, ui); err != nil {
		logger.Error("trader stopped with error", zap.Error(err))
		return err
	}

	logger.Info("trader stopped")
	return nil
}
