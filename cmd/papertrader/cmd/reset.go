package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/papertrader/internal/app"
	"github.com/vadiminshakov/papertrader/internal/cli"
	"github.com/vadiminshakov/papertrader/internal/services/pricer"
	"github.com/vadiminshakov/papertrader/internal/services/trader"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the starting cash and clear the history",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	out := cmd.OutOrStdout()
	if !resetYes {
		ok, err := cli.NewHuhPrompter(out).Confirm("Are you sure you want to reset all balances and transaction history?")
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Reset cancelled.")
			return nil
		}
	}

	store, err := app.OpenLedger(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	// no price is needed to reset
	engine, err := trader.NewPaperTrader(trader.Config{Pair: cfg.Pair}, &pricer.Cell{}, store, trader.WithLogger(logger.Named("trader")))
	if err != nil {
		return err
	}
	if err := engine.Reset(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(out, "All balances and transaction history have been reset.")
	return nil
}
