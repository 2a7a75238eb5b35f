package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vadiminshakov/papertrader/internal/app"
	"github.com/vadiminshakov/papertrader/internal/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print balances and the transaction history without connecting",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := app.OpenLedger(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	state := store.State()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cash Balance: %s\n", cli.FormatUSD(state.Cash))
	fmt.Fprintf(out, "%s Balance: %s\n\n", cfg.Pair.From, cli.FormatAsset(state.Asset, cfg.Pair.From))
	fmt.Fprintln(out, cli.RenderHistory(store.History(), cfg.Pair))
	return nil
}
