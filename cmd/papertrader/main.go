// Command papertrader simulates trading BTC against live Kraken prices with
// a virtual USD balance persisted in the data dir.
//
// Usage:
//
//	papertrader run [--config config.yaml] [--data-dir DIR]
//	papertrader history
//	papertrader reset [--yes]
package main

import (
	"os"

	"github.com/vadiminshakov/papertrader/cmd/papertrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
