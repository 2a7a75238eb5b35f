// Package cli is the interactive terminal front end of the paper trader.
package cli

// Command is a menu entry.
type Command int

const (
	CmdCash Command = iota + 1
	CmdAssetValue
	CmdBuy
	CmdSell
	CmdValuation
	CmdHistory
	CmdReset
	CmdExit
)

// Commands lists the menu entries in display order.
func Commands() []Command {
	return []Command{CmdCash, CmdAssetValue, CmdBuy, CmdSell, CmdValuation, CmdHistory, CmdReset, CmdExit}
}

// Title returns the menu label for an asset symbol.
func (c Command) Title(asset string) string {
	switch c {
	case CmdCash:
		return "View Cash Balance"
	case CmdAssetValue:
		return "View " + asset + " Balance"
	case CmdBuy:
		return "Buy " + asset
	case CmdSell:
		return "Sell " + asset
	case CmdValuation:
		return "View Total P/L"
	case CmdHistory:
		return "View Transaction History"
	case CmdReset:
		return "Reset Account"
	case CmdExit:
		return "Exit"
	default:
		return "Unknown"
	}
}
