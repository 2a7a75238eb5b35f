package tradedb

// Schema creates the journal table. Every row is either a trade or a reset
// marker; seq orders them.
const Schema = `
CREATE TABLE IF NOT EXISTS journal (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	entry         TEXT NOT NULL,
	trade_id      TEXT,
	type          TEXT,
	amount_usd    TEXT,
	asset_amount  TEXT,
	price         TEXT,
	time          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_entry ON journal(entry);
`

const (
	entryTrade = "trade"
	entryReset = "reset"
)
