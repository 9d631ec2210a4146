package domain

// Trade is a single executed trade received from the exchange stream.
// Corresponds to trades table in PostgreSQL.
type Trade struct {
	TradeID      string // globally unique, deduplication key
	Symbol       string // market symbol, e.g. "BTCUSDT"
	Price        string // decimal string as published by the exchange
	Quantity     string // decimal string as published by the exchange
	Timestamp    int64  // trade time, Unix milliseconds
	IsBuyerMaker bool
	CreatedAt    int64 // record creation timestamp (ms), set by storage
}
