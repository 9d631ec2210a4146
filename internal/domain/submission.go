package domain

// Submission is a window group confirmed on the ledger.
type Submission struct {
	Symbol          string
	WindowStart     int64 // Unix milliseconds
	WindowEnd       int64 // Unix milliseconds
	Prices          []string
	TransactionHash string
	Ledger          int64 // ledger number the transaction was included in
	Sequence        int64 // account sequence used
	Fee             int64
	ConfirmedAt     int64 // Unix milliseconds
}
