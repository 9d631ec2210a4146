package ledger

import "context"

// Client defines the ledger RPC interface used for price submissions.
type Client interface {
	// GetAccount returns the current state of an account, including its
	// sequence number. Returns ErrAccountNotFound if the account does not exist.
	GetAccount(ctx context.Context, address string) (*Account, error)

	// SimulateTransaction dry-runs an unsigned envelope and returns the
	// resource fee it needs, or the contract error it would raise.
	SimulateTransaction(ctx context.Context, envelope string) (*SimulateResult, error)

	// SendTransaction submits a signed envelope.
	SendTransaction(ctx context.Context, envelope string) (*SendResult, error)

	// GetTransaction returns the inclusion status of a submitted transaction.
	GetTransaction(ctx context.Context, hash string) (*TransactionStatus, error)
}
