package ledger

import "errors"

// ErrAccountNotFound is returned when the submitting account does not exist on the ledger.
var ErrAccountNotFound = errors.New("account not found")

// Account is the ledger state of a submitting identity.
type Account struct {
	ID       string
	Sequence int64
}

// SimulateResult is the outcome of simulateTransaction.
type SimulateResult struct {
	Error          string // non-empty when the invocation would fail
	MinResourceFee int64
	LatestLedger   int64
}

// Failed reports whether simulation returned an error.
func (r *SimulateResult) Failed() bool {
	return r.Error != ""
}

// SendStatus is the immediate result of sendTransaction.
type SendStatus string

// Send status values.
const (
	SendStatusPending       SendStatus = "PENDING"
	SendStatusDuplicate     SendStatus = "DUPLICATE"
	SendStatusTryAgainLater SendStatus = "TRY_AGAIN_LATER"
	SendStatusError         SendStatus = "ERROR"
)

// Accepted reports whether the transaction is on its way to inclusion.
// A duplicate means an identical transaction was already accepted.
func (s SendStatus) Accepted() bool {
	return s == SendStatusPending || s == SendStatusDuplicate
}

// SendResult is the outcome of sendTransaction.
type SendResult struct {
	Hash         string
	Status       SendStatus
	ErrorResult  string
	LatestLedger int64
}

// TxStatus is the inclusion status reported by getTransaction.
type TxStatus string

// Transaction status values.
const (
	TxStatusNotFound TxStatus = "NOT_FOUND"
	TxStatusSuccess  TxStatus = "SUCCESS"
	TxStatusFailed   TxStatus = "FAILED"
)

// Terminal reports whether the status will not change any more.
func (s TxStatus) Terminal() bool {
	return s == TxStatusSuccess || s == TxStatusFailed
}

// TransactionStatus is the outcome of getTransaction.
type TransactionStatus struct {
	Hash        string
	Status      TxStatus
	Ledger      int64
	ResultError string
}
