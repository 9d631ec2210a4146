// Package stub provides an in-memory ledger for tests and dry-run mode.
package stub

import (
	"context"
	"fmt"
	"sync"

	"price-relay/internal/ledger"
)

// Ledger implements ledger.Client in memory. It verifies envelope signatures,
// enforces sequence numbers and confirms accepted transactions after
// PendingPolls NOT_FOUND answers.
type Ledger struct {
	mu sync.Mutex

	passphrase string
	accounts   map[string]int64
	txs        map[string]*entry
	ledgerSeq  int64

	// AutoCreate makes GetAccount create unknown accounts with sequence 0.
	AutoCreate bool
	// SimulateError, when set, is returned as the simulation contract error.
	SimulateError string
	// MinResourceFee is reported by simulation.
	MinResourceFee int64
	// ForceSendStatus overrides the send status when non-empty.
	ForceSendStatus ledger.SendStatus
	// PendingPolls is the number of NOT_FOUND answers before a terminal status.
	PendingPolls int
	// FailTransactions makes accepted transactions end in FAILED.
	FailTransactions bool
	// Err, when set, is returned by every call as a transport failure.
	Err error

	submitted []*ledger.Transaction
}

type entry struct {
	tx     ledger.Transaction
	polls  int
	status ledger.TxStatus
	ledger int64
}

// Compile-time interface check.
var _ ledger.Client = (*Ledger)(nil)

// New creates a stub ledger for the given network passphrase.
func New(passphrase string) *Ledger {
	return &Ledger{
		passphrase: passphrase,
		accounts:   make(map[string]int64),
		txs:        make(map[string]*entry),
		ledgerSeq:  1,
	}
}

// SetAccount creates or resets an account with the given sequence.
func (l *Ledger) SetAccount(address string, sequence int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[address] = sequence
}

// Sequence returns the current sequence of an account.
func (l *Ledger) Sequence(address string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[address]
}

// Submitted returns every transaction accepted so far, in order.
func (l *Ledger) Submitted() []*ledger.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*ledger.Transaction, len(l.submitted))
	copy(out, l.submitted)
	return out
}

// GetAccount returns the account sequence.
func (l *Ledger) GetAccount(_ context.Context, address string) (*ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}

	seq, ok := l.accounts[address]
	if !ok {
		if !l.AutoCreate {
			return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
		}
		l.accounts[address] = 0
	}
	return &ledger.Account{ID: address, Sequence: seq}, nil
}

// SimulateTransaction checks the envelope decodes and reports the configured outcome.
func (l *Ledger) SimulateTransaction(_ context.Context, envelope string) (*ledger.SimulateResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}

	env, err := ledger.DecodeEnvelope(envelope)
	if err != nil {
		return &ledger.SimulateResult{Error: err.Error(), LatestLedger: l.ledgerSeq}, nil
	}
	if env.Tx.Invocation.Contract == "" || env.Tx.Invocation.Function == "" {
		return &ledger.SimulateResult{Error: "missing contract invocation", LatestLedger: l.ledgerSeq}, nil
	}

	return &ledger.SimulateResult{
		Error:          l.SimulateError,
		MinResourceFee: l.MinResourceFee,
		LatestLedger:   l.ledgerSeq,
	}, nil
}

// SendTransaction verifies and accepts a signed envelope.
func (l *Ledger) SendTransaction(_ context.Context, envelope string) (*ledger.SendResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}

	env, err := ledger.DecodeEnvelope(envelope)
	if err != nil {
		return &ledger.SendResult{Status: ledger.SendStatusError, ErrorResult: err.Error()}, nil
	}

	hash, err := env.Tx.HashHex(l.passphrase)
	if err != nil {
		return &ledger.SendResult{Status: ledger.SendStatusError, ErrorResult: err.Error()}, nil
	}

	if l.ForceSendStatus != "" {
		return &ledger.SendResult{Hash: hash, Status: l.ForceSendStatus, LatestLedger: l.ledgerSeq}, nil
	}

	if _, ok := l.txs[hash]; ok {
		return &ledger.SendResult{Hash: hash, Status: ledger.SendStatusDuplicate, LatestLedger: l.ledgerSeq}, nil
	}

	if err := ledger.VerifyEnvelope(env, l.passphrase); err != nil {
		return &ledger.SendResult{Hash: hash, Status: ledger.SendStatusError, ErrorResult: err.Error()}, nil
	}

	current, ok := l.accounts[env.Tx.Source]
	if !ok {
		return &ledger.SendResult{Hash: hash, Status: ledger.SendStatusError, ErrorResult: "source account not found"}, nil
	}
	if env.Tx.Sequence != current+1 {
		return &ledger.SendResult{
			Hash:        hash,
			Status:      ledger.SendStatusError,
			ErrorResult: fmt.Sprintf("bad sequence: got %d, want %d", env.Tx.Sequence, current+1),
		}, nil
	}

	l.accounts[env.Tx.Source] = env.Tx.Sequence
	l.txs[hash] = &entry{tx: env.Tx, status: ledger.TxStatusNotFound}
	tx := env.Tx
	l.submitted = append(l.submitted, &tx)

	return &ledger.SendResult{Hash: hash, Status: ledger.SendStatusPending, LatestLedger: l.ledgerSeq}, nil
}

// GetTransaction reports NOT_FOUND for the first PendingPolls calls, then the terminal status.
func (l *Ledger) GetTransaction(_ context.Context, hash string) (*ledger.TransactionStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}

	e, ok := l.txs[hash]
	if !ok {
		return &ledger.TransactionStatus{Hash: hash, Status: ledger.TxStatusNotFound}, nil
	}

	if !e.status.Terminal() {
		e.polls++
		if e.polls <= l.PendingPolls {
			return &ledger.TransactionStatus{Hash: hash, Status: ledger.TxStatusNotFound}, nil
		}
		l.ledgerSeq++
		e.ledger = l.ledgerSeq
		e.status = ledger.TxStatusSuccess
		if l.FailTransactions {
			e.status = ledger.TxStatusFailed
		}
	}

	out := &ledger.TransactionStatus{Hash: hash, Status: e.status, Ledger: e.ledger}
	if e.status == ledger.TxStatusFailed {
		out.ResultError = "contract invocation failed"
	}
	return out, nil
}
