package stub

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-relay/internal/ledger"
)

const passphrase = "stub network"

func newSigner(t *testing.T) *ledger.Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	s, err := ledger.NewSignerFromSeed(base58.Encode(seed))
	require.NoError(t, err)
	return s
}

func signedEnvelope(t *testing.T, s *ledger.Signer, seq int64) string {
	t.Helper()
	tx := ledger.Transaction{
		Source:   s.Address(),
		Sequence: seq,
		Fee:      100,
		Invocation: ledger.Invocation{
			Contract: "c1",
			Function: "submit_prices",
			Args:     []ledger.Arg{ledger.Symbol("BTC")},
		},
	}
	env, _, err := s.Sign(tx, passphrase)
	require.NoError(t, err)
	encoded, err := env.Encode()
	require.NoError(t, err)
	return encoded
}

func TestLedger_SubmitAndConfirm(t *testing.T) {
	ctx := context.Background()
	s := newSigner(t)
	l := New(passphrase)
	l.SetAccount(s.Address(), 10)
	l.PendingPolls = 2

	res, err := l.SendTransaction(ctx, signedEnvelope(t, s, 11))
	require.NoError(t, err)
	require.Equal(t, ledger.SendStatusPending, res.Status)
	assert.Equal(t, int64(11), l.Sequence(s.Address()))

	for i := 0; i < 2; i++ {
		st, err := l.GetTransaction(ctx, res.Hash)
		require.NoError(t, err)
		assert.Equal(t, ledger.TxStatusNotFound, st.Status)
	}

	st, err := l.GetTransaction(ctx, res.Hash)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxStatusSuccess, st.Status)
	assert.Positive(t, st.Ledger)

	// Resending the same envelope is reported as a duplicate.
	dup, err := l.SendTransaction(ctx, signedEnvelope(t, s, 11))
	require.NoError(t, err)
	assert.Equal(t, ledger.SendStatusDuplicate, dup.Status)
	assert.Equal(t, res.Hash, dup.Hash)

	assert.Len(t, l.Submitted(), 1)
}

func TestLedger_BadSequence(t *testing.T) {
	s := newSigner(t)
	l := New(passphrase)
	l.SetAccount(s.Address(), 10)

	res, err := l.SendTransaction(context.Background(), signedEnvelope(t, s, 13))
	require.NoError(t, err)
	assert.Equal(t, ledger.SendStatusError, res.Status)
	assert.Contains(t, res.ErrorResult, "bad sequence")
}

func TestLedger_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	l := New(passphrase)

	_, err := l.GetAccount(ctx, "nobody")
	assert.True(t, errors.Is(err, ledger.ErrAccountNotFound))

	l.AutoCreate = true
	acc, err := l.GetAccount(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Sequence)
}

func TestLedger_FailTransactions(t *testing.T) {
	ctx := context.Background()
	s := newSigner(t)
	l := New(passphrase)
	l.SetAccount(s.Address(), 0)
	l.FailTransactions = true

	res, err := l.SendTransaction(ctx, signedEnvelope(t, s, 1))
	require.NoError(t, err)

	st, err := l.GetTransaction(ctx, res.Hash)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxStatusFailed, st.Status)
	assert.NotEmpty(t, st.ResultError)
}

func TestLedger_Simulate(t *testing.T) {
	ctx := context.Background()
	s := newSigner(t)
	l := New(passphrase)
	l.MinResourceFee = 500

	res, err := l.SimulateTransaction(ctx, signedEnvelope(t, s, 1))
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, int64(500), res.MinResourceFee)

	l.SimulateError = "contract error"
	res, err = l.SimulateTransaction(ctx, signedEnvelope(t, s, 1))
	require.NoError(t, err)
	assert.True(t, res.Failed())

	res, err = l.SimulateTransaction(ctx, "not-base64!")
	require.NoError(t, err)
	assert.True(t, res.Failed())
}
