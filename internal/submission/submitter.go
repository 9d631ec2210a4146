package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"price-relay/internal/domain"
	"price-relay/internal/ledger"
	"price-relay/internal/observability"
	"price-relay/internal/storage"
)

// Submission failure causes.
var (
	ErrSimulationFailed    = errors.New("simulation failed")
	ErrRejected            = errors.New("transaction rejected")
	ErrTransactionFailed   = errors.New("transaction failed on ledger")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// Default confirmation polling budget.
const (
	DefaultConfirmAttempts = 30
	DefaultConfirmInterval = time.Second
)

// GroupSubmitter drives one window group through the ledger.
type GroupSubmitter interface {
	// SubmitGroup returns true once the group's transaction is confirmed.
	SubmitGroup(ctx context.Context, g *domain.WindowGroup) bool
}

// SubmitterConfig holds ledger submission parameters.
type SubmitterConfig struct {
	ContractID        string
	Function          string
	NetworkPassphrase string
	BaseFee           int64
	ConfirmAttempts   int
	ConfirmInterval   time.Duration
}

// LedgerSubmitter submits window groups as signed contract invocations.
type LedgerSubmitter struct {
	client  ledger.Client
	signer  *ledger.Signer
	store   storage.UniquePriceStore
	archive storage.SubmissionArchive
	config  SubmitterConfig
	logger  *zap.Logger
	now     func() time.Time
}

// Compile-time interface check.
var _ GroupSubmitter = (*LedgerSubmitter)(nil)

// NewLedgerSubmitter creates a submitter. archive may be nil.
func NewLedgerSubmitter(
	client ledger.Client,
	signer *ledger.Signer,
	store storage.UniquePriceStore,
	archive storage.SubmissionArchive,
	config SubmitterConfig,
	logger *zap.Logger,
) *LedgerSubmitter {
	if config.ConfirmAttempts <= 0 {
		config.ConfirmAttempts = DefaultConfirmAttempts
	}
	if config.ConfirmInterval <= 0 {
		config.ConfirmInterval = DefaultConfirmInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerSubmitter{
		client:  client,
		signer:  signer,
		store:   store,
		archive: archive,
		config:  config,
		logger:  logger.Named("submitter"),
		now:     time.Now,
	}
}

// SubmitGroup submits g and waits for confirmation. Any failure is logged
// and reported as false; the caller retries the group on a later tick.
func (s *LedgerSubmitter) SubmitGroup(ctx context.Context, g *domain.WindowGroup) bool {
	log := s.logger.With(
		zap.String("symbol", g.Symbol),
		zap.Int64("window_start", g.WindowStart),
		zap.Int("prices", len(g.Prices)),
	)

	sub, err := s.submit(ctx, g, log)
	if err != nil {
		log.Warn("window submission failed", zap.Error(err))
		return false
	}

	log.Info("window confirmed",
		zap.String("hash", sub.TransactionHash),
		zap.Int64("ledger", sub.Ledger),
		zap.Int64("sequence", sub.Sequence),
	)

	s.writeBack(ctx, g, sub, log)
	return true
}

func (s *LedgerSubmitter) submit(ctx context.Context, g *domain.WindowGroup, log *zap.Logger) (*domain.Submission, error) {
	invocation, err := BuildInvocation(s.config.ContractID, s.config.Function, g)
	if err != nil {
		return nil, err
	}

	// Sequence is fetched fresh on every attempt.
	acc, err := s.client.GetAccount(ctx, s.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	tx := ledger.Transaction{
		Source:     s.signer.Address(),
		Sequence:   acc.Sequence + 1,
		Fee:        s.config.BaseFee,
		Invocation: invocation,
	}

	unsigned, err := (&ledger.Envelope{Tx: tx}).Encode()
	if err != nil {
		return nil, err
	}
	sim, err := s.client.SimulateTransaction(ctx, unsigned)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	if sim.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrSimulationFailed, sim.Error)
	}
	tx.Fee = s.config.BaseFee + sim.MinResourceFee

	env, hash, err := s.signer.Sign(tx, s.config.NetworkPassphrase)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	signed, err := env.Encode()
	if err != nil {
		return nil, err
	}

	sent, err := s.client.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	if !sent.Status.Accepted() {
		return nil, fmt.Errorf("%w: status %s %s", ErrRejected, sent.Status, sent.ErrorResult)
	}
	if sent.Hash != "" && sent.Hash != hash {
		log.Warn("ledger reported a different hash", zap.String("local", hash), zap.String("ledger", sent.Hash))
		hash = sent.Hash
	}

	log.Debug("transaction accepted",
		zap.String("hash", hash),
		zap.String("status", string(sent.Status)),
		zap.Int64("fee", tx.Fee),
	)

	status, err := s.waitForConfirmation(ctx, hash, log)
	if err != nil {
		return nil, err
	}

	return &domain.Submission{
		Symbol:          g.Symbol,
		WindowStart:     g.WindowStart,
		WindowEnd:       g.WindowEnd,
		Prices:          g.Prices,
		TransactionHash: hash,
		Ledger:          status.Ledger,
		Sequence:        tx.Sequence,
		Fee:             tx.Fee,
		ConfirmedAt:     s.now().UnixMilli(),
	}, nil
}

// waitForConfirmation polls the transaction status at a fixed interval until
// it is terminal or the attempt budget is spent. Poll errors use up an attempt.
func (s *LedgerSubmitter) waitForConfirmation(ctx context.Context, hash string, log *zap.Logger) (*ledger.TransactionStatus, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.ConfirmAttempts; attempt++ {
		st, err := s.client.GetTransaction(ctx, hash)
		switch {
		case err != nil:
			lastErr = err
			log.Debug("status poll failed", zap.Int("attempt", attempt), zap.Error(err))
		case st.Status == ledger.TxStatusSuccess:
			observability.RecordConfirmationAttempts(attempt)
			return st, nil
		case st.Status == ledger.TxStatusFailed:
			observability.RecordConfirmationAttempts(attempt)
			return nil, fmt.Errorf("%w: %s %s", ErrTransactionFailed, hash, st.ResultError)
		}

		if attempt == s.config.ConfirmAttempts {
			break
		}

		timer := time.NewTimer(s.config.ConfirmInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	observability.RecordConfirmationAttempts(s.config.ConfirmAttempts)
	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %s: %v", ErrConfirmationTimeout, s.config.ConfirmAttempts, hash, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts: %s", ErrConfirmationTimeout, s.config.ConfirmAttempts, hash)
}

// writeBack records the hash on the group's rows and archives the submission.
// Failures are logged only: the ledger is the source of truth.
func (s *LedgerSubmitter) writeBack(ctx context.Context, g *domain.WindowGroup, sub *domain.Submission, log *zap.Logger) {
	n, err := s.store.SetTransactionHash(ctx, g.Symbol, g.WindowStart, g.MaxID, sub.TransactionHash)
	if err != nil {
		observability.RecordHashWriteFailure()
		log.Error("failed to record transaction hash",
			zap.String("hash", sub.TransactionHash),
			zap.Error(err),
		)
	} else if n != int64(g.RowCount) {
		log.Info("transaction hash recorded on fewer rows than submitted",
			zap.Int64("updated", n),
			zap.Int("rows", g.RowCount),
		)
	}

	if s.archive == nil {
		return
	}
	if err := s.archive.Record(ctx, sub); err != nil {
		log.Warn("failed to archive submission", zap.String("hash", sub.TransactionHash), zap.Error(err))
	}
}
