package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"price-relay/internal/domain"
)

// Default retry policy for single-trade inserts.
const (
	DefaultInsertMaxAttempts    = 5
	DefaultInsertInitialBackoff = 100 * time.Millisecond
	DefaultInsertMaxBackoff     = 2 * time.Second
)

// RetryPolicy bounds the exponential backoff used by RetryingTradeStore.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RetryingTradeStore retries transient Insert failures of the wrapped store.
// Reads and deletes are passed through unchanged.
type RetryingTradeStore struct {
	TradeStore
	policy RetryPolicy
	logger *zap.Logger
}

// Compile-time interface check.
var _ TradeStore = (*RetryingTradeStore)(nil)

// NewRetryingTradeStore wraps store with the given policy.
// Zero policy fields fall back to the defaults.
func NewRetryingTradeStore(store TradeStore, policy RetryPolicy, logger *zap.Logger) *RetryingTradeStore {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultInsertMaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultInsertInitialBackoff
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = DefaultInsertMaxBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingTradeStore{
		TradeStore: store,
		policy:     policy,
		logger:     logger,
	}
}

// Insert adds a trade, retrying transient errors with exponential backoff.
// ErrInvalidInput is not retried. When the budget is exhausted the last
// error is returned.
func (s *RetryingTradeStore) Insert(ctx context.Context, t *domain.Trade) (bool, error) {
	if t == nil {
		return false, ErrInvalidInput
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.policy.InitialBackoff
	b.MaxInterval = s.policy.MaxBackoff
	b.MaxElapsedTime = 0

	var inserted bool
	attempt := 0
	op := func() error {
		attempt++
		var err error
		inserted, err = s.TradeStore.Insert(ctx, t)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidInput) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("trade insert failed, retrying",
			zap.String("trade_id", t.TradeID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.policy.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return false, fmt.Errorf("insert trade %s after %d attempts: %w", t.TradeID, attempt, err)
	}
	return inserted, nil
}
