// Package retention deletes trades and unique price rows past their age.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"price-relay/internal/observability"
	"price-relay/internal/storage"
)

// Result holds rows deleted by one sweep.
type Result struct {
	Trades       int64
	UniquePrices int64
	Cutoff       int64 // Unix milliseconds
}

// Sweeper removes rows older than a threshold regardless of submission state.
type Sweeper struct {
	trades storage.TradeStore
	prices storage.UniquePriceStore
	now    func() time.Time
	logger *zap.Logger
}

// NewSweeper creates a retention sweeper.
func NewSweeper(trades storage.TradeStore, prices storage.UniquePriceStore, logger *zap.Logger) *Sweeper {
	return NewSweeperWithClock(trades, prices, time.Now, logger)
}

// NewSweeperWithClock creates a sweeper using now as the wall clock.
func NewSweeperWithClock(trades storage.TradeStore, prices storage.UniquePriceStore, now func() time.Time, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		trades: trades,
		prices: prices,
		now:    now,
		logger: logger.Named("retention"),
	}
}

// Sweep deletes trades and unique price rows with created_at < now - maxAgeMinutes.
func (s *Sweeper) Sweep(ctx context.Context, maxAgeMinutes int) (*Result, error) {
	if maxAgeMinutes <= 0 {
		return nil, fmt.Errorf("%w: max age %d minutes", storage.ErrInvalidInput, maxAgeMinutes)
	}

	res := &Result{
		Cutoff: s.now().Add(-time.Duration(maxAgeMinutes) * time.Minute).UnixMilli(),
	}

	n, err := s.trades.DeleteOlderThan(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("delete trades: %w", err)
	}
	res.Trades = n
	observability.RecordRowsSwept("trades", n)

	n, err = s.prices.DeleteOlderThan(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("delete unique prices: %w", err)
	}
	res.UniquePrices = n
	observability.RecordRowsSwept("unique_prices", n)

	s.logger.Info("retention sweep complete",
		zap.Int64("cutoff", res.Cutoff),
		zap.Int64("trades_deleted", res.Trades),
		zap.Int64("unique_prices_deleted", res.UniquePrices),
	)
	return res, nil
}
