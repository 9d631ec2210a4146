package storage

import (
	"context"

	"price-relay/internal/domain"
)

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a trade. A trade whose trade_id already exists is ignored:
	// inserted is false and err is nil.
	Insert(ctx context.Context, t *domain.Trade) (inserted bool, err error)

	// DistinctPrices returns the distinct prices of trades for symbol with
	// start <= timestamp < end, sorted ascending by numeric value.
	DistinctPrices(ctx context.Context, symbol string, start, end int64) ([]string, error)

	// DeleteOlderThan removes trades created before cutoffMs. Returns rows deleted.
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}

// UniquePriceStore provides access to unique_prices storage.
type UniquePriceStore interface {
	// InsertWindow adds one row per price for the window atomically.
	// All rows are committed or none. Prices already recorded for
	// (symbol, window_start) are skipped. Returns rows inserted.
	InsertWindow(ctx context.Context, symbol string, windowStart, windowEnd int64, prices []string) (int, error)

	// ListAfter returns up to limit rows with id > afterID,
	// ordered by window_start ASC, id ASC.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.UniquePriceRow, error)

	// SetTransactionHash attaches hash to rows of (symbol, window_start) with
	// id <= maxID that have no hash yet. Returns rows updated; calling it again
	// with the same arguments updates nothing and is not an error.
	SetTransactionHash(ctx context.Context, symbol string, windowStart, maxID int64, hash string) (int64, error)

	// MaxSubmittedID returns the highest id carrying a transaction hash.
	// ok is false when no row has been submitted.
	MaxSubmittedID(ctx context.Context) (id int64, ok bool, err error)

	// MaxID returns the highest id in the store, or 0 when empty.
	MaxID(ctx context.Context) (int64, error)

	// DeleteOlderThan removes rows created before cutoffMs regardless of
	// submission state. Returns rows deleted.
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}

// SubmissionArchive keeps a long-term record of confirmed submissions.
type SubmissionArchive interface {
	// Record appends a confirmed submission.
	Record(ctx context.Context, s *domain.Submission) error
}
