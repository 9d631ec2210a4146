package ingestion

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"price-relay/internal/domain"
	"price-relay/internal/observability"
	"price-relay/internal/storage"
)

// WriterStats counts insert outcomes.
type WriterStats struct {
	Stored     int64
	Duplicates int64
	Failed     int64
}

// Writer drains a trade channel into the trade store.
type Writer struct {
	store  storage.TradeStore
	logger *zap.Logger

	stored     atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// NewWriter creates a writer. store should retry transient failures,
// see storage.RetryingTradeStore.
func NewWriter(store storage.TradeStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:  store,
		logger: logger.Named("writer"),
	}
}

// Run inserts trades until the channel is closed. A trade whose insert fails
// after retries is logged with its full content and counted as failed.
func (w *Writer) Run(ctx context.Context, trades <-chan *domain.Trade) error {
	for t := range trades {
		observability.UpdateTradeBufferDepth(len(trades))

		inserted, err := w.store.Insert(ctx, t)
		observability.RecordTradeStored(inserted, err)

		switch {
		case err != nil:
			w.failed.Add(1)
			w.logger.Error("trade not stored",
				zap.String("trade_id", t.TradeID),
				zap.String("symbol", t.Symbol),
				zap.String("price", t.Price),
				zap.String("quantity", t.Quantity),
				zap.Int64("timestamp", t.Timestamp),
				zap.Bool("is_buyer_maker", t.IsBuyerMaker),
				zap.Error(err),
			)
		case inserted:
			w.stored.Add(1)
		default:
			w.duplicates.Add(1)
			w.logger.Debug("duplicate trade ignored", zap.String("trade_id", t.TradeID))
		}
	}

	stats := w.Stats()
	w.logger.Info("trade writer stopped",
		zap.Int64("stored", stats.Stored),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("failed", stats.Failed),
	)
	return nil
}

// Stats returns insert counts so far.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Stored:     w.stored.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}
