// Package aggregation compresses raw trades into distinct prices per window.
package aggregation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"price-relay/internal/observability"
	"price-relay/internal/storage"
)

// Extractor writes the distinct prices of a window into the unique price store.
type Extractor struct {
	trades storage.TradeStore
	prices storage.UniquePriceStore
	logger *zap.Logger
}

// NewExtractor creates a window extractor.
func NewExtractor(trades storage.TradeStore, prices storage.UniquePriceStore, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		trades: trades,
		prices: prices,
		logger: logger.Named("extractor"),
	}
}

// Extract reads the distinct prices of symbol in [start, end), sorted
// ascending, and stores one row per price in a single transaction.
// An empty window writes nothing. Returns the prices and the rows written.
func (e *Extractor) Extract(ctx context.Context, symbol string, start, end int64) ([]string, int, error) {
	if end <= start {
		return nil, 0, fmt.Errorf("%w: window [%d, %d)", storage.ErrInvalidInput, start, end)
	}

	prices, err := e.trades.DistinctPrices(ctx, symbol, start, end)
	if err != nil {
		observability.RecordWindowExtracted(0, err)
		return nil, 0, fmt.Errorf("distinct prices [%d, %d): %w", start, end, err)
	}
	if len(prices) == 0 {
		observability.RecordWindowExtracted(0, nil)
		e.logger.Debug("empty window", zap.String("symbol", symbol), zap.Int64("window_start", start))
		return nil, 0, nil
	}

	n, err := e.prices.InsertWindow(ctx, symbol, start, end, prices)
	observability.RecordWindowExtracted(n, err)
	if err != nil {
		return prices, 0, fmt.Errorf("insert window [%d, %d): %w", start, end, err)
	}

	e.logger.Info("window extracted",
		zap.String("symbol", symbol),
		zap.Int64("window_start", start),
		zap.Int64("window_end", end),
		zap.Int("prices", len(prices)),
		zap.Int("rows", n),
	)
	return prices, n, nil
}
