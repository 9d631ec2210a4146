package postgres

import (
	"context"
	"fmt"
	"time"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. A trade whose trade_id already exists is ignored.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) (inserted bool, err error) {
	if t == nil || t.TradeID == "" || t.Symbol == "" {
		return false, storage.ErrInvalidInput
	}

	started := time.Now()
	defer func() { observe("insert_trade", started, err) }()

	query := `
		INSERT INTO trades (
			trade_id, symbol, price, quantity, timestamp_ms, is_buyer_maker
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (trade_id) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Symbol, t.Price, t.Quantity, t.Timestamp, t.IsBuyerMaker,
	)
	if err != nil {
		if isInvalidInputError(err) {
			return false, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return false, fmt.Errorf("insert trade: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DistinctPrices returns distinct prices for symbol within [start, end),
// sorted ascending by numeric value.
func (s *TradeStore) DistinctPrices(ctx context.Context, symbol string, start, end int64) (prices []string, err error) {
	started := time.Now()
	defer func() { observe("distinct_prices", started, err) }()

	query := `
		SELECT price::text
		FROM (
			SELECT DISTINCT price
			FROM trades
			WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		) p
		ORDER BY price ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query distinct prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return prices, nil
}

// DeleteOlderThan removes trades created before cutoffMs.
func (s *TradeStore) DeleteOlderThan(ctx context.Context, cutoffMs int64) (deleted int64, err error) {
	started := time.Now()
	defer func() { observe("delete_trades", started, err) }()

	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE created_at < $1`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete trades: %w", err)
	}
	return tag.RowsAffected(), nil
}
