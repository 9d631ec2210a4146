package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

func createTestTrade(id string, price string, ts int64) *domain.Trade {
	return &domain.Trade{
		TradeID:      id,
		Symbol:       "BTCUSDT",
		Price:        price,
		Quantity:     "0.5",
		Timestamp:    ts,
		IsBuyerMaker: true,
	}
}

func TestTradeStore_Insert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	inserted, err := store.Insert(ctx, createTestTrade("BTCUSDT-1", "0.10", 1000))
	require.NoError(t, err)
	assert.True(t, inserted)

	var count int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTradeStore_Insert_DuplicateIgnored(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	inserted, err := store.Insert(ctx, createTestTrade("BTCUSDT-1", "0.10", 1000))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same trade_id with different content is still a duplicate.
	inserted, err = store.Insert(ctx, createTestTrade("BTCUSDT-1", "0.99", 2000))
	require.NoError(t, err)
	assert.False(t, inserted)

	prices, err := store.DistinctPrices(ctx, "BTCUSDT", 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.10"}, prices)
}

func TestTradeStore_Insert_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	_, err := store.Insert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Insert(ctx, createTestTrade("", "0.10", 1000))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Insert(ctx, createTestTrade("BTCUSDT-2", "not-a-number", 1000))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeStore_DistinctPrices(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trades := []*domain.Trade{
		createTestTrade("BTCUSDT-1", "0.10", 0),
		createTestTrade("BTCUSDT-2", "0.10", 4000),
		createTestTrade("BTCUSDT-3", "9.5", 5000),
		createTestTrade("BTCUSDT-4", "10.25", 9999),
		createTestTrade("BTCUSDT-5", "0.11", 10000), // next window
		createTestTrade("BTCUSDT-6", "0.09", -1),    // previous window
	}
	for _, tr := range trades {
		_, err := store.Insert(ctx, tr)
		require.NoError(t, err)
	}

	other := createTestTrade("ETHUSDT-1", "0.05", 1000)
	other.Symbol = "ETHUSDT"
	_, err := store.Insert(ctx, other)
	require.NoError(t, err)

	prices, err := store.DistinctPrices(ctx, "BTCUSDT", 0, 10000)
	require.NoError(t, err)
	// Numeric, not lexical, order.
	assert.Equal(t, []string{"0.10", "9.5", "10.25"}, prices)

	prices, err = store.DistinctPrices(ctx, "BTCUSDT", 20000, 30000)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestTradeStore_DeleteOlderThan(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	for _, id := range []string{"BTCUSDT-1", "BTCUSDT-2"} {
		_, err := store.Insert(ctx, createTestTrade(id, "1", 1000))
		require.NoError(t, err)
	}

	deleted, err := store.DeleteOlderThan(ctx, time.Now().Add(-time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	deleted, err = store.DeleteOlderThan(ctx, time.Now().Add(time.Minute).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	prices, err := store.DistinctPrices(ctx, "BTCUSDT", 0, 10000)
	require.NoError(t, err)
	assert.Empty(t, prices)
}
