package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-relay/internal/domain"
	"price-relay/internal/storage/memory"
)

func TestSweep_DeletesOnlyOldRows(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }

	trades := memory.NewTradeStoreWithClock(clock)
	prices := memory.NewUniquePriceStoreWithClock(clock)

	// Created at base.
	_, err := trades.Insert(ctx, &domain.Trade{TradeID: "old", Symbol: "BTCUSDT", Price: "1", Quantity: "1", Timestamp: 1})
	require.NoError(t, err)
	_, err = prices.InsertWindow(ctx, "BTCUSDT", 0, 10000, []string{"1", "2"})
	require.NoError(t, err)
	_, err = prices.SetTransactionHash(ctx, "BTCUSDT", 0, 1, "h")
	require.NoError(t, err)

	// Created at base+30m.
	current = base.Add(30 * time.Minute)
	_, err = trades.Insert(ctx, &domain.Trade{TradeID: "new", Symbol: "BTCUSDT", Price: "2", Quantity: "1", Timestamp: 2})
	require.NoError(t, err)
	_, err = prices.InsertWindow(ctx, "BTCUSDT", 10000, 20000, []string{"3"})
	require.NoError(t, err)

	// Cutoff is base+1m: only the rows created at base go, hashed or not.
	current = base.Add(61 * time.Minute)
	res, err := NewSweeperWithClock(trades, prices, clock, nil).Sweep(ctx, 60)
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Trades)
	assert.Equal(t, int64(2), res.UniquePrices)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), res.Cutoff)

	assert.Equal(t, 1, trades.Count())
	remaining := prices.All()
	require.Len(t, remaining, 1)
	assert.Equal(t, "3", remaining[0].Price)
}

func TestSweep_BoundaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }

	trades := memory.NewTradeStoreWithClock(clock)
	_, err := trades.Insert(ctx, &domain.Trade{TradeID: "edge", Symbol: "BTCUSDT", Price: "1", Quantity: "1"})
	require.NoError(t, err)

	// created_at == cutoff is kept.
	current = base.Add(10 * time.Minute)
	res, err := NewSweeperWithClock(trades, memory.NewUniquePriceStore(), clock, nil).Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Trades)
	assert.Equal(t, 1, trades.Count())
}

func TestSweep_InvalidAge(t *testing.T) {
	_, err := NewSweeper(memory.NewTradeStore(), memory.NewUniquePriceStore(), nil).Sweep(context.Background(), 0)
	assert.Error(t, err)
}
