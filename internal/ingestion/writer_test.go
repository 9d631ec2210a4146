package ingestion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
	"price-relay/internal/storage/memory"
)

// flakyStore fails the first failures inserts of every call sequence.
type flakyStore struct {
	storage.TradeStore
	failures atomic.Int32
	always   bool
}

func (s *flakyStore) Insert(ctx context.Context, t *domain.Trade) (bool, error) {
	if s.always || s.failures.Add(-1) >= 0 {
		return false, errors.New("connection reset by peer")
	}
	return s.TradeStore.Insert(ctx, t)
}

func feed(trades ...*domain.Trade) <-chan *domain.Trade {
	ch := make(chan *domain.Trade, len(trades))
	for _, t := range trades {
		ch <- t
	}
	close(ch)
	return ch
}

func trade(id, price string) *domain.Trade {
	return &domain.Trade{TradeID: id, Symbol: "BTCUSDT", Price: price, Quantity: "1", Timestamp: 1000}
}

var fastRetry = storage.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestWriter_StoresAndDeduplicates(t *testing.T) {
	mem := memory.NewTradeStore()
	w := NewWriter(storage.NewRetryingTradeStore(mem, fastRetry, nil), nil)

	err := w.Run(context.Background(), feed(trade("a", "1"), trade("b", "2"), trade("a", "1")))
	require.NoError(t, err)

	assert.Equal(t, WriterStats{Stored: 2, Duplicates: 1}, w.Stats())
	assert.Equal(t, 2, mem.Count())
}

func TestWriter_RetriesTransientFailures(t *testing.T) {
	mem := memory.NewTradeStore()
	flaky := &flakyStore{TradeStore: mem}
	flaky.failures.Store(2)
	w := NewWriter(storage.NewRetryingTradeStore(flaky, fastRetry, nil), nil)

	require.NoError(t, w.Run(context.Background(), feed(trade("a", "1"))))

	assert.Equal(t, WriterStats{Stored: 1}, w.Stats())
	assert.Equal(t, 1, mem.Count())
}

func TestWriter_CountsExhaustedRetries(t *testing.T) {
	mem := memory.NewTradeStore()
	flaky := &flakyStore{TradeStore: mem, always: true}
	w := NewWriter(storage.NewRetryingTradeStore(flaky, fastRetry, nil), nil)

	require.NoError(t, w.Run(context.Background(), feed(trade("a", "1"), trade("b", "2"))))

	assert.Equal(t, WriterStats{Failed: 2}, w.Stats())
	assert.Zero(t, mem.Count())
}
