package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Trade // keyed by trade_id
	clock Clock
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return NewTradeStoreWithClock(nil)
}

// NewTradeStoreWithClock creates a store that stamps created_at from clock.
func NewTradeStoreWithClock(clock Clock) *TradeStore {
	return &TradeStore{
		data:  make(map[string]*domain.Trade),
		clock: clock,
	}
}

// Insert adds a trade. Duplicates of an existing trade_id are ignored.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) (bool, error) {
	if t == nil || t.TradeID == "" || t.Symbol == "" {
		return false, storage.ErrInvalidInput
	}
	if _, err := decimal.NewFromString(t.Price); err != nil {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return false, nil
	}

	stored := *t
	stored.CreatedAt = nowMillis(s.clock)
	s.data[t.TradeID] = &stored
	return true, nil
}

// DistinctPrices returns distinct prices for symbol within [start, end),
// sorted ascending by numeric value. Numerically equal prices written
// differently ("0.1", "0.10") are reported with the spelling of the
// earliest trade, ties broken by trade_id.
func (s *TradeStore) DistinctPrices(_ context.Context, symbol string, start, end int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		text    string
		value   decimal.Decimal
		ts      int64
		tradeID string
	}

	var entries []*entry
	for _, t := range s.data {
		if t.Symbol != symbol || t.Timestamp < start || t.Timestamp >= end {
			continue
		}
		v, err := decimal.NewFromString(t.Price)
		if err != nil {
			continue
		}

		var match *entry
		for _, e := range entries {
			if e.value.Equal(v) {
				match = e
				break
			}
		}
		if match == nil {
			entries = append(entries, &entry{text: t.Price, value: v, ts: t.Timestamp, tradeID: t.TradeID})
			continue
		}
		if t.Timestamp < match.ts || (t.Timestamp == match.ts && t.TradeID < match.tradeID) {
			match.text, match.ts, match.tradeID = t.Price, t.Timestamp, t.TradeID
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].value.LessThan(entries[j].value)
	})

	prices := make([]string, len(entries))
	for i, e := range entries {
		prices[i] = e.text
	}
	return prices, nil
}

// DeleteOlderThan removes trades created before cutoffMs.
func (s *TradeStore) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, t := range s.data {
		if t.CreatedAt < cutoffMs {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the number of stored trades.
func (s *TradeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.TradeStore = (*TradeStore)(nil)
