package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

// UniquePriceStore is an in-memory implementation of storage.UniquePriceStore.
type UniquePriceStore struct {
	mu     sync.RWMutex
	rows   []*domain.UniquePriceRow // ordered by id
	nextID int64
	clock  Clock
}

// NewUniquePriceStore creates a new in-memory unique price store.
func NewUniquePriceStore() *UniquePriceStore {
	return NewUniquePriceStoreWithClock(nil)
}

// NewUniquePriceStoreWithClock creates a store that stamps created_at from clock.
func NewUniquePriceStoreWithClock(clock Clock) *UniquePriceStore {
	return &UniquePriceStore{
		nextID: 1,
		clock:  clock,
	}
}

// InsertWindow adds one row per price atomically. Prices already recorded
// for (symbol, window_start) are skipped.
func (s *UniquePriceStore) InsertWindow(_ context.Context, symbol string, windowStart, windowEnd int64, prices []string) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	if symbol == "" || windowEnd <= windowStart {
		return 0, storage.ErrInvalidInput
	}

	values := make([]decimal.Decimal, len(prices))
	for i, p := range prices {
		v, err := decimal.NewFromString(p)
		if err != nil {
			return 0, storage.ErrInvalidInput
		}
		values[i] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []decimal.Decimal
	for _, r := range s.rows {
		if r.Symbol == symbol && r.WindowStart == windowStart {
			existing = append(existing, decimal.RequireFromString(r.Price))
		}
	}

	createdAt := nowMillis(s.clock)
	inserted := 0
	for i, p := range prices {
		if containsDecimal(existing, values[i]) {
			continue
		}
		existing = append(existing, values[i])
		s.rows = append(s.rows, &domain.UniquePriceRow{
			ID:          s.nextID,
			Symbol:      symbol,
			Price:       p,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			CreatedAt:   createdAt,
		})
		s.nextID++
		inserted++
	}
	return inserted, nil
}

// ListAfter returns up to limit rows with id > afterID ordered by (window_start, id).
func (s *UniquePriceStore) ListAfter(_ context.Context, afterID int64, limit int) ([]*domain.UniquePriceRow, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.UniquePriceRow
	for _, r := range s.rows {
		if r.ID > afterID {
			result = append(result, copyRow(r))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].WindowStart != result[j].WindowStart {
			return result[i].WindowStart < result[j].WindowStart
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SetTransactionHash attaches hash to unsubmitted rows of the window up to maxID.
func (s *UniquePriceStore) SetTransactionHash(_ context.Context, symbol string, windowStart, maxID int64, hash string) (int64, error) {
	if hash == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, r := range s.rows {
		if r.Symbol != symbol || r.WindowStart != windowStart || r.ID > maxID || r.TransactionHash != nil {
			continue
		}
		h := hash
		r.TransactionHash = &h
		updated++
	}
	return updated, nil
}

// MaxSubmittedID returns the highest id carrying a transaction hash.
func (s *UniquePriceStore) MaxSubmittedID(_ context.Context) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxID int64
	found := false
	for _, r := range s.rows {
		if r.TransactionHash != nil && r.ID > maxID {
			maxID = r.ID
			found = true
		}
	}
	return maxID, found, nil
}

// MaxID returns the highest id in the store.
func (s *UniquePriceStore) MaxID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return 0, nil
	}
	return s.rows[len(s.rows)-1].ID, nil
}

// DeleteOlderThan removes rows created before cutoffMs.
func (s *UniquePriceStore) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var deleted int64
	for _, r := range s.rows {
		if r.CreatedAt < cutoffMs {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

// All returns a copy of every row ordered by id.
func (s *UniquePriceStore) All() []*domain.UniquePriceRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.UniquePriceRow, len(s.rows))
	for i, r := range s.rows {
		result[i] = copyRow(r)
	}
	return result
}

func copyRow(r *domain.UniquePriceRow) *domain.UniquePriceRow {
	c := *r
	if r.TransactionHash != nil {
		h := *r.TransactionHash
		c.TransactionHash = &h
	}
	return &c
}

func containsDecimal(values []decimal.Decimal, v decimal.Decimal) bool {
	for _, e := range values {
		if e.Equal(v) {
			return true
		}
	}
	return false
}

var _ storage.UniquePriceStore = (*UniquePriceStore)(nil)
