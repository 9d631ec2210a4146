package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

// UniquePriceStore implements storage.UniquePriceStore using PostgreSQL.
type UniquePriceStore struct {
	pool *Pool
}

// NewUniquePriceStore creates a new UniquePriceStore.
func NewUniquePriceStore(pool *Pool) *UniquePriceStore {
	return &UniquePriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UniquePriceStore = (*UniquePriceStore)(nil)

// InsertWindow adds one row per price in a single transaction.
// Any row failure rolls back the whole window.
func (s *UniquePriceStore) InsertWindow(ctx context.Context, symbol string, windowStart, windowEnd int64, prices []string) (inserted int, err error) {
	if len(prices) == 0 {
		return 0, nil
	}
	if symbol == "" || windowEnd <= windowStart {
		return 0, storage.ErrInvalidInput
	}

	started := time.Now()
	defer func() { observe("insert_window", started, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO unique_prices (
			symbol, price, window_start, window_end
		) VALUES (
			$1, $2, $3, $4
		)
		ON CONFLICT (symbol, window_start, price) DO NOTHING
	`

	for _, p := range prices {
		tag, err := tx.Exec(ctx, query, symbol, p, windowStart, windowEnd)
		if err != nil {
			if isInvalidInputError(err) {
				return 0, fmt.Errorf("%w: price %q: %v", storage.ErrInvalidInput, p, err)
			}
			return 0, fmt.Errorf("insert unique price in window: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// ListAfter returns up to limit rows with id > afterID ordered by (window_start, id).
func (s *UniquePriceStore) ListAfter(ctx context.Context, afterID int64, limit int) (result []*domain.UniquePriceRow, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	started := time.Now()
	defer func() { observe("list_unique_prices", started, err) }()

	query := `
		SELECT
			id, symbol, price::text, window_start, window_end,
			transaction_hash, created_at
		FROM unique_prices
		WHERE id > $1
		ORDER BY window_start ASC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unique prices after %d: %w", afterID, err)
	}
	defer rows.Close()

	return scanUniquePriceRows(rows)
}

// SetTransactionHash attaches hash to unsubmitted rows of the window up to maxID.
func (s *UniquePriceStore) SetTransactionHash(ctx context.Context, symbol string, windowStart, maxID int64, hash string) (updated int64, err error) {
	if hash == "" {
		return 0, storage.ErrInvalidInput
	}

	started := time.Now()
	defer func() { observe("set_transaction_hash", started, err) }()

	query := `
		UPDATE unique_prices
		SET transaction_hash = $4
		WHERE symbol = $1
		  AND window_start = $2
		  AND id <= $3
		  AND transaction_hash IS NULL
	`

	tag, err := s.pool.Exec(ctx, query, symbol, windowStart, maxID, hash)
	if err != nil {
		return 0, fmt.Errorf("set transaction hash: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MaxSubmittedID returns the highest id carrying a transaction hash.
func (s *UniquePriceStore) MaxSubmittedID(ctx context.Context) (int64, bool, error) {
	var id *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(id) FROM unique_prices WHERE transaction_hash IS NOT NULL`,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("max submitted id: %w", err)
	}
	if id == nil {
		return 0, false, nil
	}
	return *id, true, nil
}

// MaxID returns the highest id in the store, or 0 when empty.
func (s *UniquePriceStore) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM unique_prices`).Scan(&id)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("max id: %w", err)
	}
	return id, nil
}

// DeleteOlderThan removes rows created before cutoffMs regardless of submission state.
func (s *UniquePriceStore) DeleteOlderThan(ctx context.Context, cutoffMs int64) (deleted int64, err error) {
	started := time.Now()
	defer func() { observe("delete_unique_prices", started, err) }()

	tag, err := s.pool.Exec(ctx, `DELETE FROM unique_prices WHERE created_at < $1`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete unique prices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanUniquePriceRows scans multiple rows into a slice of UniquePriceRow.
func scanUniquePriceRows(rows pgx.Rows) ([]*domain.UniquePriceRow, error) {
	var result []*domain.UniquePriceRow

	for rows.Next() {
		var r domain.UniquePriceRow

		err := rows.Scan(
			&r.ID, &r.Symbol, &r.Price, &r.WindowStart, &r.WindowEnd,
			&r.TransactionHash, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan unique price row: %w", err)
		}

		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unique price rows: %w", err)
	}

	return result, nil
}
