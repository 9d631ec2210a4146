package clickhouse

import (
	"context"
	"fmt"

	"price-relay/internal/domain"
	"price-relay/internal/storage"
)

// SubmissionArchive implements storage.SubmissionArchive using ClickHouse.
// The table is a ReplacingMergeTree keyed by (symbol, window_start, hash),
// so recording the same submission twice collapses on merge.
type SubmissionArchive struct {
	conn *Conn
}

// NewSubmissionArchive creates a new SubmissionArchive.
func NewSubmissionArchive(conn *Conn) *SubmissionArchive {
	return &SubmissionArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.SubmissionArchive = (*SubmissionArchive)(nil)

// Record appends a confirmed submission.
func (a *SubmissionArchive) Record(ctx context.Context, s *domain.Submission) error {
	if s == nil || s.TransactionHash == "" {
		return storage.ErrInvalidInput
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO price_submissions (
			symbol, window_start, window_end, prices, transaction_hash,
			ledger, sequence, fee, confirmed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		s.Symbol, s.WindowStart, s.WindowEnd, s.Prices, s.TransactionHash,
		s.Ledger, s.Sequence, s.Fee, s.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol returns archived submissions for symbol ordered by window_start.
func (a *SubmissionArchive) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Submission, error) {
	rows, err := a.conn.Query(ctx, `
		SELECT symbol, window_start, window_end, prices, transaction_hash,
		       ledger, sequence, fee, confirmed_at
		FROM price_submissions FINAL
		WHERE symbol = ?
		ORDER BY window_start ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(
			&s.Symbol, &s.WindowStart, &s.WindowEnd, &s.Prices, &s.TransactionHash,
			&s.Ledger, &s.Sequence, &s.Fee, &s.ConfirmedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		result = append(result, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}

	return result, nil
}
