// Package submission moves unique price rows onto the ledger, one window
// group at a time, in window order.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"price-relay/internal/domain"
	"price-relay/internal/observability"
	"price-relay/internal/storage"
)

// DefaultBatchSize is the number of rows polled per tick.
const DefaultBatchSize = 100

// ErrGroupFailed is returned by Tick when a group could not be submitted.
var ErrGroupFailed = errors.New("window group submission failed")

// TickResult summarises one engine tick.
type TickResult struct {
	TickID      string
	RowsPolled  int
	Groups      int
	Submitted   int
	RowsCovered int
	Failed      *domain.WindowGroup // first failed group, nil if none
	CursorStart int64
	CursorEnd   int64
}

// Engine polls unsubmitted rows and submits them group by group.
// Groups are handled by a single goroutine: a group is never started before
// the previous one reached a terminal outcome.
type Engine struct {
	store     storage.UniquePriceStore
	submitter GroupSubmitter
	cursor    *Cursor
	batchSize int
	logger    *zap.Logger
}

// NewEngine creates an engine starting from cursor.
func NewEngine(store storage.UniquePriceStore, submitter GroupSubmitter, cursor *Cursor, batchSize int, logger *zap.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	observability.UpdateSubmissionCursor(cursor.Value())
	return &Engine{
		store:     store,
		submitter: submitter,
		cursor:    cursor,
		batchSize: batchSize,
		logger:    logger.Named("engine"),
	}
}

// Cursor returns the current cursor position.
func (e *Engine) Cursor() int64 {
	return e.cursor.Value()
}

// Tick polls up to batchSize rows after the cursor, groups them by
// (symbol, window_start) and submits the groups in order. The cursor advances
// past each confirmed group; the first failure ends the tick.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	res := &TickResult{
		TickID:      uuid.NewString(),
		CursorStart: e.cursor.Value(),
	}
	res.CursorEnd = res.CursorStart
	log := e.logger.With(zap.String("tick_id", res.TickID))

	rows, err := e.store.ListAfter(ctx, res.CursorStart, e.batchSize)
	if err != nil {
		return res, fmt.Errorf("list rows after %d: %w", res.CursorStart, err)
	}
	res.RowsPolled = len(rows)
	if len(rows) == 0 {
		return res, nil
	}

	groups := domain.GroupByWindow(rows)
	res.Groups = len(groups)

	for _, g := range groups {
		ok := e.submitter.SubmitGroup(ctx, g)
		observability.RecordGroupSubmitted(ok, g.RowCount)
		if !ok {
			res.Failed = g
			break
		}

		e.cursor.Advance(g.MaxID)
		res.Submitted++
		res.RowsCovered += g.RowCount
	}

	res.CursorEnd = e.cursor.Value()
	observability.UpdateSubmissionCursor(res.CursorEnd)

	fields := []zap.Field{
		zap.Int("rows_polled", res.RowsPolled),
		zap.Int("groups", res.Groups),
		zap.Int("submitted", res.Submitted),
		zap.Int("rows_covered", res.RowsCovered),
		zap.Int64("cursor_start", res.CursorStart),
		zap.Int64("cursor_end", res.CursorEnd),
	}
	if res.Failed != nil {
		log.Warn("submission tick stopped at failed group",
			append(fields,
				zap.String("failed_symbol", res.Failed.Symbol),
				zap.Int64("failed_window_start", res.Failed.WindowStart),
				zap.Int("skipped_groups", res.Groups-res.Submitted-1),
			)...,
		)
		return res, fmt.Errorf("%w: %s@%d", ErrGroupFailed, res.Failed.Symbol, res.Failed.WindowStart)
	}

	log.Info("submission tick complete", fields...)
	return res, nil
}
