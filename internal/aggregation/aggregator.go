package aggregation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"price-relay/internal/domain"
)

// DefaultMaxCatchUp bounds how many missed windows one tick extracts.
const DefaultMaxCatchUp = 360

// Aggregator runs the extractor over contiguous wall-clock windows.
// It remembers the end of the last extracted window; a delayed tick extracts
// every full window it missed, up to maxCatchUp.
type Aggregator struct {
	extractor  *Extractor
	symbol     string
	window     time.Duration
	maxCatchUp int
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex
	lastEnd int64
}

// AggregatorOption configures Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock sets the wall clock.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithMaxCatchUp sets how many missed windows a single tick may extract.
func WithMaxCatchUp(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.maxCatchUp = n
	}
}

// NewAggregator creates an aggregator for one symbol.
func NewAggregator(extractor *Extractor, symbol string, window time.Duration, logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		extractor:  extractor,
		symbol:     symbol,
		window:     window,
		maxCatchUp: DefaultMaxCatchUp,
		now:        time.Now,
		logger:     logger.Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LastEnd returns the end of the last extracted window, 0 before the first tick.
func (a *Aggregator) LastEnd() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastEnd
}

// Tick extracts the windows closed since the previous tick. Windows are
// aligned to the window length and end at or before now. On error the
// failed window is retried on the next tick.
func (a *Aggregator) Tick(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.window <= 0 {
		return errors.New("window length must be positive")
	}

	end := domain.AlignDown(a.now().UnixMilli(), a.window)
	windows := domain.WindowsBetween(a.lastEnd, end, a.window)
	if len(windows) == 0 {
		return nil
	}

	if a.maxCatchUp > 0 && len(windows) > a.maxCatchUp {
		skipped := windows[:len(windows)-a.maxCatchUp]
		a.logger.Warn("skipping windows beyond catch-up limit",
			zap.Int("skipped", len(skipped)),
			zap.Int64("from", skipped[0].Start),
			zap.Int64("to", skipped[len(skipped)-1].End),
		)
		windows = windows[len(windows)-a.maxCatchUp:]
	}

	for _, w := range windows {
		if _, _, err := a.extractor.Extract(ctx, a.symbol, w.Start, w.End); err != nil {
			return err
		}
		a.lastEnd = w.End
	}
	return nil
}
