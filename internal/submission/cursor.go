package submission

import (
	"context"
	"fmt"
	"sync"

	"price-relay/internal/storage"
)

// Cursor is the highest unique price row id fully processed by the engine.
// It only moves forward.
type Cursor struct {
	mu    sync.Mutex
	value int64
}

// NewCursor creates a cursor at the given position.
func NewCursor(value int64) *Cursor {
	return &Cursor{value: value}
}

// Value returns the current position.
func (c *Cursor) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Advance moves the cursor to id if id is ahead of it.
// Returns true if the cursor moved.
func (c *Cursor) Advance(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id <= c.value {
		return false
	}
	c.value = id
	return true
}

// RecomputeCursor derives the cursor from durable state: the highest row id
// already carrying a transaction hash. When no row has been submitted the
// cursor starts at 0, or at the current highest id if skipBacklog is set.
func RecomputeCursor(ctx context.Context, store storage.UniquePriceStore, skipBacklog bool) (int64, error) {
	id, ok, err := store.MaxSubmittedID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max submitted id: %w", err)
	}
	if ok {
		return id, nil
	}

	if !skipBacklog {
		return 0, nil
	}

	id, err = store.MaxID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max id: %w", err)
	}
	return id, nil
}
