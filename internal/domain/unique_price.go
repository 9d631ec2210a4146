package domain

// UniquePriceRow is one distinct price observed for a symbol within a window.
// Corresponds to unique_prices table in PostgreSQL.
//
// TransactionHash is nil until the window has been confirmed on the ledger and
// is only ever set once.
type UniquePriceRow struct {
	ID              int64 // BIGSERIAL, assigned by storage
	Symbol          string
	Price           string
	WindowStart     int64 // inclusive, Unix milliseconds
	WindowEnd       int64 // exclusive, Unix milliseconds
	TransactionHash *string
	CreatedAt       int64 // record creation timestamp (ms)
}

// Submitted reports whether the row carries a ledger transaction hash.
func (r *UniquePriceRow) Submitted() bool {
	return r.TransactionHash != nil && *r.TransactionHash != ""
}

// WindowGroup is the in-memory unit of submission: all rows sharing
// (symbol, window_start) within one polling pass.
type WindowGroup struct {
	Symbol      string
	WindowStart int64
	WindowEnd   int64
	Prices      []string // in row order
	MaxID       int64
	RowCount    int
}

// GroupByWindow partitions rows into groups keyed by (symbol, window_start),
// preserving the order in which each group is first encountered.
func GroupByWindow(rows []*UniquePriceRow) []*WindowGroup {
	type key struct {
		symbol      string
		windowStart int64
	}

	index := make(map[key]*WindowGroup)
	var groups []*WindowGroup

	for _, r := range rows {
		k := key{r.Symbol, r.WindowStart}
		g, ok := index[k]
		if !ok {
			g = &WindowGroup{
				Symbol:      r.Symbol,
				WindowStart: r.WindowStart,
				WindowEnd:   r.WindowEnd,
			}
			index[k] = g
			groups = append(groups, g)
		}
		g.Prices = append(g.Prices, r.Price)
		g.RowCount++
		if r.ID > g.MaxID {
			g.MaxID = r.ID
		}
	}

	return groups
}
