package memory

import "time"

// Clock returns the current time. Stores use it to stamp created_at so
// retention can be tested deterministically.
type Clock func() time.Time

func nowMillis(c Clock) int64 {
	if c == nil {
		return time.Now().UnixMilli()
	}
	return c().UnixMilli()
}
