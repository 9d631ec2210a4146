package domain

import "time"

// Window is a half-open interval [Start, End) in Unix milliseconds.
type Window struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts < w.End
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return time.Duration(w.End-w.Start) * time.Millisecond
}

// WindowsBetween returns the contiguous windows of the given length that fit
// between lastEnd and end. Both bounds must be aligned to the length.
// If lastEnd is zero only the window ending at end is returned.
func WindowsBetween(lastEnd, end int64, length time.Duration) []Window {
	step := length.Milliseconds()
	if step <= 0 || end <= lastEnd {
		return nil
	}
	if lastEnd == 0 {
		return []Window{{Start: end - step, End: end}}
	}

	var windows []Window
	for start := lastEnd; start+step <= end; start += step {
		windows = append(windows, Window{Start: start, End: start + step})
	}
	return windows
}

// AlignDown truncates a millisecond timestamp to a multiple of length.
func AlignDown(ts int64, length time.Duration) int64 {
	step := length.Milliseconds()
	if step <= 0 {
		return ts
	}
	return ts - ts%step
}
