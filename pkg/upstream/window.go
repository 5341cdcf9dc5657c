package upstream

import (
	"fmt"
	"time"
)

// DateWindow is a bounded time range used to query the upstream API.
// From must not be after To.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// NewDateWindow creates a DateWindow, validating its ordering.
func NewDateWindow(from, to time.Time) (DateWindow, error) {
	if from.After(to) {
		return DateWindow{}, fmt.Errorf("invalid window: from %s is after to %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return DateWindow{From: from, To: to}, nil
}

// IsEmpty reports whether the window spans no time at all.
func (w DateWindow) IsEmpty() bool {
	return !w.From.Before(w.To)
}

// Chunks splits the window into contiguous, non-overlapping sub-windows of at
// most maxSpan each. Sub-window boundaries are inclusive; the next sub-window
// starts one second after the previous one ends. The chunks cover the original
// window exactly.
func (w DateWindow) Chunks(maxSpan time.Duration) []DateWindow {
	if w.From.After(w.To) {
		return nil
	}

	var chunks []DateWindow
	start := w.From
	for {
		end := start.Add(maxSpan)
		if !end.Before(w.To) {
			chunks = append(chunks, DateWindow{From: start, To: w.To})
			return chunks
		}
		chunks = append(chunks, DateWindow{From: start, To: end})
		start = end.Add(time.Second)
	}
}

// queryDates formats the window boundaries as the upstream's YYYY-MM-DD
// query parameters.
func (w DateWindow) queryDates() (string, string) {
	return w.From.UTC().Format("2006-01-02"), w.To.UTC().Format("2006-01-02")
}
