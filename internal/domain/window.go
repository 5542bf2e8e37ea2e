package domain

import "time"

// WindowBounds returns the fixed-size, midnight-aligned usage window
// [start, end) containing now. Windows tile each day starting at local
// midnight; a non-positive size falls back to a full day.
func WindowBounds(now time.Time, size time.Duration) (time.Time, time.Time) {
	if size <= 0 {
		size = 24 * time.Hour
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := midnight.Add(now.Sub(midnight) / size * size)

	return start, start.Add(size)
}
