package util

import "time"

// PreviousClockHour returns the bounds [start, end) of the last complete
// clock-aligned hour before now.
func PreviousClockHour(now time.Time) (time.Time, time.Time) {
	end := now.Truncate(time.Hour)
	return end.Add(-time.Hour), end
}

// PreviousDay returns the bounds [start, end) of the last complete
// UTC day before now.
func PreviousDay(now time.Time) (time.Time, time.Time) {
	end := now.UTC().Truncate(24 * time.Hour)
	return end.Add(-24 * time.Hour), end
}

// HourKey identifies a clock hour; used to detect hour rollover.
func HourKey(t time.Time) int64 {
	return t.Unix() / 3600
}
