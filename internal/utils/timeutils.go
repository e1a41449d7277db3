package utils

import "time"

// MinuteBucket returns the minute-granularity bucket for a timestamp, used as
// the time-series key suffix for persisted metric samples.
func MinuteBucket(t time.Time) int64 {
	return t.Unix() / 60
}

// HoursSince returns the elapsed hours between start and now, floored at one
// minute so rate computations over very young entries stay finite.
func HoursSince(start, now time.Time) float64 {
	elapsed := now.Sub(start)
	if elapsed < time.Minute {
		elapsed = time.Minute
	}
	return elapsed.Hours()
}
