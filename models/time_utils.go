package models

import "time"

// FormatTimestamp renders t as ISO-8601 in UTC, the only format emitted on the wire
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NowUTC is the clock used when a caller does not supply one
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ElapsedMillis returns the time since start in fractional milliseconds
func ElapsedMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
