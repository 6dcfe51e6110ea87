package util

import (
	"strconv"
	"time"
)

const (
	// DayLayout matches the "Wed Oct 15 2026" form used for daily seeds.
	DayLayout = "Mon Jan 02 2006"
	// ISOLayout is a millisecond UTC timestamp, e.g. 2026-10-15T09:30:00.000Z.
	ISOLayout = "2006-01-02T15:04:05.000Z"

	DateLayout = "2006-01-02"
)

// DayKey returns the calendar day of t in DayLayout.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ISOTimestamp formats t in UTC with millisecond precision.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ISODate formats the UTC calendar date of t.
func ISODate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
