package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateOf truncates a timestamp to its UTC calendar date. All calendar-date
// coercion in the system goes through DateOf and ParseDate so that prices,
// articles and feature rows agree on what "the same day" means.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date. Timestamps are accepted and truncated to
// their date component.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseTimestamp parses an article publication timestamp. It accepts RFC 3339
// and the compact Alpha Vantage form (20240131T123000).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "20060102T150405", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := ParseDate(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized format", s)
}
