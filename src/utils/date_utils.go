package utils

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDateFormat is the ISO date used for storage and the API.
const DefaultDateFormat = "2006-01-02"

var altDateFormats = []string{
	DefaultDateFormat,
	"02-01-2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ParseDate parses a date string using the default format.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(DefaultDateFormat, strings.TrimSpace(dateStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected %s): %w", dateStr, DefaultDateFormat, err)
	}
	return t, nil
}

// ParseFlexibleDate accepts the formats brokers commonly export and truncates to the day.
func ParseFlexibleDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	for _, layout := range altDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
}

// FormatDate renders a date in DefaultDateFormat.
func FormatDate(t time.Time) string {
	return t.Format(DefaultDateFormat)
}

// FormatNullableDate returns nil for a nil or zero time, so it can be bound as SQL NULL.
func FormatNullableDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(DefaultDateFormat)
}

// ParseNullableDate is the inverse of FormatNullableDate.
func ParseNullableDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseFlexibleDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
