package utils

import (
	"strings"
	"time"
)

// DMYLayout is the canonical report date format (DD-MM-YYYY).
const DMYLayout = "02-01-2006"

const (
	ymdSlashLayout = "2006/1/2"
	dmyDashLayout  = "2-1-2006"
)

// NormalizeDate converts a report date to DD-MM-YYYY. It never fails:
// YYYY/MM/DD is re-emitted as DD-MM-YYYY, a valid DD-MM-YYYY is returned as is,
// anything else becomes today's date.
func NormalizeDate(s string) string {
	return NormalizeDateAt(s, time.Now())
}

// NormalizeDateAt is NormalizeDate with an explicit clock.
func NormalizeDateAt(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(ymdSlashLayout, s); err == nil {
		return t.Format(DMYLayout)
	}
	if IsDMY(s) {
		return s
	}
	return now.Format(DMYLayout)
}

// IsDMY reports whether s is a valid day-month-year date with dash separators.
func IsDMY(s string) bool {
	_, err := time.Parse(dmyDashLayout, s)
	return err == nil
}

// IsYMDSlash reports whether s is a valid year/month/day date.
func IsYMDSlash(s string) bool {
	_, err := time.Parse(ymdSlashLayout, s)
	return err == nil
}

// ParseDMY parses a normalized report date into a UTC midnight time.
func ParseDMY(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dmyDashLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// DateOnly strips the clock part to match DATE semantics.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
