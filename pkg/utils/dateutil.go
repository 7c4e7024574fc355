package utils

import (
	"fmt"
	"time"
)

// CompactDate is the YYYYMMDD layout used at the run-config boundary.
const CompactDate = "20060102"

// ParseCompactDate parses a YYYYMMDD string into a UTC midnight time.
func ParseCompactDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(CompactDate, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYYMMDD): %w", s, err)
	}
	return t, nil
}

// FormatCompactDate renders t as YYYYMMDD.
func FormatCompactDate(t time.Time) string {
	return t.Format(CompactDate)
}

// Midnight truncates t to UTC midnight so bar dates compare exactly.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
