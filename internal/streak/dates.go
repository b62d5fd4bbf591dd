// Package streak derives consistency metrics (current streak, longest
// streak, missed days) from a set of calendar-day identifiers. All
// comparisons operate on YYYY-MM-DD identifiers, never raw timestamps, so
// timezone and DST shifts cannot skew day counts.
package streak

import (
	"regexp"
	"slices"
	"time"
)

const dayLayout = "2006-01-02"

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeDate converts a timestamp to the calendar-day identifier of its
// own location, discarding time-of-day.
func NormalizeDate(t time.Time) string {
	return t.Format(dayLayout)
}

// parseDay validates a day identifier and returns it as a UTC midnight.
// time.Parse rejects impossible dates like 2024-02-30.
func parseDay(s string) (time.Time, bool) {
	if !dayPattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsValidDay reports whether s is a well-formed, real calendar date.
func IsValidDay(s string) bool {
	_, ok := parseDay(s)
	return ok
}

// DateDifference returns the signed day count from a to b. Both identifiers
// are reconstructed at UTC midnight, so the division is exact regardless of
// DST transitions in the caller's zone. Invalid input yields 0.
func DateDifference(a, b string) int {
	da, okA := parseDay(a)
	db, okB := parseDay(b)
	if !okA || !okB {
		return 0
	}
	return int(db.Sub(da) / (24 * time.Hour))
}

// AddDays shifts a day identifier by n days (n may be negative).
func AddDays(day string, n int) string {
	t, ok := parseDay(day)
	if !ok {
		return day
	}
	return t.AddDate(0, 0, n).Format(dayLayout)
}

// SanitizeDates drops malformed entries, removes duplicates and sorts
// ascending. Every other function in this package assumes its input has been
// through here, so callers must sanitize raw or externally edited data first.
func SanitizeDates(dates []string) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if IsValidDay(d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
