package claims

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	yearFirstRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dayFirstRe  = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	nonNumberRe = regexp.MustCompile(`[^0-9.\-]`)
)

// dateLayouts are tried in order once the raw value has been rewritten
// into year-first form (or passed through untouched).
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate converts a raw date string into a UTC calendar day. Timestamps
// carrying an offset are moved to UTC before the day is taken.
//
// A value containing a YYYY-MM-DD run is parsed whole. A value containing a
// DD/MM/YYYY run has its "/"-separated segments reversed and joined with "-"
// first. Anything else is parsed as given. ok is false for blank input and
// for anything that is not a real calendar date.
func ParseDate(raw string) (time.Time, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return time.Time{}, false
	}
	candidate := cleaned
	if !yearFirstRe.MatchString(cleaned) && dayFirstRe.MatchString(cleaned) {
		parts := strings.Split(cleaned, "/")
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
		candidate = strings.Join(parts, "-")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return Day(t.UTC()), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the rounded whole-day difference a-b. It is positive
// when a is after b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(a.Sub(b).Hours() / 24))
}

// WithinDays reports whether date is known and falls between from and
// daysAhead days after it, inclusive at both ends.
func WithinDays(date time.Time, ok bool, from time.Time, daysAhead int) bool {
	if !ok {
		return false
	}
	diff := DaysBetween(date, from)
	return diff >= 0 && diff <= daysAhead
}

// ToNumber strips everything except digits, '.' and '-' and parses what is
// left. Unparseable input yields 0.
func ToNumber(raw string) float64 {
	cleaned := nonNumberRe.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
