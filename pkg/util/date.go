package util

import (
	"strconv"
	"time"
)

// DateLayout is the canonical day key used for persisted records.
const DateLayout = "2006-01-02"

// Shanghai is the exchange timezone for all session math.
var Shanghai = mustLoad("Asia/Shanghai")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// ParseTime tries RFC3339, the date layout, and unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(DateLayout, s, Shanghai); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
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

// DayKey formats t as the persisted record date key in exchange time.
func DayKey(t time.Time) string {
	return t.In(Shanghai).Format(DateLayout)
}

// IsTradingDay reports whether t falls on a weekday. Exchange holidays are
// not modeled; a holiday simply produces a run with exhausted feeds.
func IsTradingDay(t time.Time) bool {
	wd := t.In(Shanghai).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// SessionProgress returns the fraction of the A-share trading day elapsed
// at t: 09:30-11:30 and 13:00-15:00, 240 trading minutes total.
// 0 means pre-open, 1 means closed, lunch break counts the morning half.
func SessionProgress(t time.Time) float64 {
	const (
		openAM  = 9*60 + 30
		closeAM = 11*60 + 30
		openPM  = 13 * 60
		closePM = 15 * 60
		total   = 240.0
	)
	local := t.In(Shanghai)
	m := local.Hour()*60 + local.Minute()

	switch {
	case m < openAM:
		return 0
	case m <= closeAM:
		elapsed := float64(m - openAM)
		if elapsed < 1 {
			return 0.001
		}
		return elapsed / total
	case m < openPM:
		return 120.0 / total
	case m <= closePM:
		return (120.0 + float64(m-openPM)) / total
	default:
		return 1
	}
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
