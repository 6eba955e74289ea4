package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2025-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDayKey(t *testing.T) {
	got, ok := ParseTime("2025-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if DayKey(got) != "2025-10-10" {
		t.Fatalf("unexpected day key %q", DayKey(got))
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2025, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestSessionProgress(t *testing.T) {
	cases := []struct {
		hour, min int
		want      float64
	}{
		{9, 0, 0},        // pre-open
		{10, 30, 0.25},   // one trading hour in
		{12, 0, 0.5},     // lunch break holds the morning half
		{14, 0, 0.75},    // afternoon session
		{15, 30, 1},      // closed
	}
	for _, c := range cases {
		at := time.Date(2025, 10, 10, c.hour, c.min, 0, 0, Shanghai)
		got := SessionProgress(at)
		if got < c.want-0.01 || got > c.want+0.01 {
			t.Fatalf("progress at %02d:%02d = %v, want %v", c.hour, c.min, got, c.want)
		}
	}
}

func TestIsTradingDay(t *testing.T) {
	sat := time.Date(2025, 10, 11, 10, 0, 0, 0, Shanghai)
	if IsTradingDay(sat) {
		t.Fatalf("saturday should not be a trading day")
	}
	fri := time.Date(2025, 10, 10, 10, 0, 0, 0, Shanghai)
	if !IsTradingDay(fri) {
		t.Fatalf("friday should be a trading day")
	}
}
