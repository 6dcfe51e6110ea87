package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	ms := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).UnixMilli()
	got, ok := ParseTime(strconv.FormatInt(ms, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != ms {
		t.Fatalf("unexpected millis %v", got.UnixMilli())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDayKey(t *testing.T) {
	d := time.Date(2026, 10, 5, 23, 0, 0, 0, time.UTC)
	if got := DayKey(d); got != "Mon Oct 05 2026" {
		t.Fatalf("unexpected day key %q", got)
	}
}

func TestISOTimestamp(t *testing.T) {
	d := time.Date(2026, 10, 5, 9, 30, 0, 0, time.FixedZone("IST", 19800))
	if got := ISOTimestamp(d); got != "2026-10-05T04:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	if got := ISODate(d); got != "2026-10-05" {
		t.Fatalf("unexpected date %q", got)
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		in     float64
		places int
		want   float64
	}{
		{2945.304, 2, 2945.3},
		{1.25, 1, 1.3},
		{-1.25, 1, -1.2},
		{0.456, 2, 0.46},
	}
	for _, c := range cases {
		if got := Round(c.in, c.places); got != c.want {
			t.Fatalf("Round(%v,%d)=%v want %v", c.in, c.places, got, c.want)
		}
	}
}

func TestToFixed(t *testing.T) {
	if got := ToFixed(0.2, 3); got != 0.2 {
		t.Fatalf("ToFixed(0.2)=%v", got)
	}
	if got := ToFixed(0.12345, 3); got != 0.123 {
		t.Fatalf("ToFixed(0.12345)=%v", got)
	}
}
