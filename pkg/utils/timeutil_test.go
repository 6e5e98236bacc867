package utils

import (
	"testing"
	"time"
)

func TestMarketStatusAt(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"weekday mid-session", time.Date(2026, 1, 7, 11, 0, 0, 0, IST), "OPEN"},
		{"weekday before open", time.Date(2026, 1, 7, 8, 0, 0, 0, IST), "PRE-MARKET"},
		{"weekday after close", time.Date(2026, 1, 7, 16, 0, 0, 0, IST), "CLOSED"},
		{"saturday", time.Date(2026, 1, 10, 11, 0, 0, 0, IST), "CLOSED (Weekend)"},
		{"sunday", time.Date(2026, 1, 11, 11, 0, 0, 0, IST), "CLOSED (Weekend)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarketStatusAt(tt.t); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDayBoundsUTC(t *testing.T) {
	start, end, err := DayBoundsUTC("2026-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("got [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}

	if _, _, err := DayBoundsUTC("15-03-2026"); err == nil {
		t.Error("malformed date should return an error")
	}
}

func TestFormatDateUTC(t *testing.T) {
	ts := time.Date(2026, 3, 15, 23, 50, 0, 0, IST) // 18:20 UTC same day
	if got := FormatDateUTC(ts); got != "2026-03-15" {
		t.Errorf("got %q, want 2026-03-15", got)
	}
}
