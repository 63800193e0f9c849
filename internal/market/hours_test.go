package market

import (
	"testing"
	"time"
)

// 2026-09-01 is a Tuesday. Times below are expressed in UTC against EDT
// (UTC-4), which is in effect that date.
func TestIsOpenDuringSession(t *testing.T) {
	noon := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC) // 12:00 ET
	if !IsOpen(noon) {
		t.Fatalf("noon Tuesday should be open")
	}
}

func TestClosedBeforeBell(t *testing.T) {
	preOpen := time.Date(2026, 9, 1, 13, 29, 0, 0, time.UTC) // 09:29 ET
	if IsOpen(preOpen) {
		t.Fatalf("09:29 ET should be closed")
	}

	atOpen := time.Date(2026, 9, 1, 13, 30, 0, 0, time.UTC) // 09:30 ET
	if !IsOpen(atOpen) {
		t.Fatalf("09:30 ET exactly should be open")
	}
}

func TestClosedAtClose(t *testing.T) {
	lastMinute := time.Date(2026, 9, 1, 19, 59, 0, 0, time.UTC) // 15:59 ET
	if !IsOpen(lastMinute) {
		t.Fatalf("15:59 ET should be open")
	}

	atClose := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC) // 16:00 ET
	if IsOpen(atClose) {
		t.Fatalf("16:00 ET exactly should be closed")
	}
}

func TestClosedOnWeekend(t *testing.T) {
	saturday := time.Date(2026, 9, 5, 16, 0, 0, 0, time.UTC)
	if IsOpen(saturday) {
		t.Fatalf("Saturday should be closed")
	}
	sunday := time.Date(2026, 9, 6, 16, 0, 0, 0, time.UTC)
	if IsOpen(sunday) {
		t.Fatalf("Sunday should be closed")
	}
}

func TestStatusReasons(t *testing.T) {
	cases := []struct {
		when   time.Time
		reason string
		open   bool
	}{
		{time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC), "market open", true},
		{time.Date(2026, 9, 5, 16, 0, 0, 0, time.UTC), "weekend", false},
		{time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC), "pre-market (opens 09:30 ET)", false},
		{time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC), "after-hours (opens 09:30 ET next trading day)", false},
	}

	for _, tc := range cases {
		s := GetStatus(tc.when)
		if s.Open != tc.open || s.Reason != tc.reason {
			t.Fatalf("GetStatus(%v) = open=%v reason=%q, want open=%v reason=%q",
				tc.when, s.Open, s.Reason, tc.open, tc.reason)
		}
	}
}

func TestStatusCarriesWeekday(t *testing.T) {
	s := GetStatus(time.Date(2026, 9, 5, 16, 0, 0, 0, time.UTC))
	if s.Weekday != "Saturday" {
		t.Fatalf("expected Saturday, got %s", s.Weekday)
	}
}
