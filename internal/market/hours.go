// Package market gates scanning on the US equity session.
package market

import "time"

// Status describes whether the market is open and why not.
type Status struct {
	Open    bool   `json:"open"`
	Reason  string `json:"reason"`
	Local   string `json:"local_time"`
	Weekday string `json:"weekday"`
}

var eastern = loadEastern()

func loadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// UTC keeps the monitor usable; gating is advisory anyway.
		return time.UTC
	}
	return loc
}

// IsOpen reports whether the regular US session (09:30-16:00 ET, weekdays)
// is in progress at t. Exchange holidays are not modeled.
func IsOpen(t time.Time) bool {
	et := t.In(eastern)

	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}

	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, eastern)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, eastern)

	return !et.Before(open) && et.Before(close)
}

// GetStatus returns the session state with a human-readable reason.
func GetStatus(t time.Time) Status {
	et := t.In(eastern)

	s := Status{
		Open:    IsOpen(t),
		Local:   et.Format("2006-01-02 03:04:05 PM ET"),
		Weekday: et.Weekday().String(),
	}

	switch {
	case s.Open:
		s.Reason = "market open"
	case et.Weekday() == time.Saturday || et.Weekday() == time.Sunday:
		s.Reason = "weekend"
	case et.Hour() < 9 || (et.Hour() == 9 && et.Minute() < 30):
		s.Reason = "pre-market (opens 09:30 ET)"
	default:
		s.Reason = "after-hours (opens 09:30 ET next trading day)"
	}
	return s
}
