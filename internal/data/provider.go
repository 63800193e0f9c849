package data

import (
	"errors"
	"time"
)

// Right distinguishes calls from puts. RightUnderlying is a synthetic
// marker used by the quote cache for underlying price snapshots.
type Right string

const (
	RightCall       Right = "C"
	RightPut        Right = "P"
	RightUnderlying Right = "U"
)

// ErrUnavailable reports that the upstream returned no usable data for a
// request. It is a normal condition during sparse market hours, not a
// transport failure; callers typically skip and continue.
var ErrUnavailable = errors.New("market data unavailable")

// Provider supplies market data for the roll pipeline.
//
// Implementations may be slow (seconds per call) and rate-limited; callers
// are expected to route quote lookups through the cache layer.
type Provider interface {
	// SpotPrice returns the underlying's current price.
	SpotPrice(symbol string) (float64, error)

	// Expiries returns available option expiries for the symbol as
	// YYYYMMDD strings in ascending order.
	Expiries(symbol string) ([]string, error)

	// Strikes returns available strikes for the expiry in ascending order.
	Strikes(symbol, expiry string) ([]float64, error)

	// OptionQuote returns a quote snapshot for one contract. Greeks may be
	// absent; a quote with no usable mark returns ErrUnavailable.
	OptionQuote(symbol, expiry string, strike float64, right Right) (QuoteSnapshot, error)

	// Positions returns the account's open short call positions.
	Positions() ([]Position, error)
}

// QuoteSnapshot is one observed option quote. Greeks are pointers because
// the upstream frequently has prices before model Greeks populate.
type QuoteSnapshot struct {
	Strike float64  `json:"strike"`
	Expiry string   `json:"expiry"` // YYYYMMDD
	Bid    float64  `json:"bid,omitempty"`
	Ask    float64  `json:"ask,omitempty"`
	Mark   float64  `json:"mark"`
	Delta  *float64 `json:"delta,omitempty"`
	Gamma  *float64 `json:"gamma,omitempty"`
	Theta  *float64 `json:"theta,omitempty"`
	IV     *float64 `json:"iv,omitempty"`
	DTE    int      `json:"dte"`
}

// HasDelta reports whether the snapshot carries a usable delta.
func (q QuoteSnapshot) HasDelta() bool { return q.Delta != nil }

// Position is one open short call position from the account.
type Position struct {
	Symbol       string   `json:"symbol"`
	Strike       float64  `json:"strike"`
	Expiry       string   `json:"expiry"` // YYYYMMDD
	Contracts    int      `json:"contracts"`
	EntryCredit  float64  `json:"entry_credit"`
	CurrentMark  *float64 `json:"current_mark,omitempty"`
	CurrentDelta *float64 `json:"current_delta,omitempty"`
}

// DTE returns the position's days to expiration relative to today (UTC).
func (p Position) DTE(today time.Time) int {
	return DaysToExpiry(p.Expiry, today)
}

// ParseExpiry parses a YYYYMMDD expiry string.
func ParseExpiry(expiry string) (time.Time, error) {
	return time.Parse("20060102", expiry)
}

// DaysToExpiry computes calendar days from today to the expiry date.
// Malformed expiries yield 0; callers validate expiries upstream.
func DaysToExpiry(expiry string, today time.Time) int {
	dt, err := ParseExpiry(expiry)
	if err != nil {
		return 0
	}
	y, m, d := today.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(dt.Sub(midnight).Hours() / 24)
}

// SafeMark derives a usable mark price from raw quote fields.
//
// Preference order: bid/ask midpoint when 0 < bid <= ask, then bid, ask,
// last, close. Returns false when nothing usable is present.
func SafeMark(bid, ask, last, close float64) (float64, bool) {
	if bid > 0 && ask >= bid {
		return (bid + ask) / 2, true
	}
	if bid > 0 {
		return bid, true
	}
	if ask > 0 {
		return ask, true
	}
	if last > 0 {
		return last, true
	}
	if close > 0 {
		return close, true
	}
	return 0, false
}
