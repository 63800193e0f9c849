// Package roll contains the strike-selection and roll-evaluation pipeline
// for short option positions.
//
// Responsibilities:
//   - Resolve a target roll expiry inside a DTE window
//   - Sample candidate strikes in a delta-informed band around spot
//   - Match sampled strikes against a target delta with early exit
//   - Turn matched quotes into ranked, profitability-filtered roll
//     candidates
//
// Design notes:
//   - The pipeline is deterministic given inputs and fetcher behavior
//   - Quote access goes through a single-method capability so tests can
//     substitute synthetic fetchers
//   - Errors are typed where useful and wrapped for caller inspection
package roll

import (
	"errors"
	"sort"
	"time"

	"github.com/contactkeval/roll-monitor/internal/data"
)

// ErrNoSuitableExpiry reports that no available expiry satisfies the DTE
// window and target-date constraints. It is a routine per-position outcome,
// not a data-fetch failure.
var ErrNoSuitableExpiry = errors.New("no suitable expiry in DTE window")

// ResolveRollExpiry picks the expiry to roll into.
//
// The target date is the current expiry pushed forward by offsetDays
// (typically one week). Candidates are expiries whose DTE from today falls
// in [minDTE, maxDTE] and whose date is not before the target: a roll
// never shortens duration past the target. Among candidates the one
// closest to the target date wins; ties go to the earlier expiry.
func ResolveRollExpiry(expiries []string, currentExpiry string, offsetDays, minDTE, maxDTE int, today time.Time) (string, error) {
	current, err := data.ParseExpiry(currentExpiry)
	if err != nil {
		return "", err
	}
	target := current.AddDate(0, 0, offsetDays)

	best := ""
	bestDist := 0
	for _, e := range expiries {
		dt, err := data.ParseExpiry(e)
		if err != nil {
			continue
		}

		dte := data.DaysToExpiry(e, today)
		if dte < minDTE || dte > maxDTE {
			continue
		}
		if dt.Before(target) {
			continue
		}

		dist := int(dt.Sub(target).Hours() / 24)
		if dist < 0 {
			dist = -dist
		}
		if best == "" || dist < bestDist {
			best = e
			bestDist = dist
		}
	}

	if best == "" {
		return "", ErrNoSuitableExpiry
	}
	return best, nil
}

// sortedCopy returns strikes sorted ascending without mutating the input.
func sortedCopy(strikes []float64) []float64 {
	out := append([]float64(nil), strikes...)
	sort.Float64s(out)
	return out
}
