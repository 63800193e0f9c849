package roll

import (
	"math"
	"sort"

	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/logger"
)

// QuoteFetcher is the single-method capability the matcher scans through.
// Implementations are expected to consult the quote cache before the live
// upstream; the matcher itself never issues two fetches for the same
// contract within one scan because the sampled strike set is unique.
type QuoteFetcher interface {
	FetchQuote(symbol, expiry string, strike float64, right data.Right) (data.QuoteSnapshot, error)
}

// MatchParams tunes one delta-matching scan.
type MatchParams struct {
	// TargetDelta is the signed delta to search for: positive for calls,
	// negative for puts.
	TargetDelta float64

	// Tolerance is the symmetric window around TargetDelta inside which a
	// quote counts as a good match.
	Tolerance float64

	// GoodMatches is the early-exit threshold: once this many quotes fall
	// inside the tolerance window the scan stops issuing fetches.
	GoodMatches int

	// MaxResults caps the returned, distance-sorted quote list.
	MaxResults int
}

func (p MatchParams) withDefaults() MatchParams {
	if p.Tolerance <= 0 {
		p.Tolerance = 0.05
	}
	if p.GoodMatches <= 0 {
		p.GoodMatches = 8
	}
	if p.MaxResults <= 0 {
		p.MaxResults = 5
	}
	return p
}

// MatchByDelta fetches quotes for sampled strikes in band order and
// returns up to MaxResults quotes sorted by delta proximity to the target.
//
// Strikes whose fetch fails or yields no delta are skipped silently and
// not retried within the scan. Every usable quote is accumulated; once
// GoodMatches of them sit within the tolerance window the scan terminates
// early, leaving the remaining strikes unfetched. That early exit is the
// main latency lever: each unfetched strike is an upstream round trip that
// never happens. The visit order is exactly the sample order, so the exit
// point is reproducible given a deterministic fetcher.
//
// Zero usable quotes is a valid outcome and returns an empty slice.
func MatchByDelta(fetcher QuoteFetcher, symbol, expiry string, sample []float64, right data.Right, p MatchParams) []data.QuoteSnapshot {
	p = p.withDefaults()

	var quotes []data.QuoteSnapshot
	good := 0

	for _, strike := range sample {
		if good >= p.GoodMatches {
			logger.Debugf("event=early_exit symbol=%s expiry=%s good=%d fetched=%d sampled=%d",
				symbol, expiry, good, len(quotes), len(sample))
			break
		}

		snap, err := fetcher.FetchQuote(symbol, expiry, strike, right)
		if err != nil {
			logger.Tracef("event=quote_skip symbol=%s strike=%.2f err=%v", symbol, strike, err)
			continue
		}
		if !snap.HasDelta() {
			logger.Tracef("event=quote_no_delta symbol=%s strike=%.2f", symbol, strike)
			continue
		}

		quotes = append(quotes, snap)
		if deltaDistance(snap, p.TargetDelta) <= p.Tolerance {
			good++
		}
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return deltaDistance(quotes[i], p.TargetDelta) < deltaDistance(quotes[j], p.TargetDelta)
	})

	if len(quotes) > p.MaxResults {
		quotes = quotes[:p.MaxResults]
	}
	return quotes
}

// deltaDistance is the proximity of a quote's delta to the signed target.
// Both carry the side's sign (calls positive, puts negative), so a plain
// absolute difference compares like with like.
func deltaDistance(q data.QuoteSnapshot, target float64) float64 {
	if q.Delta == nil {
		return math.Inf(1)
	}
	return math.Abs(*q.Delta - target)
}
