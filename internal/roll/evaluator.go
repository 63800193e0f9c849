package roll

import (
	"math"
	"sort"

	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/logger"
)

// RollKind classifies a candidate relative to the current strike.
//
// Convention: "roll up" always means the strike moves further out of the
// money, which lowers assignment risk for the side in question: a higher
// strike for calls, a lower strike for puts. "Roll down" is the opposite
// move, toward (or through) the money. The dollar distance between the
// strikes is carried separately in StrikeOffset.
type RollKind string

const (
	SameStrike RollKind = "same_strike"
	RollUp     RollKind = "roll_up"
	RollDown   RollKind = "roll_down"
)

// sameStrikeBand is the dollar tolerance inside which two strikes count as
// the same strike.
const sameStrikeBand = 1.0

// RollCandidate is one evaluated, profitable roll transaction.
type RollCandidate struct {
	Kind         RollKind           `json:"kind"`
	StrikeOffset float64            `json:"strike_offset,omitempty"` // dollars, always >= 0
	Quote        data.QuoteSnapshot `json:"quote"`

	// NetCredit is the premium collected minus the cost to close the
	// current position. Candidates only exist with NetCredit > 0.
	NetCredit float64 `json:"net_credit"`

	// NetDelta is newDelta - currentDelta, present only when both sides
	// reported a delta.
	NetDelta *float64 `json:"net_delta,omitempty"`

	// PremiumEfficiency is NetCredit / newPremium * 100; omitted when the
	// new premium is zero.
	PremiumEfficiency *float64 `json:"premium_efficiency,omitempty"`

	// CapitalROI is NetCredit / currentStrike * 100. The denominator is
	// the *current* position's strike for every candidate, so ROI figures
	// of one position's candidates compare directly.
	CapitalROI float64 `json:"capital_roi"`

	// AnnualizedROI is CapitalROI scaled by 365/newDTE. Candidates with
	// DTE <= 0 are excluded rather than divided by zero.
	AnnualizedROI float64 `json:"annualized_roi"`
}

// AnnualizeROI scales a capital ROI by the 365/DTE factor. Kept as the
// single definition so stored values can be recomputed bit-exactly.
func AnnualizeROI(capitalROI float64, dte int) float64 {
	return capitalROI * (365 / float64(dte))
}

// EvaluateRolls turns candidate quotes plus the current position into
// ranked roll candidates.
//
// Quotes are processed in input order and deduplicated by strike (within
// $1), so callers list the same-strike quote first to keep its explicit
// classification. Candidates are discarded when:
//   - net credit is not positive (only profitable rolls surface)
//   - the quote's DTE is not positive (annualization undefined)
//
// Ranking is capital ROI descending, ties broken by premium efficiency
// descending.
func EvaluateRolls(pos data.Position, quotes []data.QuoteSnapshot, buybackCost float64, right data.Right) []RollCandidate {
	if pos.Strike <= 0 {
		logger.Errorf("event=bad_position symbol=%s strike=%.2f", pos.Symbol, pos.Strike)
		return nil
	}

	var out []RollCandidate
	for _, q := range quotes {
		if q.DTE <= 0 {
			logger.Tracef("event=candidate_excluded reason=zero_dte strike=%.2f", q.Strike)
			continue
		}

		netCredit := q.Mark - buybackCost
		if netCredit <= 0 {
			logger.Tracef("event=candidate_excluded reason=no_credit strike=%.2f net=%.2f", q.Strike, netCredit)
			continue
		}

		if dup(out, q.Strike) {
			continue
		}

		kind, offset := classify(right, q.Strike, pos.Strike)

		cand := RollCandidate{
			Kind:         kind,
			StrikeOffset: offset,
			Quote:        q,
			NetCredit:    netCredit,
			CapitalROI:   netCredit / pos.Strike * 100,
		}
		cand.AnnualizedROI = AnnualizeROI(cand.CapitalROI, q.DTE)

		if q.Mark > 0 {
			pe := netCredit / q.Mark * 100
			cand.PremiumEfficiency = &pe
		}
		if pos.CurrentDelta != nil && q.Delta != nil {
			nd := *q.Delta - *pos.CurrentDelta
			cand.NetDelta = &nd
		}

		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CapitalROI != out[j].CapitalROI {
			return out[i].CapitalROI > out[j].CapitalROI
		}
		return peOrZero(out[i]) > peOrZero(out[j])
	})

	return out
}

func classify(right data.Right, candStrike, curStrike float64) (RollKind, float64) {
	diff := candStrike - curStrike
	if math.Abs(diff) < sameStrikeBand {
		return SameStrike, 0
	}

	outward := diff > 0
	if right == data.RightPut {
		outward = diff < 0
	}

	if outward {
		return RollUp, math.Abs(diff)
	}
	return RollDown, math.Abs(diff)
}

func dup(cands []RollCandidate, strike float64) bool {
	for _, c := range cands {
		if math.Abs(c.Quote.Strike-strike) < sameStrikeBand {
			return true
		}
	}
	return false
}

func peOrZero(c RollCandidate) float64 {
	if c.PremiumEfficiency == nil {
		return 0
	}
	return *c.PremiumEfficiency
}
