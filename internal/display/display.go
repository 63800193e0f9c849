// Package display renders scan results as terminal tables.
package display

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/contactkeval/roll-monitor/internal/cache"
	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/roll"
)

// KindLabel formats a candidate's classification for humans, encoding the
// dollar offset for non-same-strike rolls.
func KindLabel(c roll.RollCandidate) string {
	switch c.Kind {
	case roll.RollUp:
		return fmt.Sprintf("Roll Up (+$%.0f)", c.StrikeOffset)
	case roll.RollDown:
		return fmt.Sprintf("Roll Down (-$%.0f)", c.StrikeOffset)
	default:
		return "Same Strike"
	}
}

// PositionsSummary prints the account book as one table.
func PositionsSummary(w io.Writer, positions []data.Position, today time.Time) {
	if len(positions) == 0 {
		fmt.Fprintln(w, "No positions.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTRIKE\tEXPIRY\tDTE\tQTY\tENTRY\tMARK\tDELTA")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t$%.2f\t%s\t%d\t%d\t%.2f\t%s\t%s\n",
			p.Symbol, p.Strike, p.Expiry, p.DTE(today), p.Contracts,
			p.EntryCredit, fmtPtr(p.CurrentMark, "%.2f"), fmtPtr(p.CurrentDelta, "%.3f"))
	}
	tw.Flush()
}

// Report prints one position's scan outcome, including the ranked roll
// table when candidates exist.
func Report(w io.Writer, r roll.Report) {
	head := fmt.Sprintf("%s $%.2f exp %s (%d DTE)", r.Position.Symbol, r.Position.Strike, r.Position.Expiry, r.CurrentDTE)

	switch r.Outcome {
	case roll.OutcomeNotReady:
		fmt.Fprintf(w, "  %s - not ready\n", head)
		return
	case roll.OutcomeExpiringSkip:
		fmt.Fprintf(w, "  %s - skipped: %s\n", head, r.Reason)
		return
	case roll.OutcomeDataGap, roll.OutcomeNoExpiry:
		fmt.Fprintf(w, "  %s - WARNING: %s\n", head, r.Reason)
		return
	case roll.OutcomeNoCandidates:
		fmt.Fprintf(w, "  %s - no profitable rolls\n", head)
		return
	}

	fmt.Fprintf(w, "  %s\n", head)
	fmt.Fprintf(w, "  spot %s | buyback %.2f | pnl so far %+.2f | rolling to %s\n",
		money(r.Spot), r.Buyback, r.CurrentPnL, r.RollExpiry)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  TYPE\tSTRIKE\tDTE\tMARK\tNET CR\tNET Δ\tPREM EFF\tCAP ROI\tANN ROI")
	for _, c := range r.Candidates {
		fmt.Fprintf(tw, "  %s\t$%.2f\t%d\t%.2f\t%.2f\t%s\t%s\t%.2f%%\t%.1f%%\n",
			KindLabel(c), c.Quote.Strike, c.Quote.DTE, c.Quote.Mark, c.NetCredit,
			fmtPtr(c.NetDelta, "%+.3f"), pct(c.PremiumEfficiency), c.CapitalROI, c.AnnualizedROI)
	}
	tw.Flush()
}

// CacheStats prints one line of cache counters.
func CacheStats(w io.Writer, s cache.Stats) {
	fmt.Fprintf(w, "cache: %s requests, %s hits (%.1f%%), %s misses, %s expired, %d entries\n",
		humanize.Comma(int64(s.TotalRequests)), humanize.Comma(int64(s.Hits)), s.HitRate,
		humanize.Comma(int64(s.Misses)), humanize.Comma(int64(s.Expired)), s.Size)
}

func fmtPtr(f *float64, format string) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *f)
}

func pct(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *f)
}

func money(v float64) string {
	if v <= 0 {
		return "n/a"
	}
	if v >= 1000 {
		return "$" + humanize.CommafWithDigits(v, 2)
	}
	return fmt.Sprintf("$%.2f", v)
}
