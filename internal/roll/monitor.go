package roll

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/logger"
)

// Config holds the tunables of the roll pipeline.
//
// The DTE window and good-match threshold defaults are deliberate choices
// between values the source material uses interchangeably (30-45 vs 30-60,
// 8 vs larger); both are plain configuration, not contract.
type Config struct {
	TargetDelta    float64 `json:"target_delta,omitempty"`     // default 0.10 (calls)
	DeltaTolerance float64 `json:"delta_tolerance,omitempty"`  // default 0.05
	GoodMatches    int     `json:"good_matches,omitempty"`     // early-exit threshold, default 8
	MaxSample      int     `json:"max_sample,omitempty"`       // strikes sampled per scan, default 20
	MaxResults     int     `json:"max_results,omitempty"`      // quotes kept per scan, default 5
	RollOffsetDays int     `json:"roll_offset_days,omitempty"` // default 7
	MinDTE         int     `json:"min_dte,omitempty"`          // default 30
	MaxDTE         int     `json:"max_dte,omitempty"`          // default 45
	DTEAlert       int     `json:"dte_threshold,omitempty"`    // scan positions at or under, default 14
	ExpiringDTE    int     `json:"expiring_dte,omitempty"`     // missing data is expected at or under, default 2

	// AlertRule is an optional expression deciding which reports fire a
	// notification, evaluated against the best candidate. Variables:
	// NET_CREDIT, NET_DELTA, PREMIUM_EFFICIENCY, CAPITAL_ROI,
	// ANNUALIZED_ROI, DTE. Empty means "alert whenever rolls exist".
	AlertRule string `json:"alert_rule,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.TargetDelta == 0 {
		c.TargetDelta = 0.10
	}
	if c.DeltaTolerance <= 0 {
		c.DeltaTolerance = 0.05
	}
	if c.GoodMatches <= 0 {
		c.GoodMatches = 8
	}
	if c.MaxSample <= 0 {
		c.MaxSample = 20
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.RollOffsetDays <= 0 {
		c.RollOffsetDays = 7
	}
	if c.MinDTE <= 0 {
		c.MinDTE = 30
	}
	if c.MaxDTE <= 0 {
		c.MaxDTE = 45
	}
	if c.DTEAlert <= 0 {
		c.DTEAlert = 14
	}
	if c.ExpiringDTE <= 0 {
		c.ExpiringDTE = 2
	}
	return c
}

// Outcome names the per-position result categories. No category is fatal
// to a scan; a position's failure never aborts the other positions.
type Outcome string

const (
	// OutcomeRolls means profitable roll candidates were found.
	OutcomeRolls Outcome = "rolls"

	// OutcomeNotReady means the position's DTE is above the alert
	// threshold and was not scanned.
	OutcomeNotReady Outcome = "not_ready"

	// OutcomeNoCandidates means the pipeline ran but no candidate
	// survived the profitability filter.
	OutcomeNoCandidates Outcome = "no_candidates"

	// OutcomeExpiringSkip means the position is about to expire and its
	// close price is unobtainable. Expected, informational only.
	OutcomeExpiringSkip Outcome = "expiring_skip"

	// OutcomeDataGap means required data was missing for a position that
	// is not about to expire. Surfaced as a non-fatal warning.
	OutcomeDataGap Outcome = "data_gap"

	// OutcomeNoExpiry means the resolver found nothing in the DTE window.
	OutcomeNoExpiry Outcome = "no_expiry"
)

// Report is the result of checking one position.
type Report struct {
	Outcome    Outcome         `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	Position   data.Position   `json:"position"`
	CurrentDTE int             `json:"current_dte"`
	Spot       float64         `json:"spot,omitempty"`
	Buyback    float64         `json:"buyback_cost,omitempty"`
	CurrentPnL float64         `json:"current_pnl,omitempty"`
	RollExpiry string          `json:"roll_expiry,omitempty"`
	Candidates []RollCandidate `json:"candidates,omitempty"`
}

// QuoteSource is what the monitor needs from the cached fetch layer.
type QuoteSource interface {
	QuoteFetcher
	SpotPrice(symbol string) (float64, error)
}

// Monitor runs the roll pipeline over account positions.
type Monitor struct {
	cfg    Config
	prov   data.Provider
	source QuoteSource
	now    func() time.Time
	alert  *govaluate.EvaluableExpression
}

// NewMonitor wires the pipeline. The provider serves chain structure
// (expiries, strikes, positions); the source serves quotes and spot
// through the cache.
func NewMonitor(cfg Config, prov data.Provider, source QuoteSource) (*Monitor, error) {
	cfg = cfg.withDefaults()

	m := &Monitor{cfg: cfg, prov: prov, source: source, now: time.Now}

	if cfg.AlertRule != "" {
		expr, err := govaluate.NewEvaluableExpression(cfg.AlertRule)
		if err != nil {
			return nil, fmt.Errorf("invalid alert rule: %w", err)
		}
		m.alert = expr
	}
	return m, nil
}

// SetClock injects a clock for tests.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// Config returns the effective configuration after defaulting.
func (m *Monitor) Config() Config { return m.cfg }

// Scan fetches the account's positions and checks each one. Individual
// failures are folded into report outcomes; the scan itself only fails
// when the position list cannot be fetched at all.
func (m *Monitor) Scan() ([]Report, error) {
	positions, err := m.prov.Positions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	return m.ScanPositions(positions), nil
}

// ScanPositions checks an already-fetched position book. Callers that
// render the book themselves fetch it once and pass it here, so the
// rate-limited portfolio endpoint is not walked twice per cycle.
func (m *Monitor) ScanPositions(positions []data.Position) []Report {
	reports := make([]Report, 0, len(positions))
	for _, pos := range positions {
		r := m.CheckPosition(pos)

		switch r.Outcome {
		case OutcomeRolls:
			logger.Infof("event=rolls_found symbol=%s strike=%.2f n=%d", pos.Symbol, pos.Strike, len(r.Candidates))
		case OutcomeExpiringSkip:
			logger.Infof("event=expiring_skip symbol=%s strike=%.2f dte=%d", pos.Symbol, pos.Strike, r.CurrentDTE)
		case OutcomeDataGap, OutcomeNoExpiry:
			logger.Errorf("event=%s symbol=%s strike=%.2f dte=%d reason=%s", r.Outcome, pos.Symbol, pos.Strike, r.CurrentDTE, r.Reason)
		default:
			logger.Debugf("event=%s symbol=%s strike=%.2f dte=%d", r.Outcome, pos.Symbol, pos.Strike, r.CurrentDTE)
		}

		reports = append(reports, r)
	}
	return reports
}

// CheckPosition runs the full pipeline for one position.
func (m *Monitor) CheckPosition(pos data.Position) Report {
	today := m.now()
	dte := pos.DTE(today)

	r := Report{Position: pos, CurrentDTE: dte}

	if dte > m.cfg.DTEAlert {
		r.Outcome = OutcomeNotReady
		return r
	}

	if !usableMark(pos.CurrentMark) {
		if dte <= m.cfg.ExpiringDTE {
			r.Outcome = OutcomeExpiringSkip
			r.Reason = fmt.Sprintf("expiring in %d day(s), no market data available", dte)
		} else {
			r.Outcome = OutcomeDataGap
			r.Reason = "no current market price, cannot evaluate rolls"
		}
		return r
	}

	buyback := *pos.CurrentMark
	r.Buyback = buyback
	r.CurrentPnL = pos.EntryCredit - buyback

	// Spot improves band placement but its absence is survivable.
	spot, err := m.source.SpotPrice(pos.Symbol)
	if err != nil {
		logger.Errorf("event=spot_missing symbol=%s err=%v", pos.Symbol, err)
		spot = 0
	}
	r.Spot = spot

	expiries, err := m.prov.Expiries(pos.Symbol)
	if err != nil {
		r.Outcome = OutcomeDataGap
		r.Reason = fmt.Sprintf("expiry fetch failed: %v", err)
		return r
	}

	rollExpiry, err := ResolveRollExpiry(expiries, pos.Expiry, m.cfg.RollOffsetDays, m.cfg.MinDTE, m.cfg.MaxDTE, today)
	if err != nil {
		if errors.Is(err, ErrNoSuitableExpiry) {
			r.Outcome = OutcomeNoExpiry
			r.Reason = fmt.Sprintf("no expiry in %d-%d DTE window", m.cfg.MinDTE, m.cfg.MaxDTE)
		} else {
			r.Outcome = OutcomeDataGap
			r.Reason = err.Error()
		}
		return r
	}
	r.RollExpiry = rollExpiry

	right := data.RightCall
	if m.cfg.TargetDelta < 0 {
		right = data.RightPut
	}

	// Same-strike roll is always evaluated, ahead of the delta matches.
	var quotes []data.QuoteSnapshot
	if snap, err := m.source.FetchQuote(pos.Symbol, rollExpiry, pos.Strike, right); err == nil {
		quotes = append(quotes, snap)
	} else {
		logger.Debugf("event=same_strike_unavailable symbol=%s strike=%.2f err=%v", pos.Symbol, pos.Strike, err)
	}

	strikes, err := m.prov.Strikes(pos.Symbol, rollExpiry)
	if err != nil {
		logger.Errorf("event=strikes_missing symbol=%s expiry=%s err=%v", pos.Symbol, rollExpiry, err)
	} else {
		sample := SampleStrikes(strikes, spot, m.cfg.TargetDelta, m.cfg.MaxSample)
		matched := MatchByDelta(m.source, pos.Symbol, rollExpiry, sample, right, MatchParams{
			TargetDelta: m.cfg.TargetDelta,
			Tolerance:   m.cfg.DeltaTolerance,
			GoodMatches: m.cfg.GoodMatches,
			MaxResults:  m.cfg.MaxResults,
		})
		quotes = append(quotes, matched...)
	}

	r.Candidates = EvaluateRolls(pos, quotes, buyback, right)
	if len(r.Candidates) == 0 {
		r.Outcome = OutcomeNoCandidates
		return r
	}

	r.Outcome = OutcomeRolls
	return r
}

// ShouldAlert decides whether a report warrants a notification. Without a
// configured rule, any report with candidates alerts. With a rule, it is
// evaluated against the top-ranked candidate.
func (m *Monitor) ShouldAlert(r Report) bool {
	if r.Outcome != OutcomeRolls || len(r.Candidates) == 0 {
		return false
	}
	if m.alert == nil {
		return true
	}

	best := r.Candidates[0]
	params := map[string]any{
		"NET_CREDIT":         best.NetCredit,
		"NET_DELTA":          derefOrZero(best.NetDelta),
		"PREMIUM_EFFICIENCY": peOrZero(best),
		"CAPITAL_ROI":        best.CapitalROI,
		"ANNUALIZED_ROI":     best.AnnualizedROI,
		"DTE":                float64(best.Quote.DTE),
	}

	res, err := m.alert.Evaluate(params)
	if err != nil {
		logger.Errorf("event=alert_rule_failed err=%v", err)
		return true // fail open
	}

	b, ok := res.(bool)
	if !ok {
		logger.Errorf("event=alert_rule_not_boolean result=%v", res)
		return true
	}
	return b
}

func usableMark(mark *float64) bool {
	return mark != nil && !math.IsNaN(*mark) && *mark > 0
}

func derefOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
