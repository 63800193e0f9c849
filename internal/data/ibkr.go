// This file contains an IBKR-backed Provider implementation that retrieves
// positions, option chains, and quote snapshots via the Client Portal
// Gateway REST API.
//
// Design notes:
//   - Uses raw HTTP calls against the local gateway (no SDK)
//   - Snapshot endpoints need a preflight request before data populates
//   - Rate limiting is respected with fixed pauses between chain calls
//   - Logging is intentionally verbose at Debug/Trace levels for diagnostics
package data

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/contactkeval/roll-monitor/internal/logger"
)

// Client Portal snapshot field IDs.
const (
	fieldLast  = "31"
	fieldBid   = "84"
	fieldAsk   = "85"
	fieldClose = "7296"
	fieldIV    = "7283"
	fieldDelta = "7308"
	fieldGamma = "7309"
	fieldTheta = "7310"
)

// chainPause is the fixed delay between chain enumeration calls, per the
// gateway's pacing guidance.
const chainPause = 200 * time.Millisecond

// ibkrProvider implements Provider against the Client Portal Gateway.
type ibkrProvider struct {
	// BaseURL is the gateway root, e.g. https://localhost:5001/v1/api.
	BaseURL string

	// Client is the HTTP client used for gateway requests. The gateway
	// serves a self-signed certificate, so verification is skipped.
	Client *http.Client

	// Retry governs re-requests while snapshot data populates.
	Retry RetryPolicy

	mu     sync.Mutex
	conids map[string]int // resolved underlying conids
}

// NewIBKRProvider constructs a provider talking to a local Client Portal
// Gateway. An empty baseURL selects the conventional localhost endpoint.
func NewIBKRProvider(baseURL string, retry RetryPolicy) Provider {
	if baseURL == "" {
		baseURL = "https://localhost:5001/v1/api"
	}

	logger.Infof("initializing IBKR gateway provider url=%s", baseURL)

	return &ibkrProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Retry:  retry,
		conids: make(map[string]int),
	}
}

// searchResult models /iserver/secdef/search entries.
type searchResult struct {
	ConID       string `json:"conid"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Sections    []struct {
		SecType string `json:"secType"`
		Months  string `json:"months"`
	} `json:"sections"`
}

// strikesResponse models /iserver/secdef/strikes.
type strikesResponse struct {
	Call []float64 `json:"call"`
	Put  []float64 `json:"put"`
}

// contractInfo models /iserver/secdef/info entries.
type contractInfo struct {
	ConID        int     `json:"conid"`
	Symbol       string  `json:"symbol"`
	Strike       float64 `json:"strike"`
	Right        string  `json:"right"`
	MaturityDate string  `json:"maturityDate"` // YYYYMMDD
}

// portfolioPosition models /portfolio/{acct}/positions entries.
type portfolioPosition struct {
	ConID       int     `json:"conid"`
	AssetClass  string  `json:"assetClass"`
	Ticker      string  `json:"ticker"`
	PutOrCall   string  `json:"putOrCall"`
	Strike      any     `json:"strike"` // string or number depending on gateway build
	Expiry      string  `json:"expiry"` // YYYYMMDD
	Position    float64 `json:"position"`
	AvgCost     float64 `json:"avgCost"`
	MktPrice    float64 `json:"mktPrice"`
	CurrencyISO string  `json:"currency"`
}

func (prov *ibkrProvider) getJSON(path string, out any) error {
	url := prov.BaseURL + path

	resp, err := prov.Client.Get(url)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		logger.Debugf("gateway rate limited path=%s", path)
		return fmt.Errorf("gateway rate limited: %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		var dbg struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &dbg)
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, dbg.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// underlyingConID resolves and memoizes the conid for a symbol.
func (prov *ibkrProvider) underlyingConID(symbol string) (int, error) {
	prov.mu.Lock()
	if id, ok := prov.conids[symbol]; ok {
		prov.mu.Unlock()
		return id, nil
	}
	prov.mu.Unlock()

	var results []searchResult
	if err := prov.getJSON("/iserver/secdef/search?symbol="+symbol, &results); err != nil {
		return 0, err
	}

	for _, r := range results {
		if !strings.EqualFold(r.Symbol, symbol) {
			continue
		}
		id, err := strconv.Atoi(r.ConID)
		if err != nil {
			continue
		}
		prov.mu.Lock()
		prov.conids[symbol] = id
		prov.mu.Unlock()
		return id, nil
	}
	return 0, fmt.Errorf("symbol not found: %s", symbol)
}

// optionMonths returns the option month labels (e.g. "JAN26") available
// for the symbol.
func (prov *ibkrProvider) optionMonths(symbol string) ([]string, error) {
	var results []searchResult
	if err := prov.getJSON("/iserver/secdef/search?symbol="+symbol, &results); err != nil {
		return nil, err
	}

	for _, r := range results {
		if !strings.EqualFold(r.Symbol, symbol) {
			continue
		}
		for _, sec := range r.Sections {
			if sec.SecType == "OPT" && sec.Months != "" {
				return strings.Split(sec.Months, ";"), nil
			}
		}
	}
	return nil, fmt.Errorf("no option months for %s", symbol)
}

// Expiries enumerates exact expiry dates by probing each month's chain at
// a single mid-chain strike. The months list only carries month labels;
// the info endpoint is what knows the actual maturity dates.
func (prov *ibkrProvider) Expiries(symbol string) ([]string, error) {
	conid, err := prov.underlyingConID(symbol)
	if err != nil {
		return nil, err
	}

	months, err := prov.optionMonths(symbol)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []string

	for _, month := range months {
		var strikes strikesResponse
		path := fmt.Sprintf("/iserver/secdef/strikes?conid=%d&sectype=OPT&month=%s", conid, month)
		if err := prov.getJSON(path, &strikes); err != nil {
			logger.Debugf("strikes probe failed month=%s err=%v", month, err)
			continue
		}
		if len(strikes.Call) == 0 {
			continue
		}

		// Mid-chain strike keeps the probe liquid regardless of spot.
		probe := strikes.Call[len(strikes.Call)/2]

		infos, err := prov.contractsFor(conid, month, probe, RightCall)
		if err != nil {
			logger.Debugf("info probe failed month=%s strike=%.2f err=%v", month, probe, err)
			continue
		}

		for _, ci := range infos {
			if ci.MaturityDate != "" && !seen[ci.MaturityDate] {
				seen[ci.MaturityDate] = true
				out = append(out, ci.MaturityDate)
			}
		}

		time.Sleep(chainPause)
	}

	sort.Strings(out)
	logger.Debugf("resolved %d expiries for %s", len(out), symbol)
	return out, nil
}

// Strikes returns the ascending call strikes for the expiry's month.
func (prov *ibkrProvider) Strikes(symbol, expiry string) ([]float64, error) {
	conid, err := prov.underlyingConID(symbol)
	if err != nil {
		return nil, err
	}

	month, err := monthLabel(expiry)
	if err != nil {
		return nil, err
	}

	var strikes strikesResponse
	path := fmt.Sprintf("/iserver/secdef/strikes?conid=%d&sectype=OPT&month=%s", conid, month)
	if err := prov.getJSON(path, &strikes); err != nil {
		return nil, err
	}

	out := append([]float64(nil), strikes.Call...)
	sort.Float64s(out)
	return out, nil
}

// contractsFor fetches contract definitions for one strike/right.
func (prov *ibkrProvider) contractsFor(conid int, month string, strike float64, right Right) ([]contractInfo, error) {
	path := fmt.Sprintf("/iserver/secdef/info?conid=%d&sectype=OPT&month=%s&strike=%s&right=%s",
		conid, month, strconv.FormatFloat(strike, 'f', -1, 64), right)

	var infos []contractInfo
	if err := prov.getJSON(path, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// snapshot fetches marketdata fields for a conid. The first request only
// initializes the gateway's stream; the retry policy paces re-reads until
// the fields populate.
func (prov *ibkrProvider) snapshot(conid int, fields string) (map[string]any, error) {
	path := fmt.Sprintf("/iserver/marketdata/snapshot?conids=%d&fields=%s", conid, fields)

	// Preflight to initialize the stream; response is discarded.
	var discard []map[string]any
	_ = prov.getJSON(path, &discard)

	var lastErr error
	for attempt := 0; attempt < prov.Retry.attempts(); attempt++ {
		prov.Retry.sleep(attempt)

		var rows []map[string]any
		if err := prov.getJSON(path, &rows); err != nil {
			lastErr = err
			continue
		}
		if len(rows) == 0 {
			lastErr = fmt.Errorf("empty snapshot for conid %d", conid)
			continue
		}
		return rows[0], nil
	}
	return nil, lastErr
}

// OptionQuote resolves the contract and reads one snapshot for it.
func (prov *ibkrProvider) OptionQuote(symbol, expiry string, strike float64, right Right) (QuoteSnapshot, error) {
	conid, err := prov.underlyingConID(symbol)
	if err != nil {
		return QuoteSnapshot{}, err
	}

	month, err := monthLabel(expiry)
	if err != nil {
		return QuoteSnapshot{}, err
	}

	infos, err := prov.contractsFor(conid, month, strike, right)
	if err != nil {
		return QuoteSnapshot{}, err
	}

	optConID := 0
	for _, ci := range infos {
		if ci.MaturityDate == expiry {
			optConID = ci.ConID
			break
		}
	}
	if optConID == 0 {
		logger.Debugf("no contract %s %s %.2f %s", symbol, expiry, strike, right)
		return QuoteSnapshot{}, ErrUnavailable
	}

	fields := strings.Join([]string{fieldLast, fieldBid, fieldAsk, fieldClose, fieldIV, fieldDelta, fieldGamma, fieldTheta}, ",")
	row, err := prov.snapshot(optConID, fields)
	if err != nil {
		return QuoteSnapshot{}, fmt.Errorf("option snapshot: %w", err)
	}

	bid := parseField(row[fieldBid])
	ask := parseField(row[fieldAsk])
	last := parseField(row[fieldLast])
	close := parseField(row[fieldClose])

	mark, ok := SafeMark(bid, ask, last, close)
	if !ok {
		return QuoteSnapshot{}, ErrUnavailable
	}

	snap := QuoteSnapshot{
		Strike: strike,
		Expiry: expiry,
		Bid:    bid,
		Ask:    ask,
		Mark:   mark,
		DTE:    DaysToExpiry(expiry, time.Now()),
	}
	snap.Delta = parseGreek(row[fieldDelta])
	snap.Gamma = parseGreek(row[fieldGamma])
	snap.Theta = parseGreek(row[fieldTheta])
	snap.IV = parseGreek(row[fieldIV])

	logger.Tracef("quote %s %s %.2f%s mark=%.2f delta=%v", symbol, expiry, strike, right, mark, snap.Delta)
	return snap, nil
}

// SpotPrice reads the underlying's snapshot and derives a mark from it.
func (prov *ibkrProvider) SpotPrice(symbol string) (float64, error) {
	conid, err := prov.underlyingConID(symbol)
	if err != nil {
		return 0, err
	}

	fields := strings.Join([]string{fieldLast, fieldBid, fieldAsk, fieldClose}, ",")
	row, err := prov.snapshot(conid, fields)
	if err != nil {
		return 0, fmt.Errorf("spot snapshot: %w", err)
	}

	mark, ok := SafeMark(
		parseField(row[fieldBid]),
		parseField(row[fieldAsk]),
		parseField(row[fieldLast]),
		parseField(row[fieldClose]),
	)
	if !ok {
		return 0, ErrUnavailable
	}
	return mark, nil
}

// Positions returns the account's short calls. Market delta is filled from
// a per-contract snapshot since the portfolio endpoint has no Greeks.
func (prov *ibkrProvider) Positions() ([]Position, error) {
	var accounts []struct {
		ID string `json:"id"`
	}
	if err := prov.getJSON("/portfolio/accounts", &accounts); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no portfolio accounts")
	}

	var raw []portfolioPosition
	path := fmt.Sprintf("/portfolio/%s/positions/0", accounts[0].ID)
	if err := prov.getJSON(path, &raw); err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}

	var out []Position
	for _, pp := range raw {
		if pp.AssetClass != "OPT" || pp.Position >= 0 || pp.PutOrCall != "C" {
			continue
		}

		strike := parseField(pp.Strike)
		if strike <= 0 || pp.Expiry == "" {
			logger.Debugf("skipping malformed position conid=%d", pp.ConID)
			continue
		}

		pos := Position{
			Symbol:      pp.Ticker,
			Strike:      strike,
			Expiry:      pp.Expiry,
			Contracts:   int(-pp.Position),
			EntryCredit: pp.AvgCost / 100, // avgCost is per-share*multiplier
		}
		if pos.EntryCredit < 0 {
			pos.EntryCredit = -pos.EntryCredit
		}
		if pp.MktPrice > 0 {
			mark := pp.MktPrice
			pos.CurrentMark = &mark
		}

		// Best effort; a position without Greeks still renders.
		if snap, err := prov.OptionQuote(pos.Symbol, pos.Expiry, pos.Strike, RightCall); err == nil {
			if pos.CurrentMark == nil && snap.Mark > 0 {
				mark := snap.Mark
				pos.CurrentMark = &mark
			}
			pos.CurrentDelta = snap.Delta
		}

		out = append(out, pos)
	}

	logger.Infof("fetched %d short call position(s)", len(out))
	return out, nil
}

// monthLabel converts a YYYYMMDD expiry to the gateway's MMMYY month label.
func monthLabel(expiry string) (string, error) {
	dt, err := ParseExpiry(expiry)
	if err != nil {
		return "", fmt.Errorf("invalid expiry %q: %w", expiry, err)
	}
	return strings.ToUpper(dt.Format("Jan06")), nil
}

// parseField extracts a float from the snapshot's mixed field formats.
// Values arrive as numbers, strings ("12.34", sometimes prefixed like
// "C12.34"), or {"v": ...} wrappers.
func parseField(field any) float64 {
	switch val := field.(type) {
	case nil:
		return 0
	case float64:
		return val
	case string:
		s := strings.TrimLeft(val, "CHcv ")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	case map[string]any:
		if v, ok := val["v"]; ok {
			return parseField(v)
		}
	}
	return 0
}

// parseGreek is parseField for optional fields: absent or zero-valued
// Greeks come back as nil rather than 0, since 0 is a legal delta only in
// degenerate cases and callers must distinguish "missing".
func parseGreek(field any) *float64 {
	if field == nil {
		return nil
	}
	f := parseField(field)
	if f == 0 {
		return nil
	}
	return &f
}
