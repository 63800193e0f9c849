package data

import (
	"math"
	"sort"
	"time"

	"github.com/contactkeval/roll-monitor/internal/pricing"
)

// syntheticProvider implements Provider with Black-Scholes generated
// quotes. It is fully deterministic given its configuration and clock,
// which makes it usable both for offline runs and for pipeline tests.
type syntheticProvider struct {
	Spot float64
	Vol  float64
	Rate float64

	now func() time.Time
}

// NewSyntheticProvider returns a deterministic provider centered on the
// given spot price with the given flat implied volatility.
func NewSyntheticProvider(spot, vol float64) Provider {
	return &syntheticProvider{
		Spot: spot,
		Vol:  vol,
		Rate: 0.02,
		now:  time.Now,
	}
}

// NewSyntheticProviderAt is NewSyntheticProvider with an injected clock.
func NewSyntheticProviderAt(spot, vol float64, now func() time.Time) Provider {
	p := &syntheticProvider{Spot: spot, Vol: vol, Rate: 0.02, now: now}
	return p
}

func (prov *syntheticProvider) SpotPrice(string) (float64, error) {
	return prov.Spot, nil
}

// Expiries emits the weekly Friday cycle out to ten weeks.
func (prov *syntheticProvider) Expiries(string) ([]string, error) {
	today := prov.now().UTC()

	// First Friday strictly after today.
	d := today.AddDate(0, 0, 1)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}

	var out []string
	for i := 0; i < 10; i++ {
		out = append(out, d.Format("20060102"))
		d = d.AddDate(0, 0, 7)
	}
	sort.Strings(out)
	return out, nil
}

// Strikes lays a $5 grid from 40% to 200% of spot.
func (prov *syntheticProvider) Strikes(string, string) ([]float64, error) {
	lo := math.Floor(prov.Spot*0.4/5) * 5
	hi := math.Ceil(prov.Spot*2.0/5) * 5

	var out []float64
	for k := lo; k <= hi; k += 5 {
		out = append(out, k)
	}
	return out, nil
}

func (prov *syntheticProvider) OptionQuote(symbol, expiry string, strike float64, right Right) (QuoteSnapshot, error) {
	dte := DaysToExpiry(expiry, prov.now())
	if dte < 0 {
		return QuoteSnapshot{}, ErrUnavailable
	}

	isCall := right != RightPut
	T := float64(dte) / 365

	mark := round2(pricing.Price(isCall, prov.Spot, strike, T, prov.Rate, prov.Vol))
	if mark <= 0 {
		// Deep OTM teenies still quote at the minimum tick.
		mark = 0.01
	}

	delta := pricing.Delta(isCall, prov.Spot, strike, T, prov.Rate, prov.Vol)
	gamma := pricing.Gamma(prov.Spot, strike, T, prov.Rate, prov.Vol)
	theta := pricing.Theta(isCall, prov.Spot, strike, T, prov.Rate, prov.Vol)
	iv := prov.Vol

	return QuoteSnapshot{
		Strike: strike,
		Expiry: expiry,
		Bid:    round2(mark - 0.05),
		Ask:    round2(mark + 0.05),
		Mark:   mark,
		Delta:  &delta,
		Gamma:  &gamma,
		Theta:  &theta,
		IV:     &iv,
		DTE:    dte,
	}, nil
}

// Positions fabricates one short call slightly above spot, expiring in the
// second weekly cycle, so a --synthetic run exercises the whole pipeline.
func (prov *syntheticProvider) Positions() ([]Position, error) {
	expiries, _ := prov.Expiries("")
	expiry := expiries[1]

	strike := math.Round(prov.Spot*1.05/5) * 5
	snap, err := prov.OptionQuote("SYN", expiry, strike, RightCall)
	if err != nil {
		return nil, err
	}

	mark := snap.Mark
	return []Position{{
		Symbol:       "SYN",
		Strike:       strike,
		Expiry:       expiry,
		Contracts:    1,
		EntryCredit:  round2(mark * 1.4),
		CurrentMark:  &mark,
		CurrentDelta: snap.Delta,
	}}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
