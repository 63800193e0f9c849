package cache

import (
	"time"

	"github.com/contactkeval/roll-monitor/internal/data"
	"github.com/contactkeval/roll-monitor/internal/logger"
)

// DefaultSpotTTL is the lifetime for cached underlying prices. Spot moves
// faster than option marks, so it ages out sooner than DefaultTTL.
const DefaultSpotTTL = 30 * time.Second

// Fetcher is a cache-first quote source. A hit returns the cached
// snapshot; a miss goes to the provider and populates the cache only on a
// successful fetch, so failed lookups are retried naturally on the next
// scan.
type Fetcher struct {
	Cache    *QuoteCache
	Provider data.Provider
	QuoteTTL time.Duration
	SpotTTL  time.Duration
}

// NewFetcher wires a cache in front of a provider with the default TTLs.
func NewFetcher(c *QuoteCache, prov data.Provider) *Fetcher {
	return &Fetcher{
		Cache:    c,
		Provider: prov,
		QuoteTTL: DefaultTTL,
		SpotTTL:  DefaultSpotTTL,
	}
}

// FetchQuote returns the option quote for the contract, consulting the
// cache before the provider.
func (f *Fetcher) FetchQuote(symbol, expiry string, strike float64, right data.Right) (data.QuoteSnapshot, error) {
	key := Key{Symbol: symbol, Expiry: expiry, Strike: strike, Right: right}

	if snap, ok := f.Cache.Get(key); ok {
		logger.Tracef("cache hit %s", key)
		return snap, nil
	}

	snap, err := f.Provider.OptionQuote(symbol, expiry, strike, right)
	if err != nil {
		return data.QuoteSnapshot{}, err
	}

	f.Cache.Put(key, snap, f.QuoteTTL)
	return snap, nil
}

// SpotPrice returns the underlying price, cached under the synthetic
// underlying key with the shorter spot TTL.
func (f *Fetcher) SpotPrice(symbol string) (float64, error) {
	key := UnderlyingKey(symbol)

	if snap, ok := f.Cache.Get(key); ok {
		return snap.Mark, nil
	}

	price, err := f.Provider.SpotPrice(symbol)
	if err != nil {
		return 0, err
	}

	f.Cache.Put(key, data.QuoteSnapshot{Mark: price}, f.SpotTTL)
	return price, nil
}
