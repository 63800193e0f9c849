// Package cache provides a TTL-keyed, concurrency-safe store for option
// quote snapshots and underlying price marks.
//
// Design goals:
//   - Cut round trips to the broker gateway, which is slow and rate-limited
//   - Per-entry TTL so quotes and underlying prices can age independently
//   - Lazy expiry on read, plus an explicit sweep for long-running loops
//   - Hit/miss/expired counters for operator visibility
//
// The cache has no knowledge of the broker protocol. Callers construct one
// instance and pass it by reference to whichever components need it; there
// is no package-level singleton.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/contactkeval/roll-monitor/internal/data"
)

// DefaultTTL is the lifetime applied when Put is called with ttl <= 0.
const DefaultTTL = 60 * time.Second

// Key identifies one cached snapshot. Underlying price snapshots use
// data.RightUnderlying with an empty expiry and zero strike.
type Key struct {
	Symbol string
	Expiry string // YYYYMMDD, empty for underlying entries
	Strike float64
	Right  data.Right
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%s_%g_%s", k.Symbol, k.Expiry, k.Strike, k.Right)
}

// UnderlyingKey builds the key under which a symbol's spot price is cached.
func UnderlyingKey(symbol string) Key {
	return Key{Symbol: symbol, Right: data.RightUnderlying}
}

// entry pairs a snapshot with its insertion time and lifetime. Reads never
// mutate an entry; it is replaced wholesale by Put or removed by expiry.
type entry struct {
	snap       data.QuoteSnapshot
	insertedAt time.Time
	ttl        time.Duration
}

// Stats is a point-in-time snapshot of cache counters. Counters accumulate
// for the lifetime of the cache instance and reset only via ResetStats.
type Stats struct {
	TotalRequests int     `json:"total_requests"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	Expired       int     `json:"expired"`
	HitRate       float64 `json:"hit_rate"` // percent, 0 when no requests yet
	Size          int     `json:"cache_size"`
}

// QuoteCache is a mutex-guarded TTL cache. All operations serialize through
// a single lock: at most one mutation in flight, and every read observes a
// consistent (snapshot, timestamp) pair.
type QuoteCache struct {
	mu      sync.Mutex
	entries map[Key]entry
	now     func() time.Time

	totalRequests int
	hits          int
	misses        int
	expired       int
}

// New constructs an empty cache.
func New() *QuoteCache {
	return &QuoteCache{
		entries: make(map[Key]entry),
		now:     time.Now,
	}
}

// NewWithClock constructs a cache with an injected clock, used by tests to
// step time across TTL boundaries deterministically.
func NewWithClock(now func() time.Time) *QuoteCache {
	c := New()
	c.now = now
	return c
}

// Get returns the cached snapshot for key if present and not expired.
//
// A Get on an expired key counts as a miss, increments the expired counter
// exactly once, and evicts the entry; a stale snapshot is never returned.
func (c *QuoteCache) Get(key Key) (data.QuoteSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return data.QuoteSnapshot{}, false
	}

	if c.now().Sub(e.insertedAt) >= e.ttl {
		delete(c.entries, key)
		c.expired++
		c.misses++
		return data.QuoteSnapshot{}, false
	}

	c.hits++
	return e.snap, true
}

// Put stores snap under key with the given lifetime. A ttl <= 0 falls back
// to DefaultTTL. An existing entry is replaced and its clock restarts.
func (c *QuoteCache) Put(key Key, snap data.QuoteSnapshot, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{snap: snap, insertedAt: c.now(), ttl: ttl}
}

// ClearExpired sweeps the cache and removes every entry past its TTL,
// returning the number removed. Sweeps do not touch the expired counter;
// that only tracks expiry observed by Get.
func (c *QuoteCache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= e.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear removes all entries. Counters are left intact.
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]entry)
}

// Stats returns a consistent snapshot of the cache counters.
func (c *QuoteCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		TotalRequests: c.totalRequests,
		Hits:          c.hits,
		Misses:        c.misses,
		Expired:       c.expired,
		Size:          len(c.entries),
	}
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.TotalRequests) * 100
	}
	return s
}

// ResetStats zeroes all counters. Entries are untouched.
func (c *QuoteCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests = 0
	c.hits = 0
	c.misses = 0
	c.expired = 0
}
