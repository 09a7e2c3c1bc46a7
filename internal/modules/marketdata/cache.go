// Package marketdata serves fresh-enough quotes without hammering the
// rate-limited external provider. A TTL cache with market-hours-aware
// expiry fronts the provider client; misses are coalesced per symbol and
// provider failures fall back to the last known value.
package marketdata

import (
	"sort"
	"sync"
	"time"

	"github.com/castlegate/networth/internal/domain"
)

// TTLClass selects which freshness window applies to a cached quote.
// Quotes stored while the market is open go stale much faster.
type TTLClass string

const (
	ClassMarketHours TTLClass = "market_hours"
	ClassOffHours    TTLClass = "off_hours"
)

// CacheConfig holds quote cache tuning. TTLs are configuration inputs, not
// constants: trading-hours definitions and acceptable staleness vary by
// deployment.
type CacheConfig struct {
	MarketHoursTTL time.Duration // Default 5m
	OffHoursTTL    time.Duration // Default 30m
	MaxEntries     int
}

// DefaultCacheConfig returns the default TTL policy.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MarketHoursTTL: 5 * time.Minute,
		OffHoursTTL:    30 * time.Minute,
		MaxEntries:     1000,
	}
}

// Stats are the cache's monotonic hit/miss counters, exposed at the
// observability boundary.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	Entries  int     `json:"entries"`
}

type entry struct {
	quote      domain.Quote
	fetchedAt  time.Time
	class      TTLClass
	lastAccess time.Time
	pins       int // Non-zero while a fetch for this symbol is in flight
}

// QuoteCache is an in-process TTL cache mapping symbol to latest quote.
// All counters are instance state, and the time source is injected, so
// tests drive expiry deterministically. Safe for concurrent use.
type QuoteCache struct {
	mu      sync.Mutex
	cfg     CacheConfig
	now     func() time.Time
	entries map[string]*entry
	access  map[string]uint64
	hits    uint64
	misses  uint64
}

// NewQuoteCache creates a quote cache with the given TTL policy and time
// source.
func NewQuoteCache(cfg CacheConfig, now func() time.Time) *QuoteCache {
	if now == nil {
		now = time.Now
	}
	return &QuoteCache{
		cfg:     cfg,
		now:     now,
		entries: make(map[string]*entry),
		access:  make(map[string]uint64),
	}
}

func (c *QuoteCache) ttl(class TTLClass) time.Duration {
	if class == ClassMarketHours {
		return c.cfg.MarketHoursTTL
	}
	return c.cfg.OffHoursTTL
}

func (c *QuoteCache) fresh(e *entry) bool {
	return c.now().Sub(e.fetchedAt) < c.ttl(e.class)
}

// get is the unlocked lookup shared by Get and GetBatch.
func (c *QuoteCache) get(symbol string) (domain.Quote, bool) {
	c.access[symbol]++

	e, ok := c.entries[symbol]
	if !ok || !c.fresh(e) {
		c.misses++
		return domain.Quote{}, false
	}

	c.hits++
	e.lastAccess = c.now()
	return e.quote, true
}

// Get returns the cached quote if fresh. A stale entry is a miss, not a
// deletion: the value stays around as a fallback for provider failures.
func (c *QuoteCache) Get(symbol string) (domain.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(symbol)
}

// GetBatch partitions symbols into fresh hits and misses. The partition is
// complete: every requested symbol appears in exactly one of the two.
func (c *QuoteCache) GetBatch(symbols []string) (map[string]domain.Quote, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits := make(map[string]domain.Quote, len(symbols))
	var misses []string
	for _, symbol := range symbols {
		if q, ok := c.get(symbol); ok {
			hits[symbol] = q
		} else {
			misses = append(misses, symbol)
		}
	}
	return hits, misses
}

// GetStale returns the last known quote regardless of freshness, marked
// stale when expired. Fallback path only; never a Get success.
func (c *QuoteCache) GetStale(symbol string) (domain.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok {
		return domain.Quote{}, false
	}
	q := e.quote
	if !c.fresh(e) {
		q.Stale = true
	}
	return q, true
}

// Put installs a fresh entry, stamped with the TTL class the caller
// resolved from the market calendar at the quote's as-of time.
func (c *QuoteCache) Put(quote domain.Quote, class TTLClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(quote, class)
}

// PutBatch installs many fresh entries under one lock acquisition.
func (c *QuoteCache) PutBatch(quotes []domain.Quote, class TTLClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range quotes {
		c.put(q, class)
	}
}

func (c *QuoteCache) put(quote domain.Quote, class TTLClass) {
	now := c.now()
	if e, ok := c.entries[quote.Symbol]; ok {
		e.quote = quote
		e.fetchedAt = now
		e.class = class
		e.lastAccess = now
		return
	}
	c.entries[quote.Symbol] = &entry{
		quote:      quote,
		fetchedAt:  now,
		class:      class,
		lastAccess: now,
	}
	c.evictOverflow()
}

// Pin marks a symbol as mid-fetch so eviction will not remove its entry
// while concurrent callers wait on the coalesced fetch. Pinning a symbol
// with no entry yet records nothing; the subsequent Put installs it fresh.
func (c *QuoteCache) Pin(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[symbol]; ok {
		e.pins++
	}
}

// Unpin releases a Pin.
func (c *QuoteCache) Unpin(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[symbol]; ok && e.pins > 0 {
		e.pins--
	}
}

// evictOverflow removes least-recently-accessed entries until the cache is
// within its configured size, skipping pinned entries.
func (c *QuoteCache) evictOverflow() {
	for len(c.entries) > c.cfg.MaxEntries {
		victim := ""
		var oldest time.Time
		for symbol, e := range c.entries {
			if e.pins > 0 {
				continue
			}
			if victim == "" || e.lastAccess.Before(oldest) {
				victim = symbol
				oldest = e.lastAccess
			}
		}
		if victim == "" {
			return // Everything pinned; try again on the next put
		}
		delete(c.entries, victim)
	}
}

// Stats returns the monotonic hit/miss counters.
func (c *QuoteCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatio = float64(c.hits) / float64(total)
	}
	return s
}

// TopAccessed returns the n most requested symbols, most popular first.
// Used to rank cache warming candidates.
func (c *QuoteCache) TopAccessed(n int) []string {
	if n <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	type count struct {
		symbol string
		hits   uint64
	}
	counts := make([]count, 0, len(c.access))
	for symbol, hits := range c.access {
		counts = append(counts, count{symbol, hits})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].hits != counts[j].hits {
			return counts[i].hits > counts[j].hits
		}
		return counts[i].symbol < counts[j].symbol
	})

	if n > len(counts) {
		n = len(counts)
	}
	symbols := make([]string, 0, n)
	for _, cnt := range counts[:n] {
		symbols = append(symbols, cnt.symbol)
	}
	return symbols
}
