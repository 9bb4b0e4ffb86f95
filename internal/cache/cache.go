// Package cache provides a tiered TTL cache for EDGAR responses with
// SQLite, Postgres, and in-memory backends.
package cache

import (
	"context"
	"sync"
	"time"
)

// Tier categorizes cached payloads by volatility. Each tier carries a
// default TTL that Set applies unless WithTTL overrides it.
type Tier string

const (
	TierEntityMetadata  Tier = "entity_metadata"
	TierFinancials      Tier = "financials"
	TierFilingsList     Tier = "filings_list"
	TierTickerDirectory Tier = "ticker_directory"
	TierCompanyFacts    Tier = "company_facts"
)

// defaultTTLs maps each tier to its default retention.
var defaultTTLs = map[Tier]time.Duration{
	TierEntityMetadata:  7 * 24 * time.Hour,
	TierFinancials:      30 * 24 * time.Hour,
	TierFilingsList:     24 * time.Hour,
	TierTickerDirectory: 7 * 24 * time.Hour,
	TierCompanyFacts:    30 * 24 * time.Hour,
}

// TTL returns the default retention for the tier, or 24h for an
// unrecognized tier.
func (t Tier) TTL() time.Duration {
	if d, ok := defaultTTLs[t]; ok {
		return d
	}
	return 24 * time.Hour
}

// tierTTLs holds per-tier retention overrides for a store. Tiers without
// an override fall back to their default TTL.
type tierTTLs map[Tier]time.Duration

func (t tierTTLs) ttl(tier Tier) time.Duration {
	if d, ok := t[tier]; ok && d > 0 {
		return d
	}
	return tier.TTL()
}

// storeOptions collects the optional attributes of a store constructor.
type storeOptions struct {
	ttls tierTTLs
}

// StoreOption customizes a store at construction time.
type StoreOption func(*storeOptions)

// WithTierTTLs overrides the default retention for the given tiers on
// every Set against the store. Per-call WithTTL still wins.
func WithTierTTLs(ttls map[Tier]time.Duration) StoreOption {
	return func(o *storeOptions) {
		if len(ttls) == 0 {
			return
		}
		if o.ttls == nil {
			o.ttls = make(tierTTLs, len(ttls))
		}
		for tier, d := range ttls {
			o.ttls[tier] = d
		}
	}
}

func applyStoreOptions(opts []StoreOption) storeOptions {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// setOptions collects the optional attributes of a Set call.
type setOptions struct {
	ttl         time.Duration
	ticker      string
	companyName string
}

// SetOption customizes a Set call.
type SetOption func(*setOptions)

// WithTTL overrides the tier's default TTL for this entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithTicker records a secondary ticker index for the entry, enabling
// GetByTicker lookups against historical data.
func WithTicker(ticker string) SetOption {
	return func(o *setOptions) { o.ticker = ticker }
}

// WithCompanyName records the company name alongside the entry for
// inspection and reporting.
func WithCompanyName(name string) SetOption {
	return func(o *setOptions) { o.companyName = name }
}

func applySetOptions(ttls tierTTLs, tier Tier, opts []SetOption) setOptions {
	o := setOptions{ttl: ttls.ttl(tier)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Stats summarizes cache effectiveness across the store's lifetime.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Deletes   int64 `json:"deletes"`
	Evictions int64 `json:"evictions"`

	Entries       int64          `json:"entries"`
	EntriesByTier map[Tier]int64 `json:"entries_by_tier,omitempty"`
}

// HitRate returns hits/(hits+misses), or 0 when no reads have happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is the persistence interface for cached EDGAR payloads.
type Store interface {
	Set(ctx context.Context, key string, value []byte, tier Tier, opts ...SetOption) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// GetStale returns the entry even when its TTL has lapsed.
	GetStale(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// Sweep removes expired entries and reports how many were dropped.
	Sweep(ctx context.Context) (int, error)
	// GetByTicker looks up the most recently created non-expired entry
	// carrying the ticker as a secondary key.
	GetByTicker(ctx context.Context, ticker string) ([]byte, bool, error)
	Stats(ctx context.Context) (Stats, error)
	// FlushStats persists the in-memory counters. Counters are otherwise
	// only flushed on Close.
	FlushStats(ctx context.Context) error
	Clear(ctx context.Context) error
	Close() error
}

// counters tracks cache activity in memory between FlushStats calls.
type counters struct {
	mu        sync.Mutex
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

func (c *counters) hit()    { c.mu.Lock(); c.hits++; c.mu.Unlock() }
func (c *counters) miss()   { c.mu.Lock(); c.misses++; c.mu.Unlock() }
func (c *counters) set()    { c.mu.Lock(); c.sets++; c.mu.Unlock() }
func (c *counters) delete() { c.mu.Lock(); c.deletes++; c.mu.Unlock() }

func (c *counters) evict(n int) {
	c.mu.Lock()
	c.evictions += int64(n)
	c.mu.Unlock()
}

// snapshot returns the pending counters and, when reset is true, zeroes
// them so a flush does not double-count.
func (c *counters) snapshot(reset bool) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Sets:      c.sets,
		Deletes:   c.deletes,
		Evictions: c.evictions,
	}
	if reset {
		c.hits, c.misses, c.sets, c.deletes, c.evictions = 0, 0, 0, 0, 0
	}
	return s
}
