package cache

import (
	"sync/atomic"

	"lod-engine/src/models"
)

// Tier reports where a lookup was answered
type Tier int

const (
	TierMiss Tier = iota
	TierMemo
	TierGlobal
)

func (t Tier) String() string {
	switch t {
	case TierMemo:
		return "memo"
	case TierGlobal:
		return "global"
	default:
		return "miss"
	}
}

// Stats is a snapshot of the cache counters
type Stats struct {
	Tier1Hits     uint64
	Tier2Hits     uint64
	Misses        uint64
	Evictions     uint64
	GlobalEntries int
}

type memoEntry struct {
	key    Key
	output *models.MDecimatedSeries
}

// -----------------------------------------------------------------------------
// RenderCache memoizes decimated output on two tiers: the last result of each
// series (tier 1) and the shared LRU (tier 2).
// -----------------------------------------------------------------------------

type RenderCache struct {
	memo      map[string]memoEntry
	global    *GlobalLRU
	tier1Hits atomic.Uint64
	tier2Hits atomic.Uint64
	misses    atomic.Uint64
}

// -----------------------------------------------------------------------------

func NewRenderCache(global *GlobalLRU) *RenderCache {
	return &RenderCache{
		memo:   make(map[string]memoEntry),
		global: global,
	}
}

// -----------------------------------------------------------------------------

// Lookup checks tier 1, then tier 2. A tier 2 hit is promoted to tier 1.
func (c *RenderCache) Lookup(key Key) (*models.MDecimatedSeries, Tier) {
	if e, ok := c.memo[key.SeriesID]; ok && e.key == key {
		c.tier1Hits.Add(1)
		return e.output, TierMemo
	}

	if out, ok := c.global.Get(key.String()); ok {
		c.memo[key.SeriesID] = memoEntry{key: key, output: out}
		c.tier2Hits.Add(1)
		return out, TierGlobal
	}

	c.misses.Add(1)
	return nil, TierMiss
}

// -----------------------------------------------------------------------------

// Store records a freshly built output in both tiers
func (c *RenderCache) Store(key Key, out *models.MDecimatedSeries) {
	c.memo[key.SeriesID] = memoEntry{key: key, output: out}
	c.global.Add(key.String(), out)
}

// -----------------------------------------------------------------------------

// Forget drops the tier 1 entry of a removed series. Tier 2 entries age out.
func (c *RenderCache) Forget(seriesID string) {
	delete(c.memo, seriesID)
}

// -----------------------------------------------------------------------------

// Reset empties both tiers. Counters are kept.
func (c *RenderCache) Reset() {
	c.memo = make(map[string]memoEntry)
	c.global.Purge()
}

// -----------------------------------------------------------------------------

func (c *RenderCache) Stats() Stats {
	return Stats{
		Tier1Hits:     c.tier1Hits.Load(),
		Tier2Hits:     c.tier2Hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.global.Evictions(),
		GlobalEntries: c.global.Len(),
	}
}
