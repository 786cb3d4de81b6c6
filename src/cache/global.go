package cache

import (
	"sync/atomic"

	"lod-engine/src/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultGlobalEntries bounds the cross-series cache
const DefaultGlobalEntries = 256

// -----------------------------------------------------------------------------
// GlobalLRU is the capacity-bounded cache shared by all series. It lets a user
// toggle between two detail levels without recomputing either.
// -----------------------------------------------------------------------------

type GlobalLRU struct {
	entries   *lru.Cache[string, *models.MDecimatedSeries]
	evictions atomic.Uint64
	purging   atomic.Bool
	onEvict   func(key string)
}

// -----------------------------------------------------------------------------

// NewGlobalLRU creates the cache; onEvict may be nil.
func NewGlobalLRU(capacity int, onEvict func(key string)) (*GlobalLRU, error) {
	if capacity <= 0 {
		capacity = DefaultGlobalEntries
	}
	g := &GlobalLRU{onEvict: onEvict}
	entries, err := lru.NewWithEvict[string, *models.MDecimatedSeries](capacity, g.evicted)
	if err != nil {
		return nil, err
	}
	g.entries = entries
	return g, nil
}

func (g *GlobalLRU) evicted(key string, _ *models.MDecimatedSeries) {
	if g.purging.Load() {
		return
	}
	g.evictions.Add(1)
	if g.onEvict != nil {
		g.onEvict(key)
	}
}

// -----------------------------------------------------------------------------

// Get returns an entry and marks it most recently used
func (g *GlobalLRU) Get(key string) (*models.MDecimatedSeries, bool) {
	return g.entries.Get(key)
}

// -----------------------------------------------------------------------------

// Add inserts or refreshes an entry, evicting the least recently used one when full
func (g *GlobalLRU) Add(key string, value *models.MDecimatedSeries) {
	g.entries.Add(key, value)
}

// -----------------------------------------------------------------------------

func (g *GlobalLRU) Len() int {
	return g.entries.Len()
}

// -----------------------------------------------------------------------------

func (g *GlobalLRU) Evictions() uint64 {
	return g.evictions.Load()
}

// -----------------------------------------------------------------------------

// Purge drops every entry. Purged entries are not counted as evictions.
func (g *GlobalLRU) Purge() {
	g.purging.Store(true)
	defer g.purging.Store(false)
	g.entries.Purge()
}
