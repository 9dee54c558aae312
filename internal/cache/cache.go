// Package cache implements the Truth Engine's Per-Item Cache: an ephemeral,
// rebuilt-per-run index of the most recent HISTORIC and SUPPLIER
// observation for each item. It is never persisted — every replay
// reconstructs it from scratch by scanning events in arrival order,
// which is exactly what makes replay idempotent.
package cache

import "github.com/donizo-labs/truthengine/internal/model"

// Observation is one cached price reading: a price and the timestamp it
// was observed at.
type Observation struct {
	PriceCents int64
	Timestamp  int64
}

// ItemCache holds the latest HISTORIC and latest SUPPLIER observation for
// one item. Either field may be absent (nil) if that source has never been
// seen for the item in this run.
type ItemCache struct {
	LatestHistoric *Observation
	LatestSupplier *Observation
}

// Cache is the full per-run, per-item cache. Zero value is ready to use.
type Cache struct {
	items map[string]*ItemCache
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{items: make(map[string]*ItemCache)}
}

// Lookup returns the cache entry for itemID, creating an empty one if the
// item has not been observed yet. The returned pointer is never nil, so
// callers in the Rule Evaluator can dereference its fields directly.
func (c *Cache) Lookup(itemID string) *ItemCache {
	if c.items == nil {
		c.items = make(map[string]*ItemCache)
	}
	entry, ok := c.items[itemID]
	if !ok {
		entry = &ItemCache{}
		c.items[itemID] = entry
	}
	return entry
}

// Observe updates the cache slot matching ev's source and item. Only
// HISTORIC and SUPPLIER events update the cache; HUMAN events never do
// (per §4.3, only the most recent observation per (source, item) is kept).
func (c *Cache) Observe(ev model.Event) {
	switch ev.Source {
	case model.SourceHistoric:
		c.Lookup(ev.ItemID).LatestHistoric = &Observation{
			PriceCents: ev.PriceCents,
			Timestamp:  ev.Timestamp,
		}
	case model.SourceSupplier:
		c.Lookup(ev.ItemID).LatestSupplier = &Observation{
			PriceCents: ev.PriceCents,
			Timestamp:  ev.Timestamp,
		}
	}
}
