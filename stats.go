package rescache

import "sync/atomic"

type (
	// Stats is a snapshot of a cache's counters.
	Stats struct {
		// Items and Handles are current values;
		// the rest are totals since the cache was created.
		Items, Handles,
		Hits, Misses,
		Created, CreateFailures,
		Dropped, Vetoed,
		AdmissionDenied int64
	}
	// StatsSource is implemented by [Cache] and [MemoryCache].
	StatsSource interface {
		Stats() Stats
	}
	counters struct {
		items, handles,
		hits, misses,
		created, createFailures,
		dropped, vetoed,
		denied atomic.Int64
	}
)

// Stats returns a snapshot of the cache's counters.
// Unlike the rest of the cache, it is safe to call
// from other goroutines, e.g. a metrics scraper.
func (c *Cache[_]) Stats() Stats {
	return Stats{
		Items:           c.counters.items.Load(),
		Handles:         c.counters.handles.Load(),
		Hits:            c.counters.hits.Load(),
		Misses:          c.counters.misses.Load(),
		Created:         c.counters.created.Load(),
		CreateFailures:  c.counters.createFailures.Load(),
		Dropped:         c.counters.dropped.Load(),
		Vetoed:          c.counters.vetoed.Load(),
		AdmissionDenied: c.counters.denied.Load(),
	}
}
