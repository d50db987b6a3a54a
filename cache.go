package rescache

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/djdv/go-rescache/internal/recency"
)

type (
	entry[T Resource] struct {
		descriptor *Descriptor[T]
		node       *recency.Node[*entry[T]]
		item       T
		refs       int
		state      State
	}
	// Cache is a registry of reference counted items
	// keyed by their descriptor's qualified name.
	// Concurrent access must be guarded by the caller;
	// only [Cache.Stats] may be called from other goroutines.
	// Constructed by [New].
	Cache[T Resource] struct {
		table    map[string]*entry[T]
		owners   map[T]*entry[T]
		creating map[string]struct{}
		admitter Admitter
		log      *slog.Logger
		recency  recency.List[*entry[T]]
		counters counters
		handles  int
		policy   Policy
	}
)

// New creates an empty [Cache] with the given cleanup policy.
func New[T Resource](policy Policy, options ...Option) (*Cache[T], error) {
	if !policy.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolicy, uint8(policy))
	}
	settings := makeSettings(options)
	return &Cache[T]{
		table:    make(map[string]*entry[T]),
		owners:   make(map[T]*entry[T]),
		creating: make(map[string]struct{}),
		admitter: settings.admitter,
		log:      settings.logger,
		policy:   policy,
	}, nil
}

// Acquire returns the item described by d, creating it if necessary,
// and increments its reference count.
// Every successful Acquire must be balanced by exactly one [Cache.Release].
func (c *Cache[T]) Acquire(d *Descriptor[T]) (T, error) {
	var zero T
	if err := d.bind(c); err != nil {
		return zero, err
	}
	key := d.qualifiedName
	entry, found := c.table[key]
	if found {
		// Keys are full qualified names, so a mismatch is an internal fault.
		assert(entry.descriptor.qualifiedName == key,
			"registry key does not match its item's descriptor")
		if entry.state == StateEvicting {
			return zero, fmt.Errorf("%w: %q is being evicted", ErrReentrantAcquire, key)
		}
		c.recency.MoveToBack(entry.node)
		c.counters.hits.Add(1)
	} else {
		c.counters.misses.Add(1)
		var err error
		if entry, err = c.create(d); err != nil {
			return zero, err
		}
	}
	entry.refs++
	entry.item.RefCountIncremented()
	c.handles++
	c.counters.handles.Store(int64(c.handles))
	return entry.item, nil
}

func (c *Cache[T]) create(d *Descriptor[T]) (*entry[T], error) {
	key := d.qualifiedName
	if _, busy := c.creating[key]; busy {
		return nil, fmt.Errorf("%w: %q", ErrReentrantAcquire, key)
	}
	if c.admitter != nil &&
		!c.admitter.AllowCreation(key) {
		c.counters.denied.Add(1)
		c.log.Warn("admission denied", "key", key, "items", len(c.table))
		return nil, fmt.Errorf("%w: %q", ErrAdmissionDenied, key)
	}
	c.creating[key] = struct{}{}
	item, err := d.CreateItem()
	delete(c.creating, key)
	if err != nil {
		c.counters.createFailures.Add(1)
		c.log.Warn("item creation failed", "key", key, "error", err)
		return nil, err
	}
	if _, shared := c.owners[item]; shared {
		c.counters.createFailures.Add(1)
		c.log.Warn("factory returned an item that is already cached", "key", key)
		return nil, creationError(key, ErrItemShared)
	}
	if debugging {
		_, raced := c.table[key]
		assert(!raced, "factory registered its own key")
	}
	entry := &entry[T]{
		descriptor: d,
		item:       item,
		state:      StateCached,
	}
	entry.node = c.recency.PushBack(entry)
	c.table[key] = entry
	c.owners[item] = entry
	c.counters.created.Add(1)
	c.counters.items.Store(int64(len(c.table)))
	c.log.Debug("item created", "key", key)
	item.AddedToCache()
	return entry, nil
}

// Release gives back a handle obtained from [Cache.Acquire].
// Under [Immediate], releasing the last handle asks the item to leave.
//
// Releasing an item that is not cached returns [ErrNotCached];
// releasing an item with no outstanding handles returns [ErrOverReleased].
// In both cases the cache is unchanged.
func (c *Cache[T]) Release(item T) error {
	entry, ok := c.owners[item]
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotCached, item)
	}
	if entry.refs <= 0 {
		return fmt.Errorf("%w: %q", ErrOverReleased, entry.descriptor.qualifiedName)
	}
	entry.refs--
	entry.item.RefCountDecremented()
	if c.policy == Immediate &&
		entry.refs == 0 {
		c.requestEviction(entry)
	}
	c.handles--
	c.counters.handles.Store(int64(c.handles))
	return nil
}

// FreeLeastRecentlyUsed scans from the least recently used item
// and drops the first unreferenced item that grants eviction.
// It reports false if no item could be dropped.
func (c *Cache[T]) FreeLeastRecentlyUsed() bool {
	for node := range c.recency.All() {
		entry := node.Value
		if entry.refs > 0 ||
			entry.state != StateCached {
			continue
		}
		if c.requestEviction(entry) {
			return true
		}
	}
	return false
}

// FreeAll drops every unreferenced item that grants eviction,
// and returns how many were dropped.
// Items with handles, and items that vetoed eviction, remain.
func (c *Cache[T]) FreeAll() int {
	// Evicting a composite may release (and drop) its ingredients,
	// so the scan restarts after every drop.
	var dropped int
	for c.FreeLeastRecentlyUsed() {
		dropped++
	}
	return dropped
}

// requestEviction asks the entry's item to leave
// and drops it if the request is granted.
func (c *Cache[T]) requestEviction(entry *entry[T]) bool {
	if entry.state != StateCached {
		return false
	}
	key := entry.descriptor.qualifiedName
	entry.state = StateEvicting
	if !entry.item.EvictionRequested() {
		entry.state = StateRetained
		c.counters.vetoed.Add(1)
		c.log.Info("eviction vetoed", "key", key)
		return false
	}
	assert(entry.state == StateEvicting, "item changed state during eviction")
	c.drop(entry)
	c.log.Debug("item dropped", "key", key)
	return true
}

func (c *Cache[T]) drop(entry *entry[T]) {
	delete(c.table, entry.descriptor.qualifiedName)
	delete(c.owners, entry.item)
	c.recency.Remove(entry.node)
	entry.state = StateGone
	c.counters.dropped.Add(1)
	c.counters.items.Store(int64(len(c.table)))
}

// Policy returns the cleanup policy the cache was created with.
func (c *Cache[_]) Policy() Policy { return c.policy }

// Len returns the number of cached items.
func (c *Cache[_]) Len() int { return len(c.table) }

// Handles returns the number of outstanding handles across all items.
func (c *Cache[_]) Handles() int { return c.handles }

// Contains reports whether the item described by d is cached.
func (c *Cache[T]) Contains(d *Descriptor[T]) bool {
	_, ok := c.table[d.qualifiedName]
	return ok
}

// RefCount returns the number of outstanding handles to item,
// or 0 if it is not cached.
func (c *Cache[T]) RefCount(item T) int {
	if entry, ok := c.owners[item]; ok {
		return entry.refs
	}
	return 0
}

// State returns the lifecycle state of item.
// Items that are not registered, including dropped ones,
// report [StateUncached].
func (c *Cache[T]) State(item T) State {
	if entry, ok := c.owners[item]; ok {
		return entry.state
	}
	return StateUncached
}

// Keys returns an iterator over qualified names,
// from least to most recently used.
func (c *Cache[_]) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for entry := range c.recency.Values() {
			if !yield(entry.descriptor.qualifiedName) {
				return
			}
		}
	}
}
