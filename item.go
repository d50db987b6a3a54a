package rescache

import "fmt"

type (
	// Item is the lifecycle contract a cached payload offers the cache.
	// The methods are invoked only by the owning [Cache],
	// never by application code.
	Item interface {
		// AddedToCache is called exactly once,
		// right after the item is registered and before
		// the acquire that created it returns.
		AddedToCache()
		// RefCountIncremented is called on every successful acquire,
		// including the first (after AddedToCache).
		RefCountIncremented()
		// RefCountDecremented is called on every release,
		// before the cache considers eviction.
		RefCountDecremented()
		// EvictionRequested asks the item to leave the cache.
		// Returning true grants removal; the item must release
		// its underlying resources before returning.
		// Returning false vetoes eviction for the rest of the item's
		// lifetime; the cache will not ask again.
		EvictionRequested() bool
	}
	// Resource constrains cache payload types.
	// Items are tracked by identity, so pointer types are typical.
	// A factory returning an item equal to one already cached
	// fails with [ErrItemShared].
	Resource interface {
		comparable
		Item
	}
)

// State is the lifecycle position of an item relative to its cache.
type State uint8

const (
	// StateUncached items are not (yet) registered.
	StateUncached State = iota
	// StateCached items are registered and may be evicted.
	StateCached
	// StateEvicting items are being asked to leave.
	StateEvicting
	// StateRetained items vetoed eviction.
	// They stay registered and are never asked again.
	StateRetained
	// StateGone items were dropped from the registry.
	StateGone
)

func (s State) String() string {
	switch s {
	case StateUncached:
		return "uncached"
	case StateCached:
		return "cached"
	case StateEvicting:
		return "evicting"
	case StateRetained:
		return "retained"
	case StateGone:
		return "gone"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
