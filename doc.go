// Package rescache implements a reference counted [Cache] of
// heavyweight, created-on-demand resources
// (textures, meshes, sounds, GPU objects).
//
// Callers describe a resource with a [Descriptor] and ask it for a handle.
// The cache returns the one shared item for that descriptor's qualified name,
// creating it through the descriptor's [Factory] on first use.
// Handles are given back with [Descriptor.ReleaseHandle] (or [Cache.Release]);
// what happens to an item without handles depends on the cache's [Policy].
//
// The cache does not know what its items are.
// Items implement the [Item] callbacks, and real teardown
// (closing a GPU handle, dropping a decoded buffer, stopping a stream)
// happens inside [Item.EvictionRequested] before it returns true.
//
// Glossary and invariants:
//
//   - Descriptor
//
//     Immutable key and factory for one resource.
//     Bound to exactly one cache on first use.
//
//   - Qualified name
//
//     The cache key: the name, or name + [QualifierDelimiter] + qualifier.
//     Names may not contain the delimiter, so distinct (name, qualifier)
//     pairs never share a key.
//
//   - Handle
//
//     One outstanding acquisition of an item.
//     An item's reference count equals its outstanding handles.
//
//   - Recency
//
//     Items are ordered from least to most recently used.
//     Creation and every successful acquire move an item to the back;
//     release never reorders.
//
//   - Eviction veto
//
//     An item asked to leave may refuse by returning false.
//     It is then [StateRetained] and never asked again automatically.
//
// Policies:
//
//   - [Immediate]
//
//     The last release asks the item to leave.
//
//   - [UserDefined]
//
//     Unreferenced items stay until [Cache.FreeLeastRecentlyUsed]
//     (or an [Admitter], such as the one installed by [NewMemoryCache])
//     removes them.
//
// Item state machine:
//
//	Uncached -> Cached            AddedToCache
//	Cached   -> Evicting          refcount 0 under Immediate, or reached by an LRU scan
//	Evicting -> Retained          EvictionRequested returned false
//	Evicting -> Gone              EvictionRequested returned true; registry entry removed
//
// A later acquire of a dropped item's descriptor creates a new instance.
//
// Concurrency:
//
// The cache is written for a single-threaded frame loop
// and performs no locking. If items are acquired from several goroutines,
// acquire, release, and eviction must share one mutual exclusion domain.
// [Cache.Stats] is the exception and may be read from any goroutine.
//
// Debug builds (`-tags rescache_debug`) panic on internal
// invariant violations, such as a registry entry filed under
// a key other than its descriptor's qualified name.
package rescache
