package rescache

import (
	"runtime"
	"runtime/debug"
)

type (
	// MemoryHost reports coarse memory usage and can be asked to
	// reclaim memory. Both operations are advisory.
	MemoryHost interface {
		// UsedMemory returns allocated-minus-freed bytes.
		UsedMemory() int64
		// Compact requests a best-effort collection pass.
		Compact()
	}
	// RuntimeHost is a [MemoryHost] backed by the Go runtime.
	RuntimeHost struct{}
	// MemoryCache is a [Cache] that evicts least recently used
	// items before creating new ones while memory usage
	// exceeds a threshold.
	// Constructed by [NewMemoryCache].
	MemoryCache[T Resource] struct {
		*Cache[T]
		host      MemoryHost
		next      Admitter
		threshold int64
	}
)

// UsedMemory returns the bytes of allocated heap objects.
func (RuntimeHost) UsedMemory() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return int64(stats.HeapAlloc)
}

// Compact forces a garbage collection and returns
// as much memory to the operating system as possible.
func (RuntimeHost) Compact() { debug.FreeOSMemory() }

// NewMemoryCache creates a [MemoryCache].
// A threshold <= 0 disables the memory check.
// If host is nil, [RuntimeHost] is used.
// An admitter supplied via [WithAdmission] is consulted
// after the memory check passes.
func NewMemoryCache[T Resource](
	policy Policy, threshold int64,
	host MemoryHost, options ...Option,
) (*MemoryCache[T], error) {
	cache, err := New[T](policy, options...)
	if err != nil {
		return nil, err
	}
	if host == nil {
		host = RuntimeHost{}
	}
	memCache := &MemoryCache[T]{
		Cache:     cache,
		host:      host,
		next:      cache.admitter,
		threshold: threshold,
	}
	cache.admitter = AdmitterFunc(memCache.allowCreation)
	return memCache, nil
}

// Threshold returns the current memory threshold in bytes.
func (m *MemoryCache[_]) Threshold() int64 { return m.threshold }

// SetThreshold changes the memory threshold.
// A threshold <= 0 disables the memory check.
func (m *MemoryCache[_]) SetThreshold(threshold int64) { m.threshold = threshold }

// allowCreation frees least recently used items until
// usage is at or below the threshold.
// Usage is read before the new item exists, so the cache
// can only promise it tried to make room.
func (m *MemoryCache[_]) allowCreation(qualifiedName string) bool {
	if m.threshold > 0 {
		used := m.host.UsedMemory()
		for m.threshold > 0 &&
			used > m.threshold {
			if !m.FreeLeastRecentlyUsed() {
				m.log.Warn("memory threshold exceeded with nothing to evict",
					"key", qualifiedName,
					"used", used, "threshold", m.threshold)
				return false
			}
			m.host.Compact()
			used = m.host.UsedMemory()
			m.log.Debug("freed item for admission",
				"key", qualifiedName, "used", used)
		}
	}
	if m.next != nil {
		return m.next.AllowCreation(qualifiedName)
	}
	return true
}
