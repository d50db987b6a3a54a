package rescache_test

import (
	"errors"
	"testing"

	"github.com/djdv/go-rescache"
	"github.com/stretchr/testify/require"
)

type (
	// testItem records every callback the cache makes.
	testItem struct {
		host     *memHost
		onEvict  func()
		key      string
		events   []string
		size     int64
		serial   int
		veto     bool
		tornDown bool
	}
	// valueItem is compared by value, so equal items
	// from different factories are indistinguishable.
	valueItem struct{ kind string }
	itemFactory struct {
		host    *memHost
		err     error
		created int
		size    int64
		veto    bool
	}
	// memHost is a [rescache.MemoryHost] whose usage
	// is the sum of live test item sizes.
	memHost struct {
		used, base  int64
		compactions int
	}
)

func (ti *testItem) AddedToCache()        { ti.events = append(ti.events, "added") }
func (ti *testItem) RefCountIncremented() { ti.events = append(ti.events, "inc") }
func (ti *testItem) RefCountDecremented() { ti.events = append(ti.events, "dec") }
func (ti *testItem) EvictionRequested() bool {
	ti.events = append(ti.events, "evict?")
	if ti.onEvict != nil {
		ti.onEvict()
	}
	if ti.veto {
		return false
	}
	ti.tornDown = true
	if ti.host != nil {
		ti.host.used -= ti.size
	}
	return true
}

func (valueItem) AddedToCache()           {}
func (valueItem) RefCountIncremented()    {}
func (valueItem) RefCountDecremented()    {}
func (valueItem) EvictionRequested() bool { return true }

func (ti *testItem) evictionRequests() int {
	var count int
	for _, event := range ti.events {
		if event == "evict?" {
			count++
		}
	}
	return count
}

func (f *itemFactory) CreateItem(d *rescache.Descriptor[*testItem]) (*testItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	item := &testItem{
		key:    d.QualifiedName(),
		serial: f.created,
		veto:   f.veto,
		host:   f.host,
		size:   f.size,
	}
	if f.host != nil {
		f.host.used += f.size
	}
	return item, nil
}

func (h *memHost) UsedMemory() int64 { return h.base + h.used }
func (h *memHost) Compact()          { h.compactions++ }

func newCache(tb testing.TB, policy rescache.Policy) *rescache.Cache[*testItem] {
	tb.Helper()
	cache, err := rescache.New[*testItem](policy)
	require.NoError(tb, err)
	return cache
}

func newDescriptor(
	tb testing.TB, name, qualifier string,
	factory rescache.Factory[*testItem],
) *rescache.Descriptor[*testItem] {
	tb.Helper()
	d, err := rescache.NewDescriptor(name, qualifier, factory)
	require.NoError(tb, err)
	return d
}

func mustAcquire(
	tb testing.TB,
	cache *rescache.Cache[*testItem],
	d *rescache.Descriptor[*testItem],
) *testItem {
	tb.Helper()
	item, err := d.GetHandle(cache)
	require.NoError(tb, err, "acquiring %s", d)
	require.NotNil(tb, item)
	return item
}

func mustRelease(
	tb testing.TB,
	d *rescache.Descriptor[*testItem],
	item *testItem,
) {
	tb.Helper()
	require.NoError(tb, d.ReleaseHandle(item), "releasing %s", d)
}

// acquireReleased creates each descriptor's item
// and leaves it cached without handles.
func acquireReleased(
	tb testing.TB,
	cache *rescache.Cache[*testItem],
	descriptors ...*rescache.Descriptor[*testItem],
) []*testItem {
	tb.Helper()
	items := make([]*testItem, len(descriptors))
	for i, d := range descriptors {
		items[i] = mustAcquire(tb, cache, d)
		mustRelease(tb, d, items[i])
	}
	return items
}

var errMissingAsset = errors.New("missing asset")
