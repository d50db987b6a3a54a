package rescache_test

import (
	"slices"
	"testing"

	"github.com/djdv/go-rescache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Run("invalid policy", invalidPolicy)
	t.Run("sharing", sharing)
	t.Run("callback order", callbackOrder)
	t.Run("balanced lifecycle", balancedLifecycle)
	t.Run("deferred cleanup", deferredCleanup)
	t.Run("eviction order", evictionOrder)
	t.Run("eviction veto", evictionVeto)
	t.Run("veto is permanent", vetoIsPermanent)
	t.Run("referenced items survive scans", referencedSurvive)
	t.Run("free all", freeAll)
	t.Run("release errors", releaseErrors)
	t.Run("creation failure", creationFailure)
	t.Run("binding", binding)
	t.Run("nested acquisition", nestedAcquisition)
	t.Run("reentrant acquisition", reentrantAcquisition)
	t.Run("acquire while evicting", acquireWhileEvicting)
	t.Run("shared items", sharedItems)
	t.Run("admission hook", admissionHook)
	t.Run("stats", stats)
	t.Run("rock scenario", rockScenario)
}

func invalidPolicy(t *testing.T) {
	t.Parallel()
	cache, err := rescache.New[*testItem](rescache.Policy(42))
	assert.Nil(t, cache)
	require.ErrorIs(t, err, rescache.ErrInvalidPolicy)
}

func sharing(t *testing.T) {
	t.Parallel()
	var (
		cache   = newCache(t, rescache.Immediate)
		factory = new(itemFactory)
		first   = newDescriptor(t, "mesh", "lowpoly", factory)
		second  = newDescriptor(t, "mesh", "lowpoly", factory)
		other   = newDescriptor(t, "mesh", "highpoly", factory)
	)
	a := mustAcquire(t, cache, first)
	b := mustAcquire(t, cache, second)
	require.Same(t, a, b, "equal qualified names must share one item")
	assert.Equal(t, 2, cache.RefCount(a))
	c := mustAcquire(t, cache, other)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, factory.created)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 3, cache.Handles())
	assert.True(t, cache.Contains(first))
	assert.True(t, cache.Contains(second))
}

func callbackOrder(t *testing.T) {
	t.Parallel()
	var (
		cache = newCache(t, rescache.Immediate)
		d     = newDescriptor(t, "sound", "", new(itemFactory))
		item  = mustAcquire(t, cache, d)
	)
	mustAcquire(t, cache, d)
	mustRelease(t, d, item)
	mustRelease(t, d, item)
	want := []string{"added", "inc", "inc", "dec", "dec", "evict?"}
	assert.Equal(t, want, item.events)
	assert.True(t, item.tornDown)
	assert.Zero(t, cache.Len())
}

func balancedLifecycle(t *testing.T) {
	t.Parallel()
	const handles = 5
	var (
		cache   = newCache(t, rescache.Immediate)
		factory = new(itemFactory)
		d       = newDescriptor(t, "texture", "bricks", factory)
		items   = make([]*testItem, handles)
	)
	for i := range items {
		items[i] = mustAcquire(t, cache, d)
	}
	first := items[0]
	assert.Equal(t, handles, cache.RefCount(first))
	for i, item := range items {
		mustRelease(t, d, item)
		if i < handles-1 {
			require.Truef(t, cache.Contains(d),
				"dropped with %d handles outstanding", handles-1-i)
		}
	}
	assert.False(t, cache.Contains(d))
	assert.Zero(t, cache.Len())
	assert.Zero(t, cache.Handles())
	assert.Equal(t, rescache.StateUncached, cache.State(first))

	again := mustAcquire(t, cache, d)
	assert.NotSame(t, first, again, "dropped items must not be resurrected")
	assert.Equal(t, []string{"added", "inc"}, again.events)
	assert.Equal(t, 2, factory.created)
}

func deferredCleanup(t *testing.T) {
	t.Parallel()
	var (
		cache = newCache(t, rescache.UserDefined)
		d     = newDescriptor(t, "texture", "", new(itemFactory))
		item  = mustAcquire(t, cache, d)
	)
	mustRelease(t, d, item)
	require.True(t, cache.Contains(d), "user defined policy dropped on release")
	assert.Zero(t, item.evictionRequests())
	assert.Equal(t, rescache.StateCached, cache.State(item))

	require.True(t, cache.FreeLeastRecentlyUsed())
	assert.False(t, cache.Contains(d))
	assert.True(t, item.tornDown)
	assert.False(t, cache.FreeLeastRecentlyUsed(), "empty cache freed an item")
}

func evictionOrder(t *testing.T) {
	t.Parallel()
	var (
		cache   = newCache(t, rescache.UserDefined)
		factory = new(itemFactory)
		a       = newDescriptor(t, "A", "", factory)
		b       = newDescriptor(t, "B", "", factory)
		c       = newDescriptor(t, "C", "", factory)
		items   = acquireReleased(t, cache, a, b, c)
	)
	checkKeys(t, cache, []string{"A", "B", "C"}, "after creation")
	acquireReleased(t, cache, a)
	checkKeys(t, cache, []string{"B", "C", "A"}, "after reacquiring A")

	require.True(t, cache.FreeLeastRecentlyUsed())
	assert.True(t, items[1].tornDown, "B should be least recently used")
	assert.False(t, items[0].tornDown)
	assert.False(t, items[2].tornDown)
	checkKeys(t, cache, []string{"C", "A"}, "after eviction")
}

func evictionVeto(t *testing.T) {
	t.Parallel()
	var (
		cache    = newCache(t, rescache.UserDefined)
		stubborn = newDescriptor(t, "gpu", "framebuffer", &itemFactory{veto: true})
		willing  = newDescriptor(t, "gpu", "vertexbuffer", new(itemFactory))
		items    = acquireReleased(t, cache, stubborn, willing)
	)
	require.True(t, cache.FreeLeastRecentlyUsed(), "scan did not continue past a veto")
	assert.True(t, cache.Contains(stubborn))
	assert.False(t, cache.Contains(willing))
	assert.Equal(t, rescache.StateRetained, cache.State(items[0]))
	assert.False(t, items[0].tornDown)
	assert.True(t, items[1].tornDown)
}

func vetoIsPermanent(t *testing.T) {
	t.Parallel()
	for _, policy := range []rescache.Policy{
		rescache.Immediate,
		rescache.UserDefined,
	} {
		t.Run(policy.String(), func(t *testing.T) {
			t.Parallel()
			var (
				cache = newCache(t, policy)
				d     = newDescriptor(t, "stream", "music", &itemFactory{veto: true})
				item  = mustAcquire(t, cache, d)
			)
			mustRelease(t, d, item)
			cache.FreeLeastRecentlyUsed()
			// Reacquiring keeps the same instance; it is never asked again.
			again := mustAcquire(t, cache, d)
			require.Same(t, item, again)
			mustRelease(t, d, again)
			assert.False(t, cache.FreeLeastRecentlyUsed())
			assert.Zero(t, cache.FreeAll())
			assert.Equal(t, 1, item.evictionRequests())
			assert.Equal(t, rescache.StateRetained, cache.State(item))
		})
	}
}

func referencedSurvive(t *testing.T) {
	t.Parallel()
	var (
		cache = newCache(t, rescache.UserDefined)
		d     = newDescriptor(t, "held", "", new(itemFactory))
		item  = mustAcquire(t, cache, d)
	)
	assert.False(t, cache.FreeLeastRecentlyUsed())
	assert.Zero(t, item.evictionRequests())
	mustRelease(t, d, item)
	assert.True(t, cache.FreeLeastRecentlyUsed())
}

func freeAll(t *testing.T) {
	t.Parallel()
	var (
		cache   = newCache(t, rescache.UserDefined)
		factory = new(itemFactory)
		held    = newDescriptor(t, "held", "", factory)
		vetoed  = newDescriptor(t, "vetoed", "", &itemFactory{veto: true})
		loose   = []*rescache.Descriptor[*testItem]{
			newDescriptor(t, "a", "", factory),
			newDescriptor(t, "b", "", factory),
			newDescriptor(t, "c", "", factory),
		}
	)
	mustAcquire(t, cache, held)
	acquireReleased(t, cache, vetoed)
	acquireReleased(t, cache, loose...)
	assert.Equal(t, len(loose), cache.FreeAll())
	checkKeys(t, cache, []string{"held", "vetoed"}, "after freeing all")
}

func releaseErrors(t *testing.T) {
	t.Parallel()
	var (
		cache = newCache(t, rescache.UserDefined)
		d     = newDescriptor(t, "once", "", new(itemFactory))
		item  = mustAcquire(t, cache, d)
	)
	mustRelease(t, d, item)
	require.ErrorIs(t, cache.Release(item), rescache.ErrOverReleased)
	assert.Zero(t, cache.Handles(), "over-release changed the handle count")
	assert.Zero(t, item.evictionRequests())

	require.True(t, cache.FreeLeastRecentlyUsed())
	require.ErrorIs(t, cache.Release(item), rescache.ErrNotCached)
	require.ErrorIs(t, cache.Release(&testItem{}), rescache.ErrNotCached)
}

func creationFailure(t *testing.T) {
	t.Parallel()
	cache := newCache(t, rescache.Immediate)
	t.Run("factory error", func(t *testing.T) {
		d := newDescriptor(t, "missing", "", &itemFactory{err: errMissingAsset})
		item, err := d.GetHandle(cache)
		assert.Nil(t, item)
		require.ErrorIs(t, err, rescache.ErrItemCreationFailed)
		require.ErrorIs(t, err, errMissingAsset)
	})
	t.Run("nil item", func(t *testing.T) {
		d := newDescriptor(t, "empty", "",
			rescache.FactoryFunc[*testItem](func(*rescache.Descriptor[*testItem]) (*testItem, error) {
				return nil, nil
			}))
		_, err := d.GetHandle(cache)
		require.ErrorIs(t, err, rescache.ErrItemCreationFailed)
	})
	assert.Zero(t, cache.Len())
	assert.Zero(t, cache.Handles())
	assert.Equal(t, int64(2), cache.Stats().CreateFailures)
}

func binding(t *testing.T) {
	t.Parallel()
	var (
		first  = newCache(t, rescache.Immediate)
		second = newCache(t, rescache.Immediate)
		d      = newDescriptor(t, "bound", "", new(itemFactory))
	)
	require.ErrorIs(t, d.ReleaseHandle(&testItem{}), rescache.ErrNotBound)
	_, err := d.GetHandle(nil)
	require.ErrorIs(t, err, rescache.ErrNotBound)

	item := mustAcquire(t, first, d)
	_, err = d.GetHandle(second)
	require.ErrorIs(t, err, rescache.ErrCacheBindingConflict)
	_, err = second.Acquire(d)
	require.ErrorIs(t, err, rescache.ErrCacheBindingConflict)
	assert.Zero(t, second.Len())

	mustRelease(t, d, item)
	assert.Zero(t, first.Len())
	// Binding outlives the item.
	_, err = d.GetHandle(second)
	require.ErrorIs(t, err, rescache.ErrCacheBindingConflict)
}

func nestedAcquisition(t *testing.T) {
	t.Parallel()
	var (
		cache      = newCache(t, rescache.Immediate)
		ingredient = newDescriptor(t, "texture", "diffuse", new(itemFactory))
		texture    *testItem
		composite  = newDescriptor(t, "material", "",
			rescache.FactoryFunc[*testItem](func(d *rescache.Descriptor[*testItem]) (*testItem, error) {
				var err error
				if texture, err = ingredient.GetHandle(cache); err != nil {
					return nil, err
				}
				return &testItem{key: d.QualifiedName()}, nil
			}))
	)
	material := mustAcquire(t, cache, composite)
	require.NotNil(t, texture)
	assert.Equal(t, 1, cache.RefCount(texture))
	checkKeys(t, cache, []string{"texture#diffuse", "material"}, "after nested creation")

	mustRelease(t, composite, material)
	require.True(t, material.tornDown)
	// The composite owned the ingredient handle; release it as its teardown would.
	mustRelease(t, ingredient, texture)
	assert.Zero(t, cache.Len())
}

func reentrantAcquisition(t *testing.T) {
	t.Parallel()
	var (
		cache = newCache(t, rescache.Immediate)
		self  *rescache.Descriptor[*testItem]
	)
	var attempts int
	self = newDescriptor(t, "ouroboros", "",
		rescache.FactoryFunc[*testItem](func(d *rescache.Descriptor[*testItem]) (*testItem, error) {
			attempts++
			if attempts == 1 {
				if _, err := self.GetHandle(cache); err != nil {
					return nil, err
				}
			}
			return &testItem{key: d.QualifiedName()}, nil
		}))
	_, err := self.GetHandle(cache)
	require.ErrorIs(t, err, rescache.ErrReentrantAcquire)
	require.ErrorIs(t, err, rescache.ErrItemCreationFailed)
	assert.Zero(t, cache.Len())
	assert.Zero(t, cache.Handles())

	// The guard is cleared after a failed creation.
	item := mustAcquire(t, cache, self)
	assert.Equal(t, 2, attempts)
	mustRelease(t, self, item)
	assert.Zero(t, cache.Len())
}

func acquireWhileEvicting(t *testing.T) {
	t.Parallel()
	var (
		cache   = newCache(t, rescache.Immediate)
		d       = newDescriptor(t, "phoenix", "", new(itemFactory))
		item    = mustAcquire(t, cache, d)
		revived *testItem
		err     error
	)
	item.onEvict = func() { revived, err = d.GetHandle(cache) }
	mustRelease(t, d, item)

	require.ErrorIs(t, err, rescache.ErrReentrantAcquire)
	assert.Nil(t, revived)
	assert.True(t, item.tornDown)
	assert.Zero(t, cache.Len())
	assert.Zero(t, cache.Handles())
	assert.Equal(t, rescache.StateUncached, cache.State(item))
}

func sharedItems(t *testing.T) {
	t.Parallel()
	cache, err := rescache.New[valueItem](rescache.UserDefined)
	require.NoError(t, err)
	var (
		factory = rescache.FactoryFunc[valueItem](func(*rescache.Descriptor[valueItem]) (valueItem, error) {
			return valueItem{kind: "mesh"}, nil
		})
		newValueDescriptor = func(name string) *rescache.Descriptor[valueItem] {
			d, err := rescache.NewDescriptor(name, "", rescache.Factory[valueItem](factory))
			require.NoError(t, err)
			return d
		}
		a = newValueDescriptor("a")
		b = newValueDescriptor("b")
	)
	item, err := a.GetHandle(cache)
	require.NoError(t, err)

	_, err = b.GetHandle(cache)
	require.ErrorIs(t, err, rescache.ErrItemShared)
	require.ErrorIs(t, err, rescache.ErrItemCreationFailed)
	assert.False(t, cache.Contains(b))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, cache.Handles())
	assert.Equal(t, 1, cache.RefCount(item))
	assert.Equal(t, int64(1), cache.Stats().CreateFailures)

	require.NoError(t, a.ReleaseHandle(item))
	assert.Zero(t, cache.Handles())
	require.True(t, cache.FreeLeastRecentlyUsed())
	assert.Zero(t, cache.Len())
}

func admissionHook(t *testing.T) {
	t.Parallel()
	var asked []string
	cache, err := rescache.New[*testItem](rescache.Immediate,
		rescache.WithAdmission(rescache.AdmitterFunc(func(key string) bool {
			asked = append(asked, key)
			return key != "forbidden"
		})))
	require.NoError(t, err)
	var (
		factory   = new(itemFactory)
		allowed   = newDescriptor(t, "allowed", "", factory)
		forbidden = newDescriptor(t, "forbidden", "", factory)
	)
	item := mustAcquire(t, cache, allowed)
	mustAcquire(t, cache, allowed) // Hits are not admission checked.
	_, err = forbidden.GetHandle(cache)
	require.ErrorIs(t, err, rescache.ErrAdmissionDenied)
	assert.Equal(t, []string{"allowed", "forbidden"}, asked)
	assert.Equal(t, 1, factory.created)
	assert.Equal(t, 2, cache.RefCount(item))
}

func stats(t *testing.T) {
	t.Parallel()
	var (
		cache  = newCache(t, rescache.Immediate)
		d      = newDescriptor(t, "counted", "", new(itemFactory))
		vetoed = newDescriptor(t, "vetoed", "", &itemFactory{veto: true})
	)
	item := mustAcquire(t, cache, d)
	mustAcquire(t, cache, d)
	mustRelease(t, d, item)
	assert.Equal(t, rescache.Stats{
		Items: 1, Handles: 1,
		Hits: 1, Misses: 1,
		Created: 1,
	}, cache.Stats())
	mustRelease(t, d, item)
	acquireReleased(t, cache, vetoed)
	assert.Equal(t, rescache.Stats{
		Items: 1, Handles: 0,
		Hits: 1, Misses: 2,
		Created: 2, Dropped: 1, Vetoed: 1,
	}, cache.Stats())
}

func rockScenario(t *testing.T) {
	t.Parallel()
	var (
		cache = newCache(t, rescache.Immediate)
		rock  = newDescriptor(t, "rock", "granite", new(itemFactory))
		first = mustAcquire(t, cache, rock)
	)
	assert.Equal(t, 1, cache.RefCount(first))
	require.Same(t, first, mustAcquire(t, cache, rock))
	assert.Equal(t, 2, cache.RefCount(first))
	mustRelease(t, rock, first)
	assert.Equal(t, 1, cache.RefCount(first))
	assert.True(t, cache.Contains(rock))
	mustRelease(t, rock, first)
	assert.False(t, cache.Contains(rock))
	assert.Equal(t, 1, first.evictionRequests())
	second := mustAcquire(t, cache, rock)
	assert.NotSame(t, first, second)
}

func checkKeys(
	tb testing.TB,
	cache *rescache.Cache[*testItem],
	want []string, msg string,
) {
	tb.Helper()
	got := slices.Collect(cache.Keys())
	require.Equal(tb, want, got, "unexpected recency order %s", msg)
}
