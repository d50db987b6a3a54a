package rescache

import "fmt"

type constError string

const (
	// ErrCacheBindingConflict is returned when a [Descriptor]
	// is used with a cache other than the one it was first bound to.
	// The descriptor cannot be used with the second cache;
	// callers must construct a fresh descriptor.
	ErrCacheBindingConflict = constError("descriptor is bound to a different cache")
	// ErrNotBound is returned when releasing through a [Descriptor]
	// that was never used to acquire a handle
	// (or whose cache no longer exists).
	ErrNotBound = constError("descriptor is not bound to a cache")
	// ErrItemCreationFailed wraps errors from a [Factory].
	// No partial state is left in the cache.
	ErrItemCreationFailed = constError("item creation failed")
	// ErrAdmissionDenied is returned when the cache's [Admitter]
	// refused to let a new item be created.
	ErrAdmissionDenied = constError("admission denied")
	// ErrDescriptorCollision describes a registry entry whose creating
	// descriptor does not match its key.
	// Keys are full qualified names, so acquires never return it;
	// debug builds panic if the registry is ever found in that state.
	ErrDescriptorCollision = constError("descriptor collision")
	// ErrItemShared wraps [ErrItemCreationFailed] when a factory returns
	// an item equal to one already cached under another key.
	ErrItemShared = constError("item is already cached under another key")
	// ErrInvalidDescriptor may be returned from [NewDescriptor].
	ErrInvalidDescriptor = constError("invalid descriptor")
	// ErrInvalidPolicy may be returned from [New] and [ParsePolicy].
	ErrInvalidPolicy = constError("invalid cleanup policy")
	// ErrNotCached is returned when releasing an item
	// that is not (or no longer) in the cache.
	ErrNotCached = constError("item is not cached")
	// ErrOverReleased is returned when releasing an item
	// that has no outstanding handles.
	ErrOverReleased = constError("item has no outstanding handles")
	// ErrReentrantAcquire is returned when a factory tries to acquire
	// the descriptor it is in the middle of creating, or an item
	// tries to acquire itself while being evicted.
	ErrReentrantAcquire = constError("reentrant acquire")
)

func (errStr constError) Error() string { return string(errStr) }

func bindingConflictError(key string) error {
	return fmt.Errorf("%w: %q", ErrCacheBindingConflict, key)
}

func creationError(key string, cause error) error {
	return fmt.Errorf("%w: %q: %w", ErrItemCreationFailed, key, cause)
}
