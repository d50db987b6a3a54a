package rescache

import (
	"fmt"
	"strings"
	"weak"
)

type (
	// Factory materializes the item a [Descriptor] identifies.
	// It must not register the item with any cache.
	// It may acquire handles on other descriptors as ingredients,
	// and is then responsible for releasing them no later
	// than when the item's eviction is granted.
	Factory[T Resource] interface {
		CreateItem(*Descriptor[T]) (T, error)
	}
	// FactoryFunc adapts a function to the [Factory] interface.
	FactoryFunc[T Resource] func(*Descriptor[T]) (T, error)
	// Descriptor identifies a cacheable item by name and
	// optional qualifier, and knows how to create it.
	// A descriptor may be used with exactly one [Cache].
	// Constructed by [NewDescriptor].
	Descriptor[T Resource] struct {
		factory Factory[T]
		bound   weak.Pointer[Cache[T]]
		name, qualifier,
		qualifiedName string
	}
)

// QualifierDelimiter separates a name from its qualifier
// in a qualified name. Names may not contain it.
const QualifierDelimiter = "#"

// CreateItem calls fn.
func (fn FactoryFunc[T]) CreateItem(d *Descriptor[T]) (T, error) { return fn(d) }

// NewDescriptor creates a [Descriptor] for name.
// An empty qualifier means the descriptor is unqualified.
func NewDescriptor[T Resource](name, qualifier string, factory Factory[T]) (*Descriptor[T], error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is empty", ErrInvalidDescriptor)
	case strings.Contains(name, QualifierDelimiter):
		return nil, fmt.Errorf(
			"%w: name %q contains the qualifier delimiter %q",
			ErrInvalidDescriptor, name, QualifierDelimiter)
	case factory == nil:
		return nil, fmt.Errorf("%w: %q has no factory", ErrInvalidDescriptor, name)
	}
	qualifiedName := name
	if qualifier != "" {
		qualifiedName = name + QualifierDelimiter + qualifier
	}
	return &Descriptor[T]{
		name:          name,
		qualifier:     qualifier,
		qualifiedName: qualifiedName,
		factory:       factory,
	}, nil
}

// Name returns the unqualified name.
func (d *Descriptor[T]) Name() string { return d.name }

// Qualifier returns the qualifier, or the empty string if there is none.
func (d *Descriptor[T]) Qualifier() string { return d.qualifier }

// QualifiedName returns the cache key for d.
func (d *Descriptor[T]) QualifiedName() string { return d.qualifiedName }

func (d *Descriptor[T]) String() string { return d.qualifiedName }

// GetHandle binds d to cache (on first use) and acquires
// a handle to the item d describes.
func (d *Descriptor[T]) GetHandle(cache *Cache[T]) (T, error) {
	if cache == nil {
		var zero T
		return zero, fmt.Errorf("%w: %q: nil cache", ErrNotBound, d.qualifiedName)
	}
	return cache.Acquire(d)
}

// ReleaseHandle releases a handle previously returned by [Descriptor.GetHandle].
func (d *Descriptor[T]) ReleaseHandle(item T) error {
	var unbound weak.Pointer[Cache[T]]
	if d.bound == unbound {
		return fmt.Errorf("%w: %q", ErrNotBound, d.qualifiedName)
	}
	cache := d.bound.Value()
	if cache == nil {
		return fmt.Errorf("%w: %q: cache was released", ErrNotBound, d.qualifiedName)
	}
	return cache.Release(item)
}

// CreateItem calls the descriptor's factory.
// Factory errors and zero items are reported as [ErrItemCreationFailed].
func (d *Descriptor[T]) CreateItem() (T, error) {
	item, err := d.factory.CreateItem(d)
	if err != nil {
		var zero T
		return zero, creationError(d.qualifiedName, err)
	}
	var zero T
	if item == zero {
		return zero, fmt.Errorf("%w: %q: factory returned no item",
			ErrItemCreationFailed, d.qualifiedName)
	}
	return item, nil
}

// bind records cache as the only cache d may be used with.
func (d *Descriptor[T]) bind(cache *Cache[T]) error {
	var (
		unbound   weak.Pointer[Cache[T]]
		requested = weak.Make(cache)
	)
	switch d.bound {
	case unbound:
		d.bound = requested
	case requested:
	default:
		return bindingConflictError(d.qualifiedName)
	}
	return nil
}
