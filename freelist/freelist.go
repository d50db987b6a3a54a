// Package freelist recycles interchangeable, short-lived objects
// (pooled events, scheduler tasks) through a free list.
//
// Unlike [github.com/djdv/go-rescache.Cache], a free list has no notion
// of identity: any free object may satisfy any [List.Get].
// There is no reference counting and nothing is ever evicted;
// objects are simply handed back with [List.Put].
//
// Lists are not safe for concurrent use.
package freelist

type (
	// List holds recycled objects of one type.
	// Constructed by [New].
	List[T any] struct {
		allocate  func() T
		reset     func(T)
		free      []T
		capacity  int
		allocated int
	}
	// Option configures a [List].
	Option[T any] func(*List[T])
)

// Unbounded may be passed to [WithCapacity] to retain every recycled object.
const Unbounded = -1

// New creates an empty [List] that calls allocate
// whenever a [List.Get] finds no free object.
func New[T any](allocate func() T, options ...Option[T]) *List[T] {
	list := &List[T]{
		allocate: allocate,
		capacity: Unbounded,
	}
	for _, apply := range options {
		apply(list)
	}
	return list
}

// WithCapacity limits how many free objects the list retains.
// Objects recycled while the list is full are dropped.
func WithCapacity[T any](capacity int) Option[T] {
	return func(list *List[T]) {
		list.capacity = capacity
		if capacity > 0 {
			list.free = make([]T, 0, capacity)
		}
	}
}

// WithReset sets a function applied to objects as they are recycled.
func WithReset[T any](reset func(T)) Option[T] {
	return func(list *List[T]) { list.reset = reset }
}

// Get returns a recycled object, or a newly allocated one.
func (list *List[T]) Get() T {
	if last := len(list.free) - 1; last >= 0 {
		object := list.free[last]
		var zero T
		list.free[last] = zero
		list.free = list.free[:last]
		return object
	}
	list.allocated++
	return list.allocate()
}

// Put recycles object. It reports false if the list was full
// and the object was dropped instead.
func (list *List[T]) Put(object T) bool {
	if list.capacity != Unbounded &&
		len(list.free) >= list.capacity {
		return false
	}
	if list.reset != nil {
		list.reset(object)
	}
	list.free = append(list.free, object)
	return true
}

// Len returns the number of free objects.
func (list *List[_]) Len() int { return len(list.free) }

// Allocated returns how many objects the allocate function has produced.
func (list *List[_]) Allocated() int { return list.allocated }
