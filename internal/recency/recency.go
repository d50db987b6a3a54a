// Package recency is a specialized adaption of `container/ring`
// used to keep cache entries in least-recently-used order.
package recency

import "iter"

type (
	// Node is an element of a [List].
	// The zero value is an unlinked node.
	Node[Value any] struct {
		next, prev *Node[Value]
		Value      Value
	}
	// List orders nodes from least recently used (front)
	// to most recently used (back).
	// The list is a ring closed over a sentinel node,
	// so the front is `root.next` and the back is `root.prev`.
	// The zero value is an empty list ready to use.
	List[Value any] struct {
		root   Node[Value]
		length int
	}
)

func (l *List[Value]) lazyInit() {
	if l.root.next == nil {
		l.root.next = &l.root
		l.root.prev = &l.root
	}
}

// link connects n after r and returns the original r.next.
func (r *Node[Value]) link(n *Node[Value]) *Node[Value] {
	next := r.next
	// Note: Cannot use multiple assignment because
	// evaluation order of LHS is not specified.
	r.next = n
	n.prev = r
	n.next = next
	next.prev = n
	return next
}

// unlink removes r from whatever ring it is a member of.
func (r *Node[Value]) unlink() {
	r.prev.next = r.next
	r.next.prev = r.prev
	r.next = nil
	r.prev = nil
}

// Linked reports whether the node is currently a member of a list.
func (r *Node[Value]) Linked() bool { return r.next != nil }

// Len returns the number of nodes in the list.
func (l *List[Value]) Len() int { return l.length }

// Front returns the least recently used node, or nil.
func (l *List[Value]) Front() *Node[Value] {
	if l.length == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the most recently used node, or nil.
func (l *List[Value]) Back() *Node[Value] {
	if l.length == 0 {
		return nil
	}
	return l.root.prev
}

// PushBack inserts a new node holding value at the back of the list.
func (l *List[Value]) PushBack(value Value) *Node[Value] {
	l.lazyInit()
	node := &Node[Value]{Value: value}
	l.root.prev.link(node)
	l.length++
	return node
}

// MoveToBack marks node as the most recently used.
// node must be a member of l.
func (l *List[Value]) MoveToBack(node *Node[Value]) {
	if l.root.prev == node {
		return
	}
	node.unlink()
	l.root.prev.link(node)
}

// Remove unlinks node from l.
// Removing a node that is not linked is a no-op.
func (l *List[Value]) Remove(node *Node[Value]) {
	if !node.Linked() {
		return
	}
	node.unlink()
	l.length--
}

// All returns an iterator over nodes from front to back.
// The node being yielded may be removed during iteration;
// other structural changes are undefined.
func (l *List[Value]) All() iter.Seq[*Node[Value]] {
	return func(yield func(*Node[Value]) bool) {
		if l.length == 0 {
			return
		}
		for node := l.root.next; node != &l.root; {
			next := node.next
			if !yield(node) {
				return
			}
			node = next
		}
	}
}

// Values returns an iterator over node values from front to back.
func (l *List[Value]) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for node := range l.All() {
			if !yield(node.Value) {
				return
			}
		}
	}
}
