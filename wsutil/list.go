package wsutil

import "sync"

// List is an insertion-ordered, mutex-protected sequence with a removal
// callback, replacing the teacher C++ original's intrusive singly-linked
// list (spec.md §9). Used for header lists, handler chains, and WebSocket
// client lists — anywhere iteration order is
// observable (first match wins) and removal must run a destructor.
type List[T any] struct {
	mu       sync.Mutex
	items    []T
	onRemove func(T)
}

// NewList creates an empty List. onRemove may be nil.
func NewList[T any](onRemove func(T)) *List[T] {
	return &List[T]{onRemove: onRemove}
}

// Add appends item to the end of the list.
func (l *List[T]) Add(item T) {
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
}

// Len returns the current number of items.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// ForEach calls fn for each item in insertion order, stopping early if fn
// returns false. ForEach takes a snapshot so fn may itself call
// Add/Remove without deadlocking.
func (l *List[T]) ForEach(fn func(T) bool) {
	l.mu.Lock()
	snapshot := append([]T(nil), l.items...)
	l.mu.Unlock()
	for _, item := range snapshot {
		if !fn(item) {
			return
		}
	}
}

// Find returns the first item matching pred, in insertion order.
func (l *List[T]) Find(pred func(T) bool) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// RemoveMatch removes the first item matching pred, invoking onRemove on
// it, and reports whether anything was removed.
func (l *List[T]) RemoveMatch(pred func(T) bool) bool {
	l.mu.Lock()
	idx := -1
	for i, item := range l.items {
		if pred(item) {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	removed := l.items[idx]
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	l.mu.Unlock()
	if l.onRemove != nil {
		l.onRemove(removed)
	}
	return true
}

// RemoveAllMatching removes every item matching pred, invoking onRemove
// on each, and returns how many were removed.
func (l *List[T]) RemoveAllMatching(pred func(T) bool) int {
	l.mu.Lock()
	var kept, removed []T
	for _, item := range l.items {
		if pred(item) {
			removed = append(removed, item)
		} else {
			kept = append(kept, item)
		}
	}
	l.items = kept
	l.mu.Unlock()
	for _, item := range removed {
		if l.onRemove != nil {
			l.onRemove(item)
		}
	}
	return len(removed)
}

// Free removes every item, invoking onRemove on each, and empties the list.
func (l *List[T]) Free() {
	l.mu.Lock()
	items := l.items
	l.items = nil
	l.mu.Unlock()
	if l.onRemove != nil {
		for _, item := range items {
			l.onRemove(item)
		}
	}
}

// Snapshot returns a copy of the current items in insertion order.
func (l *List[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.items...)
}
