// Package iterator defines the ordered cursor contract shared by the tree
// and the table.
package iterator

import "iter"

// Iterator represents a cursor over a dataset sorted by key.
// The iterator maintains a current position and moves forward in ascending
// key order.
//
// Usage:
//
//	for it.SeekFirst(); it.Valid(); it.Next() {
//	    key, val := it.Key(), it.Val()
//	    // process key, val
//	}
//	if err := it.Error(); err != nil {
//	    // handle error
//	}
type Iterator[K any, V any] interface {
	// Valid returns true if positioned at a valid key-value pair.
	// Returns false when not positioned; check Error() to distinguish the cause.
	Valid() bool

	// Error returns any error that occurred during operations.
	// Returns nil when not positioned due to normal conditions (initial state,
	// end reached, empty dataset). Returns non-nil for I/O failures and
	// corrupt pages.
	Error() error

	// Key returns the key at the current position.
	// Behavior is undefined if Valid() returns false.
	Key() K

	// Val returns the value at the current position.
	// A slice value is valid only until the next iterator operation.
	// Behavior is undefined if Valid() returns false.
	Val() V

	// Next advances to the next pair in ascending order.
	// Returns false at the end or on error.
	Next() bool

	// SeekFirst positions the iterator at the smallest key.
	// Returns false if the dataset is empty or an error occurred.
	SeekFirst() bool

	// Seek positions the iterator at the first key greater than or equal to key.
	Seek(key K) bool
}

// All returns a sequence over every pair from the first key.
// A failure ends the sequence; read it from it.Error() afterwards.
func All[K any, V any](it Iterator[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for ok := it.SeekFirst(); ok; ok = it.Next() {
			if !yield(it.Key(), it.Val()) {
				return
			}
		}
	}
}

// From returns a sequence over the pairs with keys greater than or equal to key.
func From[K any, V any](it Iterator[K, V], key K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for ok := it.Seek(key); ok; ok = it.Next() {
			if !yield(it.Key(), it.Val()) {
				return
			}
		}
	}
}
