package slabtape

import "iter"

// Iterator is a forward position in a tape. The zero value is not usable;
// obtain one from Begin or End.
//
// An iterator is a plain index: it stays meaningful across pushes and pops,
// and two iterators are equal when they point at the same index of the same
// tape.
type Iterator[T any] struct {
	t *Tape[T]
	i int
}

// Begin returns an iterator at the first element.
func (t *Tape[T]) Begin() Iterator[T] { return Iterator[T]{t: t} }

// End returns an iterator one past the last element.
func (t *Tape[T]) End() Iterator[T] { return Iterator[T]{t: t, i: t.size} }

// Value returns the element at the iterator. It panics at End.
func (it Iterator[T]) Value() (T, error) { return it.t.At(it.i) }

// Ptr returns a pointer to the element at the iterator. See Tape.Ptr.
func (it Iterator[T]) Ptr() (*T, error) { return it.t.Ptr(it.i) }

// Set overwrites the element at the iterator. It panics at End.
func (it Iterator[T]) Set(v T) error { return it.t.Set(it.i, v) }

// Next advances the iterator by one element.
func (it *Iterator[T]) Next() { it.i++ }

// Index returns the tape index the iterator points at.
func (it Iterator[T]) Index() int { return it.i }

// Equal reports whether both iterators point at the same position.
func (it Iterator[T]) Equal(other Iterator[T]) bool {
	return it.t == other.t && it.i == other.i
}

// All returns an iterator over index/value pairs in push order.
//
// Iteration stops early if an evicted slab cannot be reloaded; check Err
// after the loop:
//
//	for i, v := range tp.All() {
//	    ...
//	}
//	if err := tp.Err(); err != nil {
//	    ...
//	}
func (t *Tape[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		t.err = nil
		for i := 0; i < t.size; i++ {
			v, err := t.At(i)
			if err != nil {
				t.err = err
				return
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// Backward returns an iterator over index/value pairs from the last element
// to the first, without removing them. Errors are reported like All.
func (t *Tape[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		t.err = nil
		for i := t.size - 1; i >= 0; i-- {
			if i >= t.size {
				continue
			}
			v, err := t.At(i)
			if err != nil {
				t.err = err
				return
			}
			if !yield(i, v) {
				return
			}
		}
	}
}
