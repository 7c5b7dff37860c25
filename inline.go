package slabtape

// inlineSegment holds the first elements of a tape. It is allocated once by
// New and never reallocated, so pointers into it stay valid for the life of
// the tape.
//
// Bounds are the caller's responsibility.
type inlineSegment[T any] struct {
	slots []T
}

func newInlineSegment[T any](n int) inlineSegment[T] {
	if n == 0 {
		return inlineSegment[T]{}
	}
	return inlineSegment[T]{slots: make([]T, n)}
}

func (s *inlineSegment[T]) constructAt(i int, v T) { s.slots[i] = v }

// destroyAt resets slot i to the zero value so anything it referenced can be
// collected.
func (s *inlineSegment[T]) destroyAt(i int) {
	var zero T
	s.slots[i] = zero
}

func (s *inlineSegment[T]) ptr(i int) *T { return &s.slots[i] }

// reset destroys the first n slots.
func (s *inlineSegment[T]) reset(n int) { clear(s.slots[:n]) }
