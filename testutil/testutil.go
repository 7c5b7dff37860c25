package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillFloat64 fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillFloat64(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// Op is one step of a randomized workload.
type Op uint8

const (
	OpPush Op = iota
	OpPop
	OpAt
)

func (o Op) String() string {
	switch o {
	case OpPush:
		return "push"
	case OpPop:
		return "pop"
	case OpAt:
		return "at"
	default:
		return "unknown"
	}
}

// Ops returns n operations. pushBias is the probability of a push; the rest
// is split evenly between pop and random access.
func (r *RNG) Ops(n int, pushBias float64) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]Op, n)
	for i := range ops {
		switch p := r.rand.Float64(); {
		case p < pushBias:
			ops[i] = OpPush
		case p < pushBias+(1-pushBias)/2:
			ops[i] = OpPop
		default:
			ops[i] = OpAt
		}
	}
	return ops
}

// Model is a reference LIFO stack with random access.
// The zero value is an empty model.
type Model[T any] struct {
	items []T
}

// Push appends v.
func (m *Model[T]) Push(v T) { m.items = append(m.items, v) }

// Pop removes and returns the last element. ok is false if m is empty.
func (m *Model[T]) Pop() (v T, ok bool) {
	if len(m.items) == 0 {
		return v, false
	}
	v = m.items[len(m.items)-1]
	m.items = m.items[:len(m.items)-1]
	return v, true
}

// At returns element i.
func (m *Model[T]) At(i int) T { return m.items[i] }

// Set overwrites element i.
func (m *Model[T]) Set(i int, v T) { m.items[i] = v }

// Len returns the number of elements.
func (m *Model[T]) Len() int { return len(m.items) }

// Items returns a copy of the elements in push order.
func (m *Model[T]) Items() []T { return append([]T(nil), m.items...) }
