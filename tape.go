package slabtape

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/slabtape/codec"
	"github.com/hupe1980/slabtape/internal/conv"
	"github.com/hupe1980/slabtape/internal/spill"
	"github.com/hupe1980/slabtape/resource"
)

var tapeSeq atomic.Uint64

// Tape is an append-only container with stack discipline and random access.
//
// The first InlineSize elements live in an inline segment, the rest in a
// chain of slabs of SlabSize elements each. Slabs are never freed by Pop, so a
// tape that shrinks and grows again reuses its slabs. With eviction enabled at
// most MaxResidentSlabs slabs are kept in memory and the rest are spilled to a
// scratch file.
//
// A Tape must be created with New. It is not safe for concurrent use.
type Tape[T any] struct {
	id         uint64
	inline     inlineSegment[T]
	inlineSize int
	slabSize   int
	offHeap    bool

	slabs    []*slab[T] // slab handle = index
	tail     int        // current append slab, -1 before the first slab
	size     int
	capacity int

	evict   *evictor[T] // nil when eviction is disabled
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector

	mu     sync.Mutex
	err    error
	closed bool
	stats  counters
}

type counters struct {
	SlabAllocs int64
	SlabFrees  int64
	Evictions  int64
	Reloads    int64
}

// Stats is a snapshot of a tape's shape and traffic.
type Stats struct {
	Len              int
	Cap              int
	InlineSize       int
	SlabSize         int
	Slabs            int
	ResidentSlabs    int
	MaxResidentSlabs int // 0 when eviction is disabled

	SlabAllocs int64 // slab buffers allocated, including reloads
	SlabFrees  int64 // slab buffers released, including evictions
	Evictions  int64
	Reloads    int64

	ScratchFile  string // empty until the first eviction
	ScratchBytes int64  // current scratch file size
}

// New creates an empty tape.
func New[T any](opts ...Option) (*Tape[T], error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	if o.inlineSize < 0 {
		return nil, &ConfigError{Field: "InlineSize", Value: o.inlineSize, Reason: "must not be negative"}
	}
	if o.slabSize <= 0 {
		return nil, &ConfigError{Field: "SlabSize", Value: o.slabSize, Reason: "must be positive"}
	}
	if !o.compression.Valid() {
		return nil, &ConfigError{Field: "Compression", Value: o.compression, Reason: "unknown algorithm"}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}

	var zero T
	if _, err := conv.MulInt(o.slabSize, int(unsafe.Sizeof(zero))); err != nil {
		return nil, &ConfigError{Field: "SlabSize", Value: o.slabSize, Reason: err.Error(), cause: err}
	}

	if o.offHeap {
		if _, err := codec.NewRaw[T](); err != nil {
			return nil, &ConfigError{Field: "OffHeapSlabs", Value: true, Reason: err.Error(), cause: err}
		}
	}

	id := tapeSeq.Add(1)
	t := &Tape[T]{
		id:         id,
		inline:     newInlineSegment[T](o.inlineSize),
		inlineSize: o.inlineSize,
		slabSize:   o.slabSize,
		offHeap:    o.offHeap,
		tail:       -1,
		capacity:   o.inlineSize,
		rc:         o.controller,
		logger:     o.logger.WithTape(id),
		metrics:    o.metricsCollector,
	}

	if o.evict {
		c, ok := o.codec.(codec.Codec[T])
		if !ok {
			return nil, &ConfigError{
				Field:  "Eviction",
				Value:  fmt.Sprintf("%T", o.codec),
				Reason: fmt.Sprintf("codec does not encode %T", zero),
				cause:  ErrUnsupportedElement,
			}
		}
		if err := codec.Validate(c); err != nil {
			return nil, &ConfigError{Field: "Eviction", Value: c.Name(), Reason: err.Error(), cause: err}
		}
		if o.maxResidentSlabs <= 0 {
			return nil, &ConfigError{Field: "MaxResidentSlabs", Value: o.maxResidentSlabs, Reason: "must be positive"}
		}
		t.evict = newEvictor(c, o.maxResidentSlabs, spill.Config{
			Dir:         o.scratchDir,
			FS:          o.fs,
			Compression: o.compression,
			Controller:  o.controller,
		})
	}

	return t, nil
}

// Len returns the number of elements.
func (t *Tape[T]) Len() int { return t.size }

// Cap returns InlineSize plus SlabSize times the number of slabs.
func (t *Tape[T]) Cap() int { return t.capacity }

// Mutex returns a lock for callers sharing the tape between goroutines.
// The tape never locks it.
func (t *Tape[T]) Mutex() *sync.Mutex { return &t.mu }

// Err returns the error that stopped the last All or Backward iteration, if
// any.
func (t *Tape[T]) Err() error { return t.err }

// locate maps a tape index past the inline segment to a slab handle and an
// offset within that slab.
func (t *Tape[T]) locate(i int) (h, offset int) {
	j := i - t.inlineSize
	return j / t.slabSize, j % t.slabSize
}

func (t *Tape[T]) checkIndex(i int) {
	if i < 0 || i >= t.size {
		panic(fmt.Sprintf("slabtape: index %d out of range [0:%d]", i, t.size))
	}
}

func (t *Tape[T]) loaded(h int) error {
	if t.evict == nil {
		return nil
	}
	return t.ensureLoaded(h)
}

// Push appends v.
//
// Push allocates only when the inline segment and every existing slab are
// full. With eviction enabled it may write a cold slab to the scratch file
// first, or reload the tail slab if an earlier access evicted it.
func (t *Tape[T]) Push(v T) error {
	if t.closed {
		return ErrClosed
	}
	if t.size < t.inlineSize {
		t.inline.constructAt(t.size, v)
		t.size++
		return nil
	}

	h, offset := t.locate(t.size)
	if offset == 0 && t.size == t.capacity {
		if err := t.grow(); err != nil {
			return err
		}
	}
	if err := t.loaded(h); err != nil {
		return err
	}

	t.tail = h
	t.slabs[h].data[offset] = v
	t.size++
	return nil
}

func (t *Tape[T]) grow() error {
	h := len(t.slabs)
	if t.evict != nil {
		if _, err := conv.IntToUint32(h); err != nil {
			return fmt.Errorf("slabtape: too many slabs: %w", err)
		}
		if err := t.evictForGrowth(); err != nil {
			return err
		}
	}

	buf, err := t.allocSlab(h)
	if err != nil {
		return err
	}

	s := &slab[T]{}
	s.attach(buf)
	t.slabs = append(t.slabs, s)
	t.capacity += t.slabSize
	if t.evict != nil {
		t.evict.added(h)
	}
	return nil
}

// Pop removes and returns the last element. It panics if the tape is empty.
//
// The slab holding the element is kept for reuse. If it is evicted it is
// reloaded first; on failure the tape is unchanged.
func (t *Tape[T]) Pop() (T, error) {
	var zero T
	if t.closed {
		return zero, ErrClosed
	}
	if t.size == 0 {
		panic("slabtape: Pop on empty tape")
	}

	i := t.size - 1
	if i < t.inlineSize {
		v := *t.inline.ptr(i)
		t.inline.destroyAt(i)
		t.size--
		return v, nil
	}

	_, offset := t.locate(i)
	if err := t.loaded(t.tail); err != nil {
		return zero, err
	}
	s := t.slabs[t.tail]
	v := s.data[offset]
	s.data[offset] = zero
	t.size--
	if offset == 0 && t.tail > 0 {
		t.tail--
	}
	return v, nil
}

// Ptr returns a pointer to element i. It panics if i is out of range.
//
// Pointers into the inline segment stay valid until the element is popped.
// Pointers into a slab are invalidated when that slab is evicted, which any
// later Push, Pop or access on an evicting tape may do.
func (t *Tape[T]) Ptr(i int) (*T, error) {
	if t.closed {
		return nil, ErrClosed
	}
	t.checkIndex(i)
	if i < t.inlineSize {
		return t.inline.ptr(i), nil
	}
	h, offset := t.locate(i)
	if err := t.loaded(h); err != nil {
		return nil, err
	}
	return &t.slabs[h].data[offset], nil
}

// At returns element i. It panics if i is out of range.
func (t *Tape[T]) At(i int) (T, error) {
	p, err := t.Ptr(i)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// Set overwrites element i. It panics if i is out of range.
func (t *Tape[T]) Set(i int, v T) error {
	p, err := t.Ptr(i)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Back returns the last element. It panics if the tape is empty.
func (t *Tape[T]) Back() (T, error) {
	var zero T
	if t.closed {
		return zero, ErrClosed
	}
	if t.size == 0 {
		panic("slabtape: Back on empty tape")
	}
	i := t.size - 1
	if i < t.inlineSize {
		return *t.inline.ptr(i), nil
	}
	_, offset := t.locate(i)
	if err := t.loaded(t.tail); err != nil {
		return zero, err
	}
	return t.slabs[t.tail].data[offset], nil
}

// Clear removes every element, frees every slab and removes the scratch
// file. The tape stays usable.
func (t *Tape[T]) Clear() error {
	if t.closed {
		return ErrClosed
	}
	return t.clear()
}

func (t *Tape[T]) clear() error {
	t.inline.reset(min(t.size, t.inlineSize))
	for _, s := range t.slabs {
		if s.resident() {
			clear(s.data)
			t.freeSlab(s.buffer())
		}
	}
	clear(t.slabs)
	t.slabs = t.slabs[:0]
	t.tail = -1
	t.size = 0
	t.capacity = t.inlineSize
	t.err = nil

	if t.evict == nil {
		return nil
	}
	t.evict.reset()
	return t.closeSpill()
}

// Close releases all memory and removes the scratch file. Every later call
// except Close returns ErrClosed. Close is idempotent.
func (t *Tape[T]) Close() error {
	if t.closed {
		return nil
	}
	err := t.clear()
	t.closed = true
	t.inline = inlineSegment[T]{}
	return err
}

// Stats returns a snapshot of the tape's shape and traffic.
func (t *Tape[T]) Stats() Stats {
	st := Stats{
		Len:           t.size,
		Cap:           t.capacity,
		InlineSize:    t.inlineSize,
		SlabSize:      t.slabSize,
		Slabs:         len(t.slabs),
		ResidentSlabs: len(t.slabs),
		SlabAllocs:    t.stats.SlabAllocs,
		SlabFrees:     t.stats.SlabFrees,
		Evictions:     t.stats.Evictions,
		Reloads:       t.stats.Reloads,
	}
	if e := t.evict; e != nil {
		st.ResidentSlabs = e.active
		st.MaxResidentSlabs = e.maxResident
		if e.spill != nil {
			st.ScratchFile = e.spill.Path()
			st.ScratchBytes = e.spill.Stats().FileSize
		}
	}
	return st
}
