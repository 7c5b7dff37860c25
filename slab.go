package slabtape

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/slabtape/codec"
	"github.com/hupe1980/slabtape/internal/mmap"
)

// slab is one fixed-size chunk of the chain. Exactly one of data and the
// on-disk location is valid: data != nil iff !onDisk.
type slab[T any] struct {
	data    []T
	mapping *mmap.Mapping // non-nil for off-heap slabs

	onDisk     bool
	diskOffset int64
	diskLen    int
}

func (s *slab[T]) resident() bool { return !s.onDisk }

// slabBuffer is the storage behind one resident slab.
type slabBuffer[T any] struct {
	data    []T
	mapping *mmap.Mapping
}

func (t *Tape[T]) slabBytes() int64 {
	var zero T
	return int64(t.slabSize) * int64(unsafe.Sizeof(zero))
}

// allocSlab returns a buffer for one slab, charging it to the resource
// controller. When the controller refuses and eviction is enabled, one
// resident slab other than keep is evicted and the charge retried once.
func (t *Tape[T]) allocSlab(keep int) (slabBuffer[T], error) {
	bytes := t.slabBytes()

	if err := t.rc.AcquireMemory(bytes); err != nil {
		if t.evict == nil {
			return slabBuffer[T]{}, fmt.Errorf("%w: slab of %d bytes", err, bytes)
		}
		victim := t.evict.pickVictim(keep)
		if victim < 0 {
			return slabBuffer[T]{}, fmt.Errorf("%w: slab of %d bytes, nothing to evict", err, bytes)
		}
		if err := t.evictSlab(victim); err != nil {
			return slabBuffer[T]{}, err
		}
		if err := t.rc.AcquireMemory(bytes); err != nil {
			return slabBuffer[T]{}, fmt.Errorf("%w: slab of %d bytes", err, bytes)
		}
	}

	var buf slabBuffer[T]
	if t.offHeap && bytes > 0 {
		m, err := mmap.MapAnon(int(bytes))
		if err != nil {
			t.rc.ReleaseMemory(bytes)
			return slabBuffer[T]{}, fmt.Errorf("slabtape: map slab: %w", err)
		}
		buf = slabBuffer[T]{data: codec.SliceOf[T](m.Bytes(), t.slabSize), mapping: m}
	} else {
		buf = slabBuffer[T]{data: make([]T, t.slabSize)}
	}

	t.stats.SlabAllocs++
	t.metrics.RecordSlabAlloc(int(bytes))
	return buf, nil
}

// freeSlab releases a buffer obtained from allocSlab.
func (t *Tape[T]) freeSlab(buf slabBuffer[T]) {
	if buf.mapping != nil {
		if err := buf.mapping.Close(); err != nil {
			t.logger.Warn("unmap slab failed", "error", err)
		}
	}
	t.rc.ReleaseMemory(t.slabBytes())
	t.stats.SlabFrees++
}

func (s *slab[T]) buffer() slabBuffer[T] {
	return slabBuffer[T]{data: s.data, mapping: s.mapping}
}

func (s *slab[T]) attach(buf slabBuffer[T]) {
	s.data = buf.data
	s.mapping = buf.mapping
	s.onDisk = false
}

func (s *slab[T]) detach(offset int64, n int) {
	s.data = nil
	s.mapping = nil
	s.onDisk = true
	s.diskOffset = offset
	s.diskLen = n
}
