package slabtape

import (
	"runtime"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/slabtape/codec"
	"github.com/hupe1980/slabtape/internal/spill"
)

// evictor is the eviction state of a tape. A tape without eviction has a nil
// evictor and never reaches the code in this file.
type evictor[T any] struct {
	codec       codec.Codec[T]
	maxResident int
	active      int             // resident slabs
	resident    *roaring.Bitmap // handles of resident slabs

	spillCfg spill.Config
	spill    *spill.Manager // created on first eviction
	cleanup  runtime.Cleanup
	buf      []byte // one encoded slab
}

func newEvictor[T any](c codec.Codec[T], maxResident int, cfg spill.Config) *evictor[T] {
	return &evictor[T]{
		codec:       c,
		maxResident: maxResident,
		resident:    roaring.New(),
		spillCfg:    cfg,
	}
}

// pickVictim returns the lowest resident slab handle other than keep, or -1
// if there is none.
func (e *evictor[T]) pickVictim(keep int) int {
	it := e.resident.Iterator()
	for it.HasNext() {
		h := int(it.Next())
		if h != keep {
			return h
		}
	}
	return -1
}

func (e *evictor[T]) full() bool { return e.active >= e.maxResident }

func (e *evictor[T]) added(h int) {
	e.resident.Add(uint32(h)) //nolint:gosec // slab handles fit in uint32
	e.active++
}

func (e *evictor[T]) removed(h int) {
	e.resident.Remove(uint32(h)) //nolint:gosec // slab handles fit in uint32
	e.active--
}

func (e *evictor[T]) encodeBuffer(slabSize int) []byte {
	n := slabSize * e.codec.ElemSize()
	if cap(e.buf) < n {
		e.buf = make([]byte, n)
	}
	return e.buf[:n]
}

func (e *evictor[T]) reset() {
	e.resident.Clear()
	e.active = 0
	e.buf = nil
}

func closeScratch(m *spill.Manager) {
	_ = m.Close()
}

// openSpill creates the scratch file on first use. A tape that is dropped
// without Close still gets its file removed once it is collected.
func (t *Tape[T]) openSpill() error {
	e := t.evict
	if e.spill != nil {
		return nil
	}
	m, err := spill.New(e.spillCfg)
	if err != nil {
		t.logger.LogSpillOpen(e.spillCfg.Dir, err)
		return &StorageError{Op: "open", Path: e.spillCfg.Dir, Slab: -1, Offset: -1, Err: err}
	}
	t.logger.LogSpillOpen(m.Path(), nil)
	e.spill = m
	e.cleanup = runtime.AddCleanup(t, closeScratch, m)
	return nil
}

// closeSpill removes the scratch file if one was created.
func (t *Tape[T]) closeSpill() error {
	e := t.evict
	if e == nil || e.spill == nil {
		return nil
	}
	m := e.spill
	e.spill = nil
	e.cleanup.Stop()

	st := m.Stats()
	if err := m.Close(); err != nil {
		t.logger.LogSpillClose(m.Path(), st.SlabsWritten, st.SlabsRead, err)
		return &StorageError{Op: "close", Path: m.Path(), Slab: -1, Offset: -1, Err: err}
	}
	t.logger.LogSpillClose(m.Path(), st.SlabsWritten, st.SlabsRead, nil)
	return nil
}

// evictSlab writes resident slab h to the scratch file and frees its buffer.
// On failure h stays resident.
func (t *Tape[T]) evictSlab(h int) error {
	e := t.evict
	s := t.slabs[h]

	if err := t.openSpill(); err != nil {
		return err
	}

	start := time.Now()
	buf := e.encodeBuffer(t.slabSize)
	err := e.codec.Encode(buf, s.data)
	var (
		offset int64 = -1
		n      int
	)
	if err == nil {
		offset, n, err = e.spill.WriteSlab(buf)
	}
	d := time.Since(start)

	t.metrics.RecordEvict(n, d, err)
	t.logger.LogEvict(h, offset, n, d, err)
	if err != nil {
		return &StorageError{Op: "write", Path: e.spill.Path(), Slab: h, Offset: -1, Err: err}
	}

	t.freeSlab(s.buffer())
	s.detach(offset, n)
	e.removed(h)
	t.stats.Evictions++
	return nil
}

// evictForGrowth runs before a new slab is appended. With the budget full it
// evicts the lowest resident slab. The slab being appended becomes the tail,
// so the current tail, which is full, is a valid candidate. A full budget
// holds at least one resident slab, so a candidate always exists.
func (t *Tape[T]) evictForGrowth() error {
	e := t.evict
	if !e.full() {
		return nil
	}
	return t.evictSlab(e.pickVictim(len(t.slabs)))
}

// ensureLoaded makes slab h resident, evicting another resident slab first
// when the budget is full. The evicted slab may be the tail. On failure h
// stays on disk.
func (t *Tape[T]) ensureLoaded(h int) error {
	s := t.slabs[h]
	if s.resident() {
		return nil
	}
	e := t.evict

	// h is not resident, so a full budget always yields a candidate.
	if e.full() {
		if err := t.evictSlab(e.pickVictim(h)); err != nil {
			return err
		}
	}

	buf, err := t.allocSlab(h)
	if err != nil {
		return err
	}

	start := time.Now()
	raw := e.encodeBuffer(t.slabSize)
	err = e.spill.ReadSlab(s.diskOffset, s.diskLen, raw)
	if err == nil {
		err = e.codec.Decode(buf.data, raw)
	}
	d := time.Since(start)

	t.metrics.RecordReload(s.diskLen, d, err)
	t.logger.LogReload(h, s.diskOffset, s.diskLen, d, err)
	if err != nil {
		t.freeSlab(buf)
		return &StorageError{Op: "read", Path: e.spill.Path(), Slab: h, Offset: s.diskOffset, Err: err}
	}

	s.attach(buf)
	e.added(h)
	t.stats.Reloads++
	return nil
}
