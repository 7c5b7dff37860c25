// Package slabtape provides an append-only, stack-ordered container for
// recording long sequences of values during a forward computation and reading
// them back by index or in reverse.
//
// A Tape stores its first elements in an inline segment allocated once by New,
// then grows by fixed-size slabs. Push and Pop are O(1) amortized, random
// access is O(1). No element is ever moved once written.
//
// # Quick Start
//
//	tp, _ := slabtape.New[float64]()
//	defer tp.Close()
//
//	for i := range 10 {
//	    _ = tp.Push(float64(i))
//	}
//	for tp.Len() > 0 {
//	    v, _ := tp.Pop() // 9, 8, ..., 0
//	    _ = v
//	}
//
// # Eviction
//
// Tapes that may outgrow RAM can spill cold slabs to a per-tape scratch file:
//
//	tp, _ := slabtape.New[float64](
//	    slabtape.WithSlabSize(4096),
//	    slabtape.WithEviction(codec.Raw[float64]()),
//	    slabtape.WithMaxResidentSlabs(64),
//	    slabtape.WithScratchDir("/mnt/ramdisk"),
//	    slabtape.WithCompression(slabtape.CompressionLZ4),
//	)
//
// Before a new slab is allocated while the budget is full, the lowest-numbered
// resident slab is written to the scratch file and freed, so the new slab
// becomes the resident tail. Accessing an evicted slab reloads it, evicting the
// lowest-numbered other resident slab if needed. The
// scratch file is created on the first eviction, is named
// slabtape_<pid>_<seq>.tmp and is removed by Clear and Close.
//
// Operations that may touch the scratch file return an error; disk failures
// are reported as *StorageError and leave the tape unchanged.
//
// # Concurrency
//
// A Tape is not safe for concurrent use. Mutex returns a lock that the tape
// never takes itself; goroutines sharing a tape must hold it around every call.
package slabtape
