// Package spill manages the per-tape scratch file that evicted slabs are
// written to.
//
// A Manager owns exactly one file for its lifetime. The file only grows:
// every WriteSlab appends at the current end and returns the offset it wrote
// at, and that offset stays valid until Close. Space freed by a slab that is
// reloaded or dropped is never reused.
//
// The file is scratch space, not a format. It is opened with truncation,
// named after the process and a per-process sequence number so concurrent
// tapes never collide, and removed on Close.
package spill
