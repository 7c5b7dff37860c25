// Package mmap provides anonymous memory mappings for off-heap slab buffers.
//
// A slab buffer obtained from MapAnon lives outside the Go heap: the garbage
// collector never scans it and Close returns the pages to the operating
// system immediately, instead of whenever the next GC cycle runs. This keeps
// the resident footprint of an evicting tape close to its slab budget.
//
// Only pointer-free element types may be stored in such memory.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc / VirtualFree
package mmap
