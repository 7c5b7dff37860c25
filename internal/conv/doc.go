// Package conv provides checked integer conversions.
//
// The tape addresses slabs with int handles but the resident-set bitmap is
// keyed by uint32, and slab byte sizes are products of two user-supplied
// sizes. These helpers keep both from silently wrapping.
package conv
