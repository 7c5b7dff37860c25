// Package resource provides a budget shared by many tapes.
//
// A single Controller can be handed to every tape of a reverse pass so that
// their resident slabs draw from one byte budget and their spill traffic from
// one IO rate:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   512 << 20, // 512MB of resident slabs
//	    IOLimitBytesPerSec: 200 << 20, // 200MB/s of scratch-file traffic
//	})
//
//	a, _ := slabtape.New[float64](slabtape.WithEviction(codec.Raw[float64]()), slabtape.WithResourceController(rc))
//	b, _ := slabtape.New[int32](slabtape.WithEviction(codec.Raw[int32]()), slabtape.WithResourceController(rc))
//
// Memory acquisition never blocks: it fails fast with ErrMemoryLimitExceeded
// and the tape decides whether it can evict to make room.
//
// All Controller methods are safe for concurrent use and are no-ops on a nil
// Controller.
package resource
