package slabtape

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting tape metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// One collector may be shared by many tapes; implementations must be safe for
// concurrent use.
type MetricsCollector interface {
	// RecordSlabAlloc is called whenever a slab buffer is allocated, both
	// for chain growth and for reloads.
	RecordSlabAlloc(bytes int)

	// RecordEvict is called after each eviction attempt.
	// bytes is the stored block size, err is nil if successful.
	RecordEvict(bytes int, duration time.Duration, err error)

	// RecordReload is called after each reload attempt.
	RecordReload(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSlabAlloc(int)                    {}
func (NoopMetricsCollector) RecordEvict(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordReload(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SlabAllocs       atomic.Int64
	SlabAllocBytes   atomic.Int64
	EvictCount       atomic.Int64
	EvictErrors      atomic.Int64
	EvictBytes       atomic.Int64
	EvictTotalNanos  atomic.Int64
	ReloadCount      atomic.Int64
	ReloadErrors     atomic.Int64
	ReloadBytes      atomic.Int64
	ReloadTotalNanos atomic.Int64
}

// RecordSlabAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSlabAlloc(bytes int) {
	b.SlabAllocs.Add(1)
	b.SlabAllocBytes.Add(int64(bytes))
}

// RecordEvict implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEvict(bytes int, duration time.Duration, err error) {
	if err != nil {
		b.EvictErrors.Add(1)
		return
	}
	b.EvictCount.Add(1)
	b.EvictBytes.Add(int64(bytes))
	b.EvictTotalNanos.Add(duration.Nanoseconds())
}

// RecordReload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReload(bytes int, duration time.Duration, err error) {
	if err != nil {
		b.ReloadErrors.Add(1)
		return
	}
	b.ReloadCount.Add(1)
	b.ReloadBytes.Add(int64(bytes))
	b.ReloadTotalNanos.Add(duration.Nanoseconds())
}

// MetricsStats is a snapshot of BasicMetricsCollector.
type MetricsStats struct {
	SlabAllocs       int64
	Evictions        int64
	EvictErrors      int64
	EvictBytes       int64
	AvgEvictLatency  time.Duration
	Reloads          int64
	ReloadErrors     int64
	ReloadBytes      int64
	AvgReloadLatency time.Duration
}

// GetStats returns a snapshot of the collected metrics.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	s := MetricsStats{
		SlabAllocs:   b.SlabAllocs.Load(),
		Evictions:    b.EvictCount.Load(),
		EvictErrors:  b.EvictErrors.Load(),
		EvictBytes:   b.EvictBytes.Load(),
		Reloads:      b.ReloadCount.Load(),
		ReloadErrors: b.ReloadErrors.Load(),
		ReloadBytes:  b.ReloadBytes.Load(),
	}
	if s.Evictions > 0 {
		s.AvgEvictLatency = time.Duration(b.EvictTotalNanos.Load() / s.Evictions)
	}
	if s.Reloads > 0 {
		s.AvgReloadLatency = time.Duration(b.ReloadTotalNanos.Load() / s.Reloads)
	}
	return s
}
