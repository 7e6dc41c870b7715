package synapgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// promcollector provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordStage is called after each load stage run.
	// size is the number of synapses, err is nil if successful.
	RecordStage(stage string, size int, duration time.Duration, err error)

	// RecordCache is called after each position cache lookup.
	RecordCache(hits, misses int)

	// RecordAllocation is called after each column allocation.
	// aligned is false when the allocator fell back to a plain allocation.
	RecordAllocation(bytes int64, aligned bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStage(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCache(int, int)                          {}
func (NoopMetricsCollector) RecordAllocation(int64, bool)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ConnectivityCount atomic.Int64
	AttributeCount    atomic.Int64
	PositionCount     atomic.Int64
	StageErrors       atomic.Int64
	StageTotalNanos   atomic.Int64
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	Allocations       atomic.Int64
	AllocatedBytes    atomic.Int64
	FallbackAllocs    atomic.Int64
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(stage string, _ int, duration time.Duration, err error) {
	switch stage {
	case "connectivity":
		b.ConnectivityCount.Add(1)
	case "attributes":
		b.AttributeCount.Add(1)
	case "positions":
		b.PositionCount.Add(1)
	}
	b.StageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StageErrors.Add(1)
	}
}

// RecordCache implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCache(hits, misses int) {
	b.CacheHits.Add(int64(hits))
	b.CacheMisses.Add(int64(misses))
}

// RecordAllocation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocation(bytes int64, aligned bool) {
	b.Allocations.Add(1)
	b.AllocatedBytes.Add(bytes)
	if !aligned {
		b.FallbackAllocs.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	runs := b.ConnectivityCount.Load() + b.AttributeCount.Load() + b.PositionCount.Load()
	var avg int64
	if runs > 0 {
		avg = b.StageTotalNanos.Load() / runs
	}
	return BasicMetricsStats{
		ConnectivityCount: b.ConnectivityCount.Load(),
		AttributeCount:    b.AttributeCount.Load(),
		PositionCount:     b.PositionCount.Load(),
		StageErrors:       b.StageErrors.Load(),
		StageAvgNanos:     avg,
		CacheHits:         b.CacheHits.Load(),
		CacheMisses:       b.CacheMisses.Load(),
		Allocations:       b.Allocations.Load(),
		AllocatedBytes:    b.AllocatedBytes.Load(),
		FallbackAllocs:    b.FallbackAllocs.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ConnectivityCount int64
	AttributeCount    int64
	PositionCount     int64
	StageErrors       int64
	StageAvgNanos     int64
	CacheHits         int64
	CacheMisses       int64
	Allocations       int64
	AllocatedBytes    int64
	FallbackAllocs    int64
}
