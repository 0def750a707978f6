// ABOUTME: This file defines telemetry metrics interface for edit cache operations
// ABOUTME: including block loads, flushes, commit outcomes and lock contention

package manip

import (
	"context"
	"time"

	"github.com/VoxMapDB/voxmap/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// CacheMetrics interface defines telemetry methods for edit cache operations
type CacheMetrics interface {
	// RecordBlockLoad records a block being pulled from the backend into the cache
	RecordBlockLoad(ctx context.Context, duration time.Duration, found bool)

	// RecordBlockFlush records a dirty block being written back
	RecordBlockFlush(ctx context.Context, duration time.Duration, success bool)

	// RecordCommit records a commit pass over the cache
	RecordCommit(ctx context.Context, duration time.Duration, flushed int64, outcome string)

	// RecordLockWait records time spent waiting for a block lock
	RecordLockWait(ctx context.Context, duration time.Duration)

	// RecordCacheSize records the number of cached and dirty blocks
	RecordCacheSize(ctx context.Context, cached int64, dirty int64)

	// Close cleans up any resources used by the metrics
	Close() error
}

// cacheMetrics implements CacheMetrics using the telemetry package
type cacheMetrics struct {
	tel telemetry.Telemetry
}

// NewCacheMetrics creates a new CacheMetrics implementation
func NewCacheMetrics(tel telemetry.Telemetry) CacheMetrics {
	return &cacheMetrics{
		tel: tel,
	}
}

// NewNoopCacheMetrics creates a no-op CacheMetrics for testing/disabled scenarios
func NewNoopCacheMetrics() CacheMetrics {
	return &noopCacheMetrics{}
}

// RecordBlockLoad records a block being pulled from the backend into the cache
func (m *cacheMetrics) RecordBlockLoad(ctx context.Context, duration time.Duration, found bool) {
	m.tel.RecordHistogram(ctx, "voxmap.manip.block.load.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
		attribute.Bool("found", found),
	)

	m.tel.RecordCounter(ctx, "voxmap.manip.block.load.count", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
		attribute.Bool("found", found),
	)
}

// RecordBlockFlush records a dirty block being written back
func (m *cacheMetrics) RecordBlockFlush(ctx context.Context, duration time.Duration, success bool) {
	m.tel.RecordHistogram(ctx, "voxmap.manip.block.flush.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
		attribute.Bool("success", success),
	)

	m.tel.RecordCounter(ctx, "voxmap.manip.block.flush.count", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
		attribute.Bool("success", success),
	)
}

// RecordCommit records a commit pass over the cache
func (m *cacheMetrics) RecordCommit(ctx context.Context, duration time.Duration, flushed int64, outcome string) {
	m.tel.RecordHistogram(ctx, "voxmap.manip.commit.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
		attribute.String("outcome", outcome),
	)

	m.tel.RecordCounter(ctx, "voxmap.manip.commit.flushed.count", flushed,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
		attribute.String("outcome", outcome),
	)
}

// RecordLockWait records time spent waiting for a block lock
func (m *cacheMetrics) RecordLockWait(ctx context.Context, duration time.Duration) {
	m.tel.RecordHistogram(ctx, "voxmap.manip.lock.wait.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
	)
}

// RecordCacheSize records the number of cached and dirty blocks
func (m *cacheMetrics) RecordCacheSize(ctx context.Context, cached int64, dirty int64) {
	m.tel.RecordCounter(ctx, "voxmap.manip.cache.blocks", cached,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
	)

	m.tel.RecordCounter(ctx, "voxmap.manip.cache.dirty", dirty,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentManip),
	)
}

// Close cleans up any resources used by the metrics
func (m *cacheMetrics) Close() error {
	// No resources to clean up for this implementation
	return nil
}

// noopCacheMetrics provides a no-op implementation for testing/disabled scenarios
type noopCacheMetrics struct{}

func (n *noopCacheMetrics) RecordBlockLoad(ctx context.Context, duration time.Duration, found bool) {
}
func (n *noopCacheMetrics) RecordBlockFlush(ctx context.Context, duration time.Duration, success bool) {
}
func (n *noopCacheMetrics) RecordCommit(ctx context.Context, duration time.Duration, flushed int64, outcome string) {
}
func (n *noopCacheMetrics) RecordLockWait(ctx context.Context, duration time.Duration) {}
func (n *noopCacheMetrics) RecordCacheSize(ctx context.Context, cached int64, dirty int64) {
}
func (n *noopCacheMetrics) Close() error { return nil }
