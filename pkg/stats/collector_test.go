package stats

import (
	"sync"
	"testing"
)

func TestCollector_TrackOperation(t *testing.T) {
	collector := NewAtomicCollector()

	// Track operations
	collector.TrackOperation(OpGetNode)
	collector.TrackOperation(OpGetNode)
	collector.TrackOperation(OpSetNode)

	// Get stats
	stats := collector.GetStats()

	// Verify counts
	if stats["get_node_ops"].(uint64) != 2 {
		t.Errorf("Expected 2 get_node operations, got %v", stats["get_node_ops"])
	}

	if stats["set_node_ops"].(uint64) != 1 {
		t.Errorf("Expected 1 set_node operation, got %v", stats["set_node_ops"])
	}

	// Verify last operation times exist
	if _, exists := stats["last_get_node_time"]; !exists {
		t.Errorf("Expected last_get_node_time to exist in stats")
	}

	if _, exists := stats["last_set_node_time"]; !exists {
		t.Errorf("Expected last_set_node_time to exist in stats")
	}
}

func TestCollector_TrackOperationWithLatency(t *testing.T) {
	collector := NewAtomicCollector()

	// Track operations with latency
	collector.TrackOperationWithLatency(OpBlockLoad, 100)
	collector.TrackOperationWithLatency(OpBlockLoad, 200)
	collector.TrackOperationWithLatency(OpBlockLoad, 300)

	// Get stats
	stats := collector.GetStats()

	// Check latency stats
	latencyStats, ok := stats["block_load_latency"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected block_load_latency to be a map, got %T", stats["block_load_latency"])
	}

	if count := latencyStats["count"].(uint64); count != 3 {
		t.Errorf("Expected 3 latency records, got %v", count)
	}

	if avg := latencyStats["avg_ns"].(uint64); avg != 200 {
		t.Errorf("Expected average latency 200ns, got %v", avg)
	}

	if min := latencyStats["min_ns"].(uint64); min != 100 {
		t.Errorf("Expected min latency 100ns, got %v", min)
	}

	if max := latencyStats["max_ns"].(uint64); max != 300 {
		t.Errorf("Expected max latency 300ns, got %v", max)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	collector := NewAtomicCollector()
	const numGoroutines = 10
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Launch goroutines to track operations concurrently
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < opsPerGoroutine; j++ {
				// Mix different operations
				switch j % 3 {
				case 0:
					collector.TrackOperation(OpGetNode)
				case 1:
					collector.TrackOperation(OpSetNode)
				case 2:
					collector.TrackOperationWithLatency(OpCommit, uint64(j))
				}
			}
		}(i)
	}

	wg.Wait()

	// Get stats
	stats := collector.GetStats()

	// There should be approximately opsPerGoroutine * numGoroutines / 3 operations of each type
	expectedOps := uint64(numGoroutines * opsPerGoroutine / 3)

	// Allow for small variations due to concurrent execution
	// Use 99% of expected as minimum threshold
	minThreshold := expectedOps * 99 / 100

	if ops := stats["get_node_ops"].(uint64); ops < minThreshold {
		t.Errorf("Expected approximately %d get_node operations, got %v (below threshold %d)",
			expectedOps, ops, minThreshold)
	}

	if ops := stats["set_node_ops"].(uint64); ops < minThreshold {
		t.Errorf("Expected approximately %d set_node operations, got %v (below threshold %d)",
			expectedOps, ops, minThreshold)
	}

	if ops := stats["commit_ops"].(uint64); ops < minThreshold {
		t.Errorf("Expected approximately %d commit operations, got %v (below threshold %d)",
			expectedOps, ops, minThreshold)
	}
}

func TestCollector_GetStatsFiltered(t *testing.T) {
	collector := NewAtomicCollector()

	// Track different operations
	collector.TrackOperation(OpGetBlock)
	collector.TrackOperation(OpPutBlock)
	collector.TrackOperation(OpPutBlock)
	collector.TrackOperation(OpCommit)
	collector.TrackError("io_error")
	collector.TrackError("decode_error")

	// Filter by "put_block" prefix
	putStats := collector.GetStatsFiltered("put_block")

	if len(putStats) == 0 {
		t.Errorf("Expected non-empty filtered stats")
	}

	if _, exists := putStats["put_block_ops"]; !exists {
		t.Errorf("Expected put_block_ops in filtered stats")
	}

	if _, exists := putStats["get_block_ops"]; exists {
		t.Errorf("Did not expect get_block_ops in put_block-filtered stats")
	}

	// Filter by "error" prefix
	errorStats := collector.GetStatsFiltered("error")

	if _, exists := errorStats["errors"]; !exists {
		t.Errorf("Expected errors in error-filtered stats")
	}
}

func TestCollector_TrackBytes(t *testing.T) {
	collector := NewAtomicCollector()

	// Track read and write bytes
	collector.TrackBytes(true, 1000) // write
	collector.TrackBytes(false, 500) // read

	stats := collector.GetStats()

	if bytesWritten := stats["total_bytes_written"].(uint64); bytesWritten != 1000 {
		t.Errorf("Expected 1000 bytes written, got %v", bytesWritten)
	}

	if bytesRead := stats["total_bytes_read"].(uint64); bytesRead != 500 {
		t.Errorf("Expected 500 bytes read, got %v", bytesRead)
	}
}

func TestCollector_TrackCacheSize(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackCacheSize(16, 4)

	stats := collector.GetStats()

	if cached := stats["cached_blocks"].(uint64); cached != 16 {
		t.Errorf("Expected 16 cached blocks, got %v", cached)
	}

	if dirty := stats["dirty_blocks"].(uint64); dirty != 4 {
		t.Errorf("Expected 4 dirty blocks, got %v", dirty)
	}

	// Values are replaced, not accumulated
	collector.TrackCacheSize(8, 0)

	stats = collector.GetStats()

	if cached := stats["cached_blocks"].(uint64); cached != 8 {
		t.Errorf("Expected updated cached block count 8, got %v", cached)
	}

	if dirty := stats["dirty_blocks"].(uint64); dirty != 0 {
		t.Errorf("Expected updated dirty block count 0, got %v", dirty)
	}
}

func TestCollector_TrackLoadAndFlush(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackBlockLoad()
	collector.TrackBlockLoad()
	collector.TrackBlockFlush()

	stats := collector.GetStats()

	if loads := stats["block_load_count"].(uint64); loads != 2 {
		t.Errorf("Expected 2 block loads, got %v", loads)
	}

	if flushes := stats["block_flush_count"].(uint64); flushes != 1 {
		t.Errorf("Expected 1 block flush, got %v", flushes)
	}
}
