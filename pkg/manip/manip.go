// Package manip provides VoxelManip, a write-back edit cache over a world's
// block store. Node reads and writes pull whole blocks into memory on first
// touch; nothing reaches the backend until Commit.
package manip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VoxMapDB/voxmap/pkg/common/log"
	"github.com/VoxMapDB/voxmap/pkg/coords"
	"github.com/VoxMapDB/voxmap/pkg/mapblock"
	"github.com/VoxMapDB/voxmap/pkg/mapdata"
	"github.com/VoxMapDB/voxmap/pkg/stats"
)

// VoxelManip caches blocks for editing. Edits are buffered in memory and
// written back only by Commit; dropping a VoxelManip without committing
// discards every edit with no backend side effects.
//
// All methods are safe for concurrent use. Operations on different blocks do
// not contend; operations on the same block serialize on that block's lock.
type VoxelManip struct {
	data    *mapdata.MapData
	logger  log.Logger
	metrics CacheMetrics

	// mu guards the blocks map itself. Entry contents are guarded by the
	// per-entry lock, never by mu, so a slow load on one block cannot
	// stall access to any other.
	mu     sync.Mutex
	blocks map[coords.BlockPos]*blockEntry
}

// blockEntry is one cached block. The entry lock is held while the block is
// loading; waiters that find block == nil after acquiring the lock lost a
// race with a failed load and must re-enter through the map.
type blockEntry struct {
	mu    sync.Mutex
	block *mapblock.MapBlock
	dirty bool
}

// Option configures a VoxelManip.
type Option func(*VoxelManip)

// WithLogger sets the logger used for debug traces.
func WithLogger(logger log.Logger) Option {
	return func(vm *VoxelManip) {
		vm.logger = logger
	}
}

// WithMetrics sets the metrics sink for cache activity.
func WithMetrics(metrics CacheMetrics) Option {
	return func(vm *VoxelManip) {
		vm.metrics = metrics
	}
}

// New creates a VoxelManip over the given block store.
func New(data *mapdata.MapData, options ...Option) *VoxelManip {
	vm := &VoxelManip{
		data:    data,
		logger:  log.Default(),
		metrics: NewNoopCacheMetrics(),
		blocks:  make(map[coords.BlockPos]*blockEntry),
	}
	for _, opt := range options {
		opt(vm)
	}
	return vm
}

// load fetches the block at bp from the backend. A missing block becomes a
// synthesized empty one so that edits can create new blocks.
func (vm *VoxelManip) load(ctx context.Context, bp coords.BlockPos) (*mapblock.MapBlock, error) {
	start := time.Now()

	block, err := vm.data.GetMapBlock(ctx, bp)
	if errors.Is(err, mapdata.ErrBlockNotFound) {
		vm.metrics.RecordBlockLoad(ctx, time.Since(start), false)
		vm.logger.Debug("block %v not stored, caching empty block", bp)
		return mapblock.Unloaded(), nil
	}
	if err != nil {
		return nil, err
	}

	vm.data.Stats().TrackBlockLoad()
	vm.metrics.RecordBlockLoad(ctx, time.Since(start), true)
	return block, nil
}

// withBlock runs fn with the entry for bp locked and loaded. The entry lock
// is held across the load so a block is never fetched twice, and other
// blocks stay reachable the whole time.
func (vm *VoxelManip) withBlock(ctx context.Context, bp coords.BlockPos, fn func(*blockEntry) error) error {
	for {
		vm.mu.Lock()
		e, ok := vm.blocks[bp]
		if !ok {
			e = &blockEntry{}
			e.mu.Lock()
			vm.blocks[bp] = e
			vm.mu.Unlock()

			block, err := vm.load(ctx, bp)
			if err != nil {
				// Evict the placeholder; the cache must look untouched
				// after a failed load.
				vm.mu.Lock()
				delete(vm.blocks, bp)
				vm.mu.Unlock()
				e.mu.Unlock()
				return err
			}

			e.block = block
			err = fn(e)
			e.mu.Unlock()
			return err
		}
		vm.mu.Unlock()

		lockStart := time.Now()
		e.mu.Lock()
		if wait := time.Since(lockStart); wait > time.Millisecond {
			vm.metrics.RecordLockWait(ctx, wait)
		}

		if e.block == nil {
			// The goroutine loading this entry failed and evicted it
			// between our map lookup and lock acquisition.
			e.mu.Unlock()
			continue
		}

		err := fn(e)
		e.mu.Unlock()
		return err
	}
}

// GetNode returns the node at the world position p, loading its block on
// first touch. Positions in never-written blocks read as the empty node.
func (vm *VoxelManip) GetNode(ctx context.Context, p coords.Pos) (mapblock.Node, error) {
	bp, np := coords.Split(p)

	var node mapblock.Node
	err := vm.withBlock(ctx, bp, func(e *blockEntry) error {
		var err error
		node, err = e.block.GetNode(np)
		return err
	})
	if err != nil {
		return mapblock.Node{}, fmt.Errorf("get node %v: %w", p, err)
	}

	vm.data.Stats().TrackOperation(stats.OpGetNode)
	return node, nil
}

// SetNode replaces the node at p, creating the block's dictionary entry for
// the content string if needed. The edit stays cached until Commit.
func (vm *VoxelManip) SetNode(ctx context.Context, p coords.Pos, n mapblock.Node) error {
	bp, np := coords.Split(p)

	err := vm.withBlock(ctx, bp, func(e *blockEntry) error {
		e.block.SetNode(np, n)
		e.dirty = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("set node %v: %w", p, err)
	}

	vm.data.Stats().TrackOperation(stats.OpSetNode)
	return nil
}

// SetContent sets only the content of the node at p, leaving both param
// planes untouched.
func (vm *VoxelManip) SetContent(ctx context.Context, p coords.Pos, content string) error {
	bp, np := coords.Split(p)

	err := vm.withBlock(ctx, bp, func(e *blockEntry) error {
		id := e.block.GetOrCreateContentID(content)
		e.block.SetContent(np, id)
		e.dirty = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("set content %v: %w", p, err)
	}

	vm.data.Stats().TrackOperation(stats.OpSetNode)
	return nil
}

// SetParam1 sets only the param1 byte of the node at p.
func (vm *VoxelManip) SetParam1(ctx context.Context, p coords.Pos, v byte) error {
	bp, np := coords.Split(p)

	err := vm.withBlock(ctx, bp, func(e *blockEntry) error {
		e.block.SetParam1(np, v)
		e.dirty = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("set param1 %v: %w", p, err)
	}

	vm.data.Stats().TrackOperation(stats.OpSetNode)
	return nil
}

// SetParam2 sets only the param2 byte of the node at p.
func (vm *VoxelManip) SetParam2(ctx context.Context, p coords.Pos, v byte) error {
	bp, np := coords.Split(p)

	err := vm.withBlock(ctx, bp, func(e *blockEntry) error {
		e.block.SetParam2(np, v)
		e.dirty = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("set param2 %v: %w", p, err)
	}

	vm.data.Stats().TrackOperation(stats.OpSetNode)
	return nil
}

// Visit ensures the block containing p is cached without reading or writing
// any node. Useful for prefetching before a burst of edits.
func (vm *VoxelManip) Visit(ctx context.Context, p coords.Pos) error {
	bp, _ := coords.Split(p)

	err := vm.withBlock(ctx, bp, func(e *blockEntry) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("visit %v: %w", p, err)
	}

	vm.data.Stats().TrackOperation(stats.OpVisit)
	return nil
}

// IsCached reports whether the block containing p is currently loaded.
func (vm *VoxelManip) IsCached(p coords.Pos) bool {
	bp, _ := coords.Split(p)

	vm.mu.Lock()
	e, ok := vm.blocks[bp]
	vm.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	loaded := e.block != nil
	e.mu.Unlock()
	return loaded
}

// CachedBlocks returns the number of blocks currently in the cache.
func (vm *VoxelManip) CachedBlocks() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.blocks)
}

// DirtyBlocks returns the number of cached blocks with uncommitted edits.
func (vm *VoxelManip) DirtyBlocks() int {
	vm.mu.Lock()
	entries := make([]*blockEntry, 0, len(vm.blocks))
	for _, e := range vm.blocks {
		entries = append(entries, e)
	}
	vm.mu.Unlock()

	dirty := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.dirty {
			dirty++
		}
		e.mu.Unlock()
	}
	return dirty
}

// Commit writes every dirty block back to the backend and clears its dirty
// flag. Blocks flush independently; the first failure stops the pass, and
// blocks flushed before the failure stay flushed. Clean blocks are skipped.
func (vm *VoxelManip) Commit(ctx context.Context) error {
	start := time.Now()

	vm.mu.Lock()
	positions := make([]coords.BlockPos, 0, len(vm.blocks))
	entries := make([]*blockEntry, 0, len(vm.blocks))
	for bp, e := range vm.blocks {
		positions = append(positions, bp)
		entries = append(entries, e)
	}
	vm.mu.Unlock()

	var flushed int64
	for i, e := range entries {
		bp := positions[i]

		e.mu.Lock()
		if e.block == nil || !e.dirty {
			e.mu.Unlock()
			continue
		}

		flushStart := time.Now()
		err := vm.data.SetMapBlock(ctx, bp, e.block)
		if err != nil {
			e.mu.Unlock()
			vm.metrics.RecordBlockFlush(ctx, time.Since(flushStart), false)
			vm.metrics.RecordCommit(ctx, time.Since(start), flushed, "error")
			return fmt.Errorf("flush block %v: %w", bp, err)
		}
		e.dirty = false
		e.mu.Unlock()

		flushed++
		vm.data.Stats().TrackBlockFlush()
		vm.metrics.RecordBlockFlush(ctx, time.Since(flushStart), true)
	}

	vm.data.Stats().TrackOperation(stats.OpCommit)
	vm.data.Stats().TrackCacheSize(uint64(vm.CachedBlocks()), uint64(vm.DirtyBlocks()))
	vm.metrics.RecordCommit(ctx, time.Since(start), flushed, "success")
	vm.logger.Debug("commit flushed %d dirty blocks in %s", flushed, time.Since(start))
	return nil
}
