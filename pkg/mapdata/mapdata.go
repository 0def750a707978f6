// Package mapdata provides access to the block store of a voxel world.
// It translates block positions to backend keys and runs block bytes
// through the version-29 codec.
package mapdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/VoxMapDB/voxmap/pkg/common/log"
	"github.com/VoxMapDB/voxmap/pkg/coords"
	"github.com/VoxMapDB/voxmap/pkg/mapblock"
	"github.com/VoxMapDB/voxmap/pkg/stats"
)

var (
	// ErrKeyNotFound is returned by a Backend when no row exists for a key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBlockNotFound is returned by MapData when the requested block
	// position has no stored block.
	ErrBlockNotFound = errors.New("block not found")
)

// Backend is the narrow contract a block store must satisfy. Keys are the
// int64 block keys produced by coords.BlockPos.Key.
//
// Callers must not interleave a live Keys cursor with writes on the same
// backend session; materialize the keys first.
type Backend interface {
	// Get returns the stored bytes for key, or ErrKeyNotFound.
	Get(ctx context.Context, key int64) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key int64, data []byte) error

	// Keys returns a lazy single-pass cursor over all stored keys.
	Keys(ctx context.Context) (KeyIterator, error)

	// Close releases the backend's resources.
	Close() error
}

// KeyIterator is a single-pass cursor over backend keys.
// Usage follows database/sql.Rows: Next, then Key, then Err after the loop.
type KeyIterator interface {
	// Next advances the cursor. It returns false when exhausted or on error.
	Next() bool

	// Key returns the key at the current position. Only valid after a
	// successful Next.
	Key() int64

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the cursor.
	Close() error
}

// MapData wraps a Backend with position/key translation and the block codec.
type MapData struct {
	backend Backend
	logger  log.Logger
	stats   stats.Collector
}

// Option configures a MapData.
type Option func(*MapData)

// WithLogger sets the logger used for debug traces of block I/O.
func WithLogger(logger log.Logger) Option {
	return func(m *MapData) {
		m.logger = logger
	}
}

// WithStats sets the statistics collector block operations are tracked on.
func WithStats(collector stats.Collector) Option {
	return func(m *MapData) {
		m.stats = collector
	}
}

// New creates a MapData over the given backend.
func New(backend Backend, options ...Option) *MapData {
	m := &MapData{
		backend: backend,
		logger:  log.Default(),
		stats:   stats.NewAtomicCollector(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Backend returns the underlying backend.
func (m *MapData) Backend() Backend {
	return m.backend
}

// Stats returns the statistics collector.
func (m *MapData) Stats() stats.Collector {
	return m.stats
}

// GetBlockData returns the raw stored bytes of the block at bp.
// A missing block yields ErrBlockNotFound wrapped with the position.
func (m *MapData) GetBlockData(ctx context.Context, bp coords.BlockPos) ([]byte, error) {
	key := bp.Key()
	data, err := m.backend.Get(ctx, key.Int64())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("block %v: %w", bp, ErrBlockNotFound)
		}
		return nil, fmt.Errorf("get block %v: %w", bp, err)
	}

	m.stats.TrackOperation(stats.OpGetBlock)
	m.stats.TrackBytes(false, uint64(len(data)))
	m.logger.Debug("read block %v key=%d bytes=%d xxh64=%016x",
		bp, key.Int64(), len(data), xxhash.Sum64(data))
	return data, nil
}

// SetBlockData stores raw block bytes at bp, replacing any previous block.
func (m *MapData) SetBlockData(ctx context.Context, bp coords.BlockPos, data []byte) error {
	key := bp.Key()
	if err := m.backend.Put(ctx, key.Int64(), data); err != nil {
		return fmt.Errorf("put block %v: %w", bp, err)
	}

	m.stats.TrackOperation(stats.OpPutBlock)
	m.stats.TrackBytes(true, uint64(len(data)))
	m.logger.Debug("wrote block %v key=%d bytes=%d xxh64=%016x",
		bp, key.Int64(), len(data), xxhash.Sum64(data))
	return nil
}

// GetMapBlock loads and decodes the block at bp.
func (m *MapData) GetMapBlock(ctx context.Context, bp coords.BlockPos) (*mapblock.MapBlock, error) {
	data, err := m.GetBlockData(ctx, bp)
	if err != nil {
		return nil, err
	}

	block, err := mapblock.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode block %v: %w", bp, err)
	}
	m.stats.TrackOperation(stats.OpDecode)
	return block, nil
}

// SetMapBlock encodes and stores the block at bp.
func (m *MapData) SetMapBlock(ctx context.Context, bp coords.BlockPos, block *mapblock.MapBlock) error {
	data, err := block.Encode()
	if err != nil {
		return fmt.Errorf("encode block %v: %w", bp, err)
	}
	m.stats.TrackOperation(stats.OpEncode)
	return m.SetBlockData(ctx, bp, data)
}

// AllBlockPositions returns a lazy cursor over the positions of every stored
// block. The caller must Close it.
func (m *MapData) AllBlockPositions(ctx context.Context) (*PosIterator, error) {
	keys, err := m.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	m.stats.TrackOperation(stats.OpListBlocks)
	return &PosIterator{keys: keys}, nil
}

// Close closes the underlying backend.
func (m *MapData) Close() error {
	return m.backend.Close()
}
