// Package backend provides implementations of the mapdata.Backend contract:
// an in-memory map, SQLite, BadgerDB and Redis.
package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/VoxMapDB/voxmap/pkg/mapdata"
)

// Memory is a non-persistent backend backed by a map. It is the "dummy"
// backend of world.mt and the workhorse of tests.
type Memory struct {
	mu   sync.RWMutex
	data map[int64][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[int64][]byte)}
}

// Get returns the stored bytes for key, or mapdata.ErrKeyNotFound.
func (m *Memory) Get(ctx context.Context, key int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	if !ok {
		return nil, mapdata.ErrKeyNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores data under key, replacing any previous value.
func (m *Memory) Put(ctx context.Context, key int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}

// Keys returns a cursor over a snapshot of the stored keys in ascending order.
func (m *Memory) Keys(ctx context.Context) (mapdata.KeyIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	keys := make([]int64, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return &memoryKeyIterator{keys: keys, idx: -1}, nil
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored blocks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

type memoryKeyIterator struct {
	keys []int64
	idx  int
}

func (it *memoryKeyIterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}

func (it *memoryKeyIterator) Key() int64 {
	return it.keys[it.idx]
}

func (it *memoryKeyIterator) Err() error {
	return nil
}

func (it *memoryKeyIterator) Close() error {
	return nil
}

var _ mapdata.Backend = (*Memory)(nil)
