package backend

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/VoxMapDB/voxmap/pkg/mapdata"
)

// Badger is a backend over a BadgerDB key-value store. Block keys are stored
// as 8-byte big-endian values.
type Badger struct {
	db *badger.DB
}

// NewBadger opens (and if needed creates) a Badger database at path.
func NewBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(key int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(key))
	return buf
}

// Get returns the stored bytes for key, or mapdata.ErrKeyNotFound.
func (b *Badger) Get(ctx context.Context, key int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, mapdata.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return data, nil
}

// Put stores data under key, replacing any previous value.
func (b *Badger) Put(ctx context.Context, key int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), data)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Keys returns a cursor over all stored keys. The keys are materialized
// inside one read transaction; Badger iterators cannot outlive their
// transaction, so the cursor holds a snapshot.
func (b *Badger) Keys(ctx context.Context) (mapdata.KeyIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			if len(k) != 8 {
				return fmt.Errorf("unexpected key length %d", len(k))
			}
			keys = append(keys, int64(binary.BigEndian.Uint64(k)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger keys: %w", err)
	}
	return &memoryKeyIterator{keys: keys, idx: -1}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

var _ mapdata.Backend = (*Badger)(nil)
