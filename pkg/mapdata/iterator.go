package mapdata

import (
	"fmt"

	"github.com/VoxMapDB/voxmap/pkg/coords"
)

// PosIterator is a single-pass cursor over stored block positions.
// It decodes each backend key into a BlockPos; a key outside the valid
// range stops iteration with an error.
type PosIterator struct {
	keys KeyIterator
	pos  coords.BlockPos
	err  error
}

// Next advances the cursor. It returns false when exhausted or on error.
func (it *PosIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.keys.Next() {
		return false
	}

	raw := it.keys.Key()
	key, err := coords.NewBlockKey(raw)
	if err != nil {
		it.err = fmt.Errorf("stored key %d: %w", raw, err)
		return false
	}
	it.pos = key.Pos()
	return true
}

// Pos returns the block position at the current cursor position.
// Only valid after a successful Next.
func (it *PosIterator) Pos() coords.BlockPos {
	return it.pos
}

// Err returns the error that stopped iteration, if any.
func (it *PosIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.keys.Err()
}

// Close releases the underlying cursor.
func (it *PosIterator) Close() error {
	return it.keys.Close()
}
