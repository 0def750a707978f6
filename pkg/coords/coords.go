// Package coords implements the coordinate math of the map: splitting
// absolute node positions into block-aligned and block-relative parts, and
// the bijective encoding between block positions and the single integer
// keys storage backends use to address blocks.
package coords

import (
	"errors"
	"fmt"
)

const (
	// WorldBits1D is the number of bits needed to address every node of the
	// world along one axis.
	WorldBits1D = 16

	// NodeBits1D is the number of bits needed to address a node within its
	// block along one axis.
	NodeBits1D = 4

	// BlockBits1D is the number of bits needed to address every block of the
	// world along one axis.
	BlockBits1D = WorldBits1D - NodeBits1D

	// BlockLength is the side length of a block, in nodes.
	BlockLength = 1 << NodeBits1D

	// BlockVolume is the number of nodes in one block.
	BlockVolume = BlockLength * BlockLength * BlockLength

	// NodeMask selects the block-relative bits of a coordinate axis.
	NodeMask = BlockLength - 1

	// BlockMask selects the block-aligned bits of a coordinate axis.
	BlockMask = -1 << NodeBits1D

	// BlockIndexMin and BlockIndexMax bound the per-axis block index
	// (a block-aligned coordinate divided by BlockLength).
	BlockIndexMin = -1 << (BlockBits1D - 1)
	BlockIndexMax = 1<<(BlockBits1D-1) - 1

	// blocksPerAxis is the number of valid block indexes along one axis.
	blocksPerAxis = 1 << BlockBits1D

	// keyStride is the diagonal stride of the key encoding. It places the
	// three per-axis block indexes in disjoint digit ranges of one integer.
	keyStride = 1 + blocksPerAxis + blocksPerAxis*blocksPerAxis

	// BlockKeyMin and BlockKeyMax bound the valid backend key range.
	BlockKeyMin = BlockIndexMin * keyStride
	BlockKeyMax = BlockIndexMax * keyStride
)

// Range errors. These always indicate bad caller input, never an I/O
// condition, and are safe to test with errors.Is.
var (
	// ErrKeyOutOfRange is returned when a raw backend key lies outside
	// [BlockKeyMin, BlockKeyMax].
	ErrKeyOutOfRange = errors.New("block key out of range")

	// ErrBlockOutOfRange is returned when a per-axis block index lies outside
	// [BlockIndexMin, BlockIndexMax].
	ErrBlockOutOfRange = errors.New("block index out of range")

	// ErrNodeOutOfRange is returned when a block-relative node position or a
	// flat node index exceeds the block bounds.
	ErrNodeOutOfRange = errors.New("node position out of range")
)

// Pos is an absolute node position in the world. Each axis spans the full
// signed 16-bit range; there are no further invariants.
//
// Axis conventions follow the map format: x is east, y is up, z is north.
type Pos struct {
	X, Y, Z int16
}

// NewPos builds a Pos from its components.
func NewPos(x, y, z int16) Pos {
	return Pos{X: x, Y: y, Z: z}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// BlockPos is the world position of a block origin. The low NodeBits1D bits
// of every axis are zero by construction.
type BlockPos struct {
	p Pos
}

// Split splits an absolute node position into the position of its owning
// block and the node position relative to that block's origin.
// Join(Split(p)) == p for every representable p.
func Split(p Pos) (BlockPos, NodePos) {
	bp := BlockPos{Pos{X: p.X & BlockMask, Y: p.Y & BlockMask, Z: p.Z & BlockMask}}
	np := NodePos{
		x: uint16(p.X) & NodeMask,
		y: uint16(p.Y) & NodeMask,
		z: uint16(p.Z) & NodeMask,
	}
	return bp, np
}

// Join reassembles an absolute node position from a block position and a
// block-relative node position. It is the inverse of Split.
func Join(bp BlockPos, np NodePos) Pos {
	return Pos{
		X: bp.p.X + int16(np.x),
		Y: bp.p.Y + int16(np.y),
		Z: bp.p.Z + int16(np.z),
	}
}

// Pos returns the block origin as an absolute world position.
func (bp BlockPos) Pos() Pos {
	return bp.p
}

// Index returns the per-axis block index: the origin coordinate divided by
// BlockLength (arithmetic shift, so negative coordinates round toward
// negative infinity).
func (bp BlockPos) Index() Pos {
	return Pos{
		X: bp.p.X >> NodeBits1D,
		Y: bp.p.Y >> NodeBits1D,
		Z: bp.p.Z >> NodeBits1D,
	}
}

// BlockPosFromIndex builds a BlockPos from per-axis block indexes. The
// indexes are taken as plain ints so that out-of-range values are caught
// instead of silently wrapping.
func BlockPosFromIndex(x, y, z int) (BlockPos, error) {
	if !indexInRange(x) || !indexInRange(y) || !indexInRange(z) {
		return BlockPos{}, fmt.Errorf("block index (%d,%d,%d): %w", x, y, z, ErrBlockOutOfRange)
	}
	return BlockPos{Pos{
		X: int16(x) << NodeBits1D,
		Y: int16(y) << NodeBits1D,
		Z: int16(z) << NodeBits1D,
	}}, nil
}

func indexInRange(i int) bool {
	return i >= BlockIndexMin && i <= BlockIndexMax
}

func (bp BlockPos) String() string {
	return bp.p.String()
}

// BlockKey is the single integer a backend uses to address one block.
// BlockPos and BlockKey are in bijection over their valid ranges.
type BlockKey int64

// NewBlockKey validates a raw backend key. Keys outside
// [BlockKeyMin, BlockKeyMax] cannot have been produced by Key and are
// rejected with ErrKeyOutOfRange.
func NewBlockKey(k int64) (BlockKey, error) {
	if k < BlockKeyMin || k > BlockKeyMax {
		return 0, fmt.Errorf("key %d: %w", k, ErrKeyOutOfRange)
	}
	return BlockKey(k), nil
}

// Key encodes the block position into its backend key by combining the
// three per-axis block indexes with the diagonal stride: x occupies the low
// digit range, y the middle, z the high.
func (bp BlockPos) Key() BlockKey {
	idx := bp.Index()
	return BlockKey(int64(idx.X) +
		int64(idx.Y)<<BlockBits1D +
		int64(idx.Z)<<(2*BlockBits1D))
}

// Pos decodes the key back into a block position.
//
// The per-axis values inside a key are sign-extended 12-bit sub-ranges of a
// 16-bit coordinate. Each axis must be truncated to 16 bits before it is
// shifted into alignment; truncating after the shift would corrupt the sign.
func (k BlockKey) Pos() BlockPos {
	// Move the key into non-negative space so the sign bits of one axis no
	// longer overlap the digits of the next. i is in [0, blocksPerAxis³-1].
	i := int64(k) - BlockKeyMin

	// Right-align each axis, truncate to 16 bits, then shift left to drop
	// the four low bits that belong to the next axis and to make room for
	// the node bits.
	x := int16(i) << NodeBits1D
	y := int16(i>>BlockBits1D) << NodeBits1D
	z := int16(i>>(2*BlockBits1D)) << NodeBits1D

	// Rotate the value range back down to restore negative coordinates.
	// Adding the sign bit undoes the initial translation exactly.
	const signFlip = -1 << (WorldBits1D - 1)
	return BlockPos{Pos{X: x + signFlip, Y: y + signFlip, Z: z + signFlip}}
}

// Int64 returns the raw key value.
func (k BlockKey) Int64() int64 {
	return int64(k)
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%d", int64(k))
}

// NodePos is a node position relative to its block origin. Every axis is
// below BlockLength by construction.
type NodePos struct {
	x, y, z uint16
}

// NewNodePos validates a block-relative node position.
func NewNodePos(x, y, z uint16) (NodePos, error) {
	if x >= BlockLength || y >= BlockLength || z >= BlockLength {
		return NodePos{}, fmt.Errorf("node position (%d,%d,%d): %w", x, y, z, ErrNodeOutOfRange)
	}
	return NodePos{x: x, y: y, z: z}, nil
}

// XYZ returns the position's components.
func (np NodePos) XYZ() (x, y, z uint16) {
	return np.x, np.y, np.z
}

// Index packs the position into the flat array index used by block node
// planes: x in the low bits, y in the middle bits, z in the high bits.
func (np NodePos) Index() NodeIndex {
	return NodeIndex(np.x | np.y<<NodeBits1D | np.z<<(2*NodeBits1D))
}

func (np NodePos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", np.x, np.y, np.z)
}

// NodeIndex is an index into a block's flat node planes, below BlockVolume
// by construction.
type NodeIndex uint16

// NewNodeIndex validates a flat node index.
func NewNodeIndex(i uint16) (NodeIndex, error) {
	if i >= BlockVolume {
		return 0, fmt.Errorf("node index %d: %w", i, ErrNodeOutOfRange)
	}
	return NodeIndex(i), nil
}

// Pos unpacks the flat index back into a block-relative node position. It
// is the inverse of NodePos.Index.
func (i NodeIndex) Pos() NodePos {
	return NodePos{
		x: uint16(i) & NodeMask,
		y: uint16(i>>NodeBits1D) & NodeMask,
		z: uint16(i>>(2*NodeBits1D)) & NodeMask,
	}
}
