// Package mapblock holds the in-memory form of one stored map block and the
// codec between that form and the backend wire format.
//
// A block is a 16·16·16 cube of nodes. Each node carries a content id that
// resolves through the block-local name table to an item string, plus two
// parameter bytes. Everything the wire format stores after the node planes
// (node metadata, static objects, node timers) is carried through as an
// opaque byte payload and reproduced verbatim on encode.
package mapblock

import (
	"errors"
	"fmt"

	"github.com/VoxMapDB/voxmap/pkg/coords"
)

// Codec errors. All are caller-distinguishable with errors.Is.
var (
	// ErrUnsupportedVersion is returned for any wire format version other
	// than FormatVersion. No other versions are read or written.
	ErrUnsupportedVersion = errors.New("unsupported map block format version")

	// ErrTruncated is returned when the data ends before a field completes.
	ErrTruncated = errors.New("map block data truncated")

	// ErrCorruptBody is returned when the compressed block body cannot be
	// decompressed.
	ErrCorruptBody = errors.New("corrupt map block body")

	// ErrBadNameTable is returned when the content name table is malformed.
	ErrBadNameTable = errors.New("malformed content name table")

	// ErrUnknownContentID is returned when a node references a content id
	// that the block's name table does not define.
	ErrUnknownContentID = errors.New("content id not in name table")
)

// Node is one voxel: an item string naming its content type (for example
// "default:stone") and two lighting/parameter bytes. Nodes are assembled on
// read and consumed on write; they are not stored as such.
type Node struct {
	Content string
	Param1  byte
	Param2  byte
}

// MapBlock is the decoded in-memory form of one stored block.
//
// The name table maps block-local content ids to item strings. Ids are
// assigned on first use and are stable only within this block: two blocks,
// or two decodes of different byte buffers, may map the same string to
// different ids.
type MapBlock struct {
	// Header fields, carried through the codec verbatim.
	Flags            byte
	LightingComplete uint16
	Timestamp        uint32

	nameFor map[uint16]string
	idFor   map[string]uint16
	nextID  uint16

	param0 [coords.BlockVolume]uint16
	param1 [coords.BlockVolume]byte
	param2 [coords.BlockVolume]byte

	// Trailing sub-payloads after the node planes, preserved byte-for-byte.
	extra []byte
}

// Unloaded returns the block used in place of a position that has no
// backend entry yet. Every node reads as the empty content string with zero
// parameters. The name table is seeded with id 0 for the empty string so
// that reads resolve without special cases.
func Unloaded() *MapBlock {
	b := &MapBlock{
		nameFor: make(map[uint16]string),
		idFor:   make(map[string]uint16),
	}
	b.addMapping(0, "")
	return b
}

// addMapping inserts a name table entry and keeps nextID past every id seen.
func (b *MapBlock) addMapping(id uint16, name string) {
	b.nameFor[id] = name
	b.idFor[name] = id
	if id >= b.nextID {
		b.nextID = id + 1
	}
}

// GetOrCreateContentID returns the block-local id for the given item
// string, assigning the next unused id if the string is not yet in the name
// table.
func (b *MapBlock) GetOrCreateContentID(content string) uint16 {
	if id, ok := b.idFor[content]; ok {
		return id
	}
	id := b.nextID
	b.addMapping(id, content)
	return id
}

// ContentName resolves a content id through the name table.
func (b *MapBlock) ContentName(id uint16) (string, bool) {
	name, ok := b.nameFor[id]
	return name, ok
}

// GetNode returns the node at the given block-relative position. It fails
// only if the node's content id is missing from the name table, which
// cannot happen for blocks produced by Decode or Unloaded.
func (b *MapBlock) GetNode(np coords.NodePos) (Node, error) {
	i := np.Index()
	id := b.param0[i]
	name, ok := b.nameFor[id]
	if !ok {
		return Node{}, fmt.Errorf("node %v: id %d: %w", np, id, ErrUnknownContentID)
	}
	return Node{Content: name, Param1: b.param1[i], Param2: b.param2[i]}, nil
}

// SetContent stores a content id at the given position. The id should come
// from GetOrCreateContentID on this same block.
func (b *MapBlock) SetContent(np coords.NodePos, id uint16) {
	b.param0[np.Index()] = id
}

// SetParam1 stores the first parameter byte at the given position.
func (b *MapBlock) SetParam1(np coords.NodePos, v byte) {
	b.param1[np.Index()] = v
}

// SetParam2 stores the second parameter byte at the given position.
func (b *MapBlock) SetParam2(np coords.NodePos, v byte) {
	b.param2[np.Index()] = v
}

// SetNode stores all three node fields at the given position, assigning a
// content id for the node's item string as needed.
func (b *MapBlock) SetNode(np coords.NodePos, n Node) {
	id := b.GetOrCreateContentID(n.Content)
	i := np.Index()
	b.param0[i] = id
	b.param1[i] = n.Param1
	b.param2[i] = n.Param2
}

// ForEachNode calls fn for every node of the block in flat index order,
// stopping at the first error.
func (b *MapBlock) ForEachNode(fn func(coords.NodePos, Node) error) error {
	for i := 0; i < coords.BlockVolume; i++ {
		np := coords.NodeIndex(i).Pos()
		n, err := b.GetNode(np)
		if err != nil {
			return err
		}
		if err := fn(np, n); err != nil {
			return err
		}
	}
	return nil
}

// CountContent returns how many nodes of the block carry the given item
// string. A string absent from the name table trivially counts zero.
func (b *MapBlock) CountContent(content string) int {
	id, ok := b.idFor[content]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range b.param0 {
		if v == id {
			n++
		}
	}
	return n
}
