package mapblock

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/VoxMapDB/voxmap/pkg/coords"
)

const (
	// FormatVersion is the only wire format version this codec reads or
	// writes. Any other leading version byte is a hard decode failure.
	FormatVersion = 29

	// Field widths fixed by the format version.
	contentWidth = 2
	paramsWidth  = 2

	// nameTableVersion is the serialization version of the name table
	// section inside the body.
	nameTableVersion = 0
)

// Shared zstd state. EncodeAll and DecodeAll on these are safe for
// concurrent use. Construction with default options cannot fail.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Decode parses a stored block buffer.
//
// The buffer is a single version byte followed by a zstd-compressed body:
// flags, lighting-complete bits, timestamp, the content name table, the
// content and parameter widths, the three node planes, and finally the
// opaque trailing sub-payloads. All multi-byte fields are big-endian.
func Decode(data []byte) (*MapBlock, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("version byte: %w", ErrTruncated)
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("version %d: %w", data[0], ErrUnsupportedVersion)
	}

	body, err := zstdDecoder.DecodeAll(data[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBody, err)
	}

	b := &MapBlock{
		nameFor: make(map[uint16]string),
		idFor:   make(map[string]uint16),
	}
	r := &bodyReader{buf: body}

	if b.Flags, err = r.readU8("flags"); err != nil {
		return nil, err
	}
	if b.LightingComplete, err = r.readU16("lighting complete"); err != nil {
		return nil, err
	}
	if b.Timestamp, err = r.readU32("timestamp"); err != nil {
		return nil, err
	}

	if err := decodeNameTable(r, b); err != nil {
		return nil, err
	}

	cw, err := r.readU8("content width")
	if err != nil {
		return nil, err
	}
	pw, err := r.readU8("params width")
	if err != nil {
		return nil, err
	}
	if cw != contentWidth || pw != paramsWidth {
		return nil, fmt.Errorf("content width %d, params width %d: %w", cw, pw, ErrUnsupportedVersion)
	}

	plane0, err := r.readBytes(coords.BlockVolume*contentWidth, "content plane")
	if err != nil {
		return nil, err
	}
	for i := 0; i < coords.BlockVolume; i++ {
		b.param0[i] = binary.BigEndian.Uint16(plane0[2*i:])
	}

	plane1, err := r.readBytes(coords.BlockVolume, "param1 plane")
	if err != nil {
		return nil, err
	}
	copy(b.param1[:], plane1)

	plane2, err := r.readBytes(coords.BlockVolume, "param2 plane")
	if err != nil {
		return nil, err
	}
	copy(b.param2[:], plane2)

	// Whatever follows the node planes (node metadata, static objects, node
	// timers) is self-delimited and not interpreted here.
	b.extra = append([]byte(nil), r.rest()...)

	// Every id the node plane references must resolve.
	for i := 0; i < coords.BlockVolume; i++ {
		if _, ok := b.nameFor[b.param0[i]]; !ok {
			return nil, fmt.Errorf("node index %d: id %d: %w", i, b.param0[i], ErrUnknownContentID)
		}
	}

	return b, nil
}

func decodeNameTable(r *bodyReader, b *MapBlock) error {
	ver, err := r.readU8("name table version")
	if err != nil {
		return err
	}
	if ver != nameTableVersion {
		return fmt.Errorf("name table version %d: %w", ver, ErrBadNameTable)
	}

	count, err := r.readU16("name table count")
	if err != nil {
		return err
	}

	for n := 0; n < int(count); n++ {
		id, err := r.readU16("name table id")
		if err != nil {
			return err
		}
		nameLen, err := r.readU16("name length")
		if err != nil {
			return err
		}
		name, err := r.readBytes(int(nameLen), "name")
		if err != nil {
			return err
		}
		if _, dup := b.nameFor[id]; dup {
			return fmt.Errorf("duplicate id %d: %w", id, ErrBadNameTable)
		}
		b.addMapping(id, string(name))
	}

	return nil
}

// Encode serializes the block back into its stored form, reproducing the
// version byte and re-appending the opaque trailing payload unchanged.
// Decode(Encode(b)) is field-wise equal to b for any block Decode produced.
func (b *MapBlock) Encode() ([]byte, error) {
	body := make([]byte, 0, 7+4*coords.BlockVolume+len(b.extra))

	body = append(body, b.Flags)
	body = binary.BigEndian.AppendUint16(body, b.LightingComplete)
	body = binary.BigEndian.AppendUint32(body, b.Timestamp)

	body = b.appendNameTable(body)

	body = append(body, contentWidth, paramsWidth)
	for i := 0; i < coords.BlockVolume; i++ {
		body = binary.BigEndian.AppendUint16(body, b.param0[i])
	}
	body = append(body, b.param1[:]...)
	body = append(body, b.param2[:]...)
	body = append(body, b.extra...)

	out := make([]byte, 1, 1+len(body)/2)
	out[0] = FormatVersion
	return zstdEncoder.EncodeAll(body, out), nil
}

// appendNameTable writes the table ordered by content id so that encoding
// is deterministic.
func (b *MapBlock) appendNameTable(body []byte) []byte {
	ids := make([]int, 0, len(b.nameFor))
	for id := range b.nameFor {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	body = append(body, nameTableVersion)
	body = binary.BigEndian.AppendUint16(body, uint16(len(ids)))
	for _, id := range ids {
		name := b.nameFor[uint16(id)]
		body = binary.BigEndian.AppendUint16(body, uint16(id))
		body = binary.BigEndian.AppendUint16(body, uint16(len(name)))
		body = append(body, name...)
	}
	return body
}

// bodyReader is a cursor over the decompressed block body. Every read
// names the field it was after so truncation errors carry context.
type bodyReader struct {
	buf []byte
	off int
}

func (r *bodyReader) readU8(field string) (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, fmt.Errorf("%s: %w", field, ErrTruncated)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *bodyReader) readU16(field string) (uint16, error) {
	if r.off+2 > len(r.buf) {
		return 0, fmt.Errorf("%s: %w", field, ErrTruncated)
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *bodyReader) readU32(field string) (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("%s: %w", field, ErrTruncated)
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *bodyReader) readBytes(n int, field string) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%s: %w", field, ErrTruncated)
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *bodyReader) rest() []byte {
	return r.buf[r.off:]
}
