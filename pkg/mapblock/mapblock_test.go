package mapblock

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/VoxMapDB/voxmap/pkg/coords"
)

func mustNodePos(t *testing.T, x, y, z uint16) coords.NodePos {
	t.Helper()
	np, err := coords.NewNodePos(x, y, z)
	if err != nil {
		t.Fatalf("NewNodePos(%d,%d,%d) failed: %v", x, y, z, err)
	}
	return np
}

func TestUnloadedDefaults(t *testing.T) {
	b := Unloaded()

	positions := [][3]uint16{{0, 0, 0}, {15, 15, 15}, {8, 9, 10}}
	for _, p := range positions {
		np := mustNodePos(t, p[0], p[1], p[2])
		n, err := b.GetNode(np)
		if err != nil {
			t.Fatalf("GetNode(%v) failed: %v", np, err)
		}
		if n.Content != "" || n.Param1 != 0 || n.Param2 != 0 {
			t.Errorf("expected empty default node at %v, got %+v", np, n)
		}
	}
}

func TestContentIDAssignment(t *testing.T) {
	b := Unloaded()

	if id := b.GetOrCreateContentID(""); id != 0 {
		t.Errorf("expected empty string to keep id 0, got %d", id)
	}

	stone := b.GetOrCreateContentID("default:stone")
	dirt := b.GetOrCreateContentID("default:dirt")
	if stone == dirt {
		t.Errorf("distinct strings shared id %d", stone)
	}
	if again := b.GetOrCreateContentID("default:stone"); again != stone {
		t.Errorf("repeat lookup changed id from %d to %d", stone, again)
	}

	if name, ok := b.ContentName(stone); !ok || name != "default:stone" {
		t.Errorf("ContentName(%d) = %q, %v", stone, name, ok)
	}
}

func TestSetAndGetNode(t *testing.T) {
	b := Unloaded()
	np := mustNodePos(t, 8, 9, 10)

	b.SetNode(np, Node{Content: "default:stone", Param1: 15, Param2: 3})

	n, err := b.GetNode(np)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if n.Content != "default:stone" || n.Param1 != 15 || n.Param2 != 3 {
		t.Errorf("unexpected node %+v", n)
	}

	// Neighbours stay untouched.
	other := mustNodePos(t, 8, 9, 11)
	n, err = b.GetNode(other)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if n.Content != "" {
		t.Errorf("neighbour node unexpectedly %+v", n)
	}
}

func TestSetParamPlanes(t *testing.T) {
	b := Unloaded()
	np := mustNodePos(t, 1, 2, 3)

	b.SetParam1(np, 0xAB)
	b.SetParam2(np, 0xCD)

	n, err := b.GetNode(np)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if n.Param1 != 0xAB || n.Param2 != 0xCD {
		t.Errorf("unexpected params %+v", n)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := Unloaded()
	b.Flags = 0x05
	b.LightingComplete = 0xFFFF
	b.Timestamp = 12345
	b.extra = []byte{0x01, 0x00, 0x02, 0xAA, 0xBB}

	b.SetNode(mustNodePos(t, 0, 0, 0), Node{Content: "default:stone", Param1: 1, Param2: 2})
	b.SetNode(mustNodePos(t, 15, 15, 15), Node{Content: "default:dirt", Param1: 3, Param2: 4})
	b.SetNode(mustNodePos(t, 7, 0, 9), Node{Content: "air", Param1: 15})

	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if data[0] != FormatVersion {
		t.Fatalf("expected leading version byte %d, got %d", FormatVersion, data[0])
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(b, decoded) {
		t.Errorf("decoded block differs from original")
	}

	// Re-encoding a decoded block must be a fixed point.
	data2, err := decoded.Encode()
	if err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}
	decoded2, err := Decode(data2)
	if err != nil {
		t.Fatalf("re-Decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, decoded2) {
		t.Errorf("second decode differs from first")
	}
}

func TestDecodeRejectsVersion(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("Decode(nil): expected ErrTruncated, got %v", err)
	}

	for _, version := range []byte{0, 28, 30, 255} {
		_, err := Decode([]byte{version, 0x00})
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("Decode(version %d): expected ErrUnsupportedVersion, got %v", version, err)
		}
	}
}

func TestDecodeCorruptBody(t *testing.T) {
	_, err := Decode([]byte{FormatVersion, 0xDE, 0xAD, 0xBE, 0xEF})
	if !errors.Is(err, ErrCorruptBody) {
		t.Errorf("expected ErrCorruptBody, got %v", err)
	}
}

// compressBody wraps a raw body in the version byte + zstd framing that
// Decode expects.
func compressBody(body []byte) []byte {
	return zstdEncoder.EncodeAll(body, []byte{FormatVersion})
}

// minimalHeader returns a body prefix up to and including the name table
// header with the given entry count.
func minimalHeader(count uint16) []byte {
	body := []byte{
		0x00,       // flags
		0x00, 0x00, // lighting complete
		0x00, 0x00, 0x00, 0x00, // timestamp
		nameTableVersion,
	}
	return binary.BigEndian.AppendUint16(body, count)
}

func TestDecodeTruncatedBody(t *testing.T) {
	// Body ends in the middle of the timestamp.
	body := []byte{0x00, 0x00, 0x00, 0x00, 0x00}
	if _, err := Decode(compressBody(body)); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}

	// Name table promises an entry that is not there.
	if _, err := Decode(compressBody(minimalHeader(1))); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for short name table, got %v", err)
	}

	// Complete header but the node planes are missing.
	body = minimalHeader(0)
	body = append(body, contentWidth, paramsWidth)
	if _, err := Decode(compressBody(body)); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for missing planes, got %v", err)
	}
}

func TestDecodeBadNameTable(t *testing.T) {
	// Wrong name table version.
	body := []byte{
		0x00,
		0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x01,       // unsupported table version
		0x00, 0x00, // count
	}
	if _, err := Decode(compressBody(body)); !errors.Is(err, ErrBadNameTable) {
		t.Errorf("expected ErrBadNameTable, got %v", err)
	}

	// Duplicate id.
	body = minimalHeader(2)
	for i := 0; i < 2; i++ {
		body = binary.BigEndian.AppendUint16(body, 7) // same id twice
		body = binary.BigEndian.AppendUint16(body, 1)
		body = append(body, 'a')
	}
	if _, err := Decode(compressBody(body)); !errors.Is(err, ErrBadNameTable) {
		t.Errorf("expected ErrBadNameTable for duplicate id, got %v", err)
	}
}

func TestDecodeUnknownContentID(t *testing.T) {
	// Empty name table, node planes all zero: id 0 resolves nowhere.
	body := minimalHeader(0)
	body = append(body, contentWidth, paramsWidth)
	body = append(body, make([]byte, 4*coords.BlockVolume)...)

	if _, err := Decode(compressBody(body)); !errors.Is(err, ErrUnknownContentID) {
		t.Errorf("expected ErrUnknownContentID, got %v", err)
	}
}

func TestDecodeUnsupportedWidths(t *testing.T) {
	body := minimalHeader(0)
	body = append(body, 4, paramsWidth) // bad content width
	if _, err := Decode(compressBody(body)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion for width 4, got %v", err)
	}
}

func TestDecodePreservesTrailingPayload(t *testing.T) {
	body := minimalHeader(1)
	body = binary.BigEndian.AppendUint16(body, 0)
	body = binary.BigEndian.AppendUint16(body, 3)
	body = append(body, "air"...)
	body = append(body, contentWidth, paramsWidth)
	body = append(body, make([]byte, 4*coords.BlockVolume)...)
	trailing := []byte{0xCA, 0xFE, 0x00, 0x42}
	body = append(body, trailing...)

	b, err := Decode(compressBody(body))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	again, err := Decode(data)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if !reflect.DeepEqual(b, again) {
		t.Errorf("trailing payload not preserved across encode/decode")
	}
	if len(again.extra) != len(trailing) {
		t.Errorf("expected %d trailing bytes, got %d", len(trailing), len(again.extra))
	}
}

func TestForEachNodeAndCount(t *testing.T) {
	b := Unloaded()
	b.SetNode(mustNodePos(t, 1, 1, 1), Node{Content: "default:stone"})
	b.SetNode(mustNodePos(t, 2, 2, 2), Node{Content: "default:stone"})

	total := 0
	stone := 0
	err := b.ForEachNode(func(np coords.NodePos, n Node) error {
		total++
		if n.Content == "default:stone" {
			stone++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachNode failed: %v", err)
	}
	if total != coords.BlockVolume {
		t.Errorf("expected %d nodes, visited %d", coords.BlockVolume, total)
	}
	if stone != 2 {
		t.Errorf("expected 2 stone nodes, got %d", stone)
	}

	if got := b.CountContent("default:stone"); got != 2 {
		t.Errorf("CountContent = %d, want 2", got)
	}
	if got := b.CountContent("default:missing"); got != 0 {
		t.Errorf("CountContent for absent string = %d, want 0", got)
	}
}
