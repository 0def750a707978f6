package coords

import (
	"errors"
	"math/rand"
	"testing"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	// Sweep one axis exhaustively while the others sit at interesting values.
	anchors := []int16{-32768, -17, -16, -1, 0, 1, 15, 16, 32767}

	for _, a := range anchors {
		for x := -32768; x <= 32767; x++ {
			p := Pos{X: int16(x), Y: a, Z: a ^ 0x55}
			bp, np := Split(p)
			if got := Join(bp, np); got != p {
				t.Fatalf("Join(Split(%v)) = %v, want %v", p, got, p)
			}
		}
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100000; i++ {
		p := Pos{X: int16(rng.Intn(65536) - 32768), Y: int16(rng.Intn(65536) - 32768), Z: int16(rng.Intn(65536) - 32768)}
		bp, np := Split(p)
		if got := Join(bp, np); got != p {
			t.Fatalf("Join(Split(%v)) = %v, want %v", p, got, p)
		}
	}
}

func TestSplitAlignment(t *testing.T) {
	p := Pos{X: -1, Y: 17, Z: -33}
	bp, np := Split(p)

	origin := bp.Pos()
	if origin.X&NodeMask != 0 || origin.Y&NodeMask != 0 || origin.Z&NodeMask != 0 {
		t.Errorf("block origin %v is not aligned", origin)
	}

	x, y, z := np.XYZ()
	if x != 15 || y != 1 || z != 15 {
		t.Errorf("expected node position (15,1,15), got (%d,%d,%d)", x, y, z)
	}

	idx := bp.Index()
	if idx.X != -1 || idx.Y != 1 || idx.Z != -3 {
		t.Errorf("expected block index (-1,1,-3), got %v", idx)
	}
}

func TestBlockKeyKnownValues(t *testing.T) {
	// Reference vectors taken from an existing world database.
	cases := []struct {
		key     int64
		x, y, z int
	}{
		{134270984, 8, 13, 8},
		{-184549374, 2, 0, -11},
		{0, 0, 0, 0},
	}

	for _, c := range cases {
		want, err := BlockPosFromIndex(c.x, c.y, c.z)
		if err != nil {
			t.Fatalf("BlockPosFromIndex(%d,%d,%d) failed: %v", c.x, c.y, c.z, err)
		}

		key, err := NewBlockKey(c.key)
		if err != nil {
			t.Fatalf("NewBlockKey(%d) failed: %v", c.key, err)
		}

		if got := key.Pos(); got != want {
			t.Errorf("key %d decoded to %v, want %v", c.key, got, want)
		}

		if got := want.Key(); int64(got) != c.key {
			t.Errorf("%v encoded to key %d, want %d", want, int64(got), c.key)
		}
	}
}

func TestBlockKeyBijection(t *testing.T) {
	// Exhaustive sweep along each axis with the other two pinned, plus the
	// eight corners of the valid cube.
	pinned := []int{BlockIndexMin, -1, 0, BlockIndexMax}

	check := func(x, y, z int) {
		bp, err := BlockPosFromIndex(x, y, z)
		if err != nil {
			t.Fatalf("BlockPosFromIndex(%d,%d,%d) failed: %v", x, y, z, err)
		}
		key := bp.Key()
		if int64(key) < BlockKeyMin || int64(key) > BlockKeyMax {
			t.Fatalf("key %d for (%d,%d,%d) outside valid range", int64(key), x, y, z)
		}
		if got := key.Pos(); got != bp {
			t.Fatalf("key %d decoded to %v, want %v", int64(key), got, bp)
		}
	}

	for _, a := range pinned {
		for _, b := range pinned {
			for i := BlockIndexMin; i <= BlockIndexMax; i++ {
				check(i, a, b)
				check(a, i, b)
				check(a, b, i)
			}
		}
	}
}

func TestBlockKeyRoundTripFromKey(t *testing.T) {
	keys := []int64{BlockKeyMin, BlockKeyMin + 1, -1, 0, 1, BlockKeyMax - 1, BlockKeyMax}

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100000; i++ {
		const span = int64(BlockKeyMax-BlockKeyMin) + 1
		keys = append(keys, BlockKeyMin+rng.Int63n(span))
	}

	for _, raw := range keys {
		key, err := NewBlockKey(raw)
		if err != nil {
			t.Fatalf("NewBlockKey(%d) failed: %v", raw, err)
		}
		if got := key.Pos().Key(); got != key {
			t.Errorf("key %d round-tripped to %d", raw, int64(got))
		}
	}
}

func TestBlockKeyRange(t *testing.T) {
	for _, raw := range []int64{BlockKeyMin - 1, BlockKeyMax + 1} {
		if _, err := NewBlockKey(raw); !errors.Is(err, ErrKeyOutOfRange) {
			t.Errorf("NewBlockKey(%d): expected ErrKeyOutOfRange, got %v", raw, err)
		}
	}

	for _, raw := range []int64{BlockKeyMin, BlockKeyMax} {
		if _, err := NewBlockKey(raw); err != nil {
			t.Errorf("NewBlockKey(%d): unexpected error %v", raw, err)
		}
	}
}

func TestBlockPosFromIndexRange(t *testing.T) {
	bad := [][3]int{
		{BlockIndexMin - 1, 0, 0},
		{0, BlockIndexMax + 1, 0},
		{0, 0, BlockIndexMin - 1},
	}
	for _, c := range bad {
		if _, err := BlockPosFromIndex(c[0], c[1], c[2]); !errors.Is(err, ErrBlockOutOfRange) {
			t.Errorf("BlockPosFromIndex(%v): expected ErrBlockOutOfRange, got %v", c, err)
		}
	}
}

func TestNodeIndexBijection(t *testing.T) {
	for i := 0; i < BlockVolume; i++ {
		idx, err := NewNodeIndex(uint16(i))
		if err != nil {
			t.Fatalf("NewNodeIndex(%d) failed: %v", i, err)
		}
		if got := idx.Pos().Index(); got != idx {
			t.Fatalf("index %d round-tripped to %d", i, got)
		}
	}

	// Boundary cases.
	zero, _ := NewNodeIndex(0)
	if got := zero.Pos(); got != (NodePos{}) {
		t.Errorf("index 0 decoded to %v, want (0,0,0)", got)
	}

	last, _ := NewNodeIndex(BlockVolume - 1)
	want, _ := NewNodePos(BlockLength-1, BlockLength-1, BlockLength-1)
	if got := last.Pos(); got != want {
		t.Errorf("index %d decoded to %v, want %v", BlockVolume-1, got, want)
	}
}

func TestNodeRangeChecks(t *testing.T) {
	if _, err := NewNodeIndex(BlockVolume); !errors.Is(err, ErrNodeOutOfRange) {
		t.Errorf("NewNodeIndex(%d): expected ErrNodeOutOfRange, got %v", BlockVolume, err)
	}

	bad := [][3]uint16{
		{BlockLength, 0, 0},
		{0, BlockLength, 0},
		{0, 0, BlockLength},
	}
	for _, c := range bad {
		if _, err := NewNodePos(c[0], c[1], c[2]); !errors.Is(err, ErrNodeOutOfRange) {
			t.Errorf("NewNodePos(%v): expected ErrNodeOutOfRange, got %v", c, err)
		}
	}
}

func TestNodePosIndexPacking(t *testing.T) {
	np, err := NewNodePos(1, 2, 3)
	if err != nil {
		t.Fatalf("NewNodePos failed: %v", err)
	}
	if got := np.Index(); got != 1+2*16+3*256 {
		t.Errorf("expected index %d, got %d", 1+2*16+3*256, got)
	}
}
