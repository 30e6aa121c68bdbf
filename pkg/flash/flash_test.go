// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of property rounds from FUZZ_ROUNDS, default 500
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 500
}

// newFuzzRng creates a seeded generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Block Tests
// ============================================================

func TestBlock_StartsErased(t *testing.T) {
	b := NewBlock(0x100, 16)
	if uint32(len(b.data)) != b.Size() {
		t.Fatalf("buffer length %d != size %d", len(b.data), b.Size())
	}
	for i, v := range b.data {
		if v != ErasedByte {
			t.Fatalf("byte %d = 0x%02X, want 0xFF", i, v)
		}
	}
}

func TestBlock_ReadWriteBounds(t *testing.T) {
	b := NewBlock(0x100, 10)

	outside := []uint32{0, 20, 90, 0x90, 0x99, 0x108, 0x10B}
	for _, addr := range outside {
		if err := b.Write(addr, []byte{1, 2, 3}); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Write(0x%X) error = %v, want ErrOutOfBounds", addr, err)
		}
	}

	if err := b.Write(0x100, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write(0x100) failed: %v", err)
	}
	if err := b.Write(0x107, []byte{7, 8, 9}); err != nil {
		t.Fatalf("Write at last 3 bytes failed: %v", err)
	}

	if _, err := b.Read(0, 3); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Read(0) error = %v, want ErrOutOfBounds", err)
	}
	got, err := b.Read(0x100, 3)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Read = %v, want [1 2 3]", got)
	}
}

// The end-of-range check once compared addr+len against itself and was
// always false, so writes running past the end of a block were accepted.
func TestBlock_RejectsWritePastEnd(t *testing.T) {
	b := NewBlock(0x2000, 0x100)

	tests := []struct {
		name string
		addr uint32
		n    int
		ok   bool
	}{
		{"ends exactly at limit", 0x20FC, 4, true},
		{"one byte past limit", 0x20FD, 4, false},
		{"starts at limit", 0x2100, 1, false},
		{"whole block", 0x2000, 0x100, true},
		{"whole block plus one", 0x2000, 0x101, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Write(tt.addr, make([]byte, tt.n))
			if tt.ok && err != nil {
				t.Errorf("Write error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("Write error = %v, want ErrOutOfBounds", err)
			}
			_, err = b.Read(tt.addr, uint32(tt.n))
			if !tt.ok && !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("Read error = %v, want ErrOutOfBounds", err)
			}
			err = b.Erase(tt.addr, uint32(tt.n))
			if !tt.ok && !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("Erase error = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestBlock_TopOfAddressSpace(t *testing.T) {
	b := NewBlock(0xFFFFFF00, 0x100)
	if err := b.Write(0xFFFFFFFC, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write at top of address space failed: %v", err)
	}
	if err := b.Write(0xFFFFFFFE, []byte{1, 2, 3, 4}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("wrapping Write error = %v, want ErrOutOfBounds", err)
	}
}

// ============================================================
// Store Tests
// ============================================================

func TestStore_AddBlockOverlap(t *testing.T) {
	s := NewStore()
	if err := s.AddBlock(30, 100); err != nil {
		t.Fatalf("AddBlock(30, 100) failed: %v", err)
	}

	tests := []struct {
		base, size uint32
		overlap    bool
	}{
		{40, 100, true},   // starts inside
		{131, 100, false}, // after, with a gap
		{20, 100, true},   // covers start
		{20, 9, false},    // ends at 29
		{29, 1, false},    // fills the gap at 29
		{0, 1000, true},   // swallows everything
	}

	for _, tt := range tests {
		err := s.AddBlock(tt.base, tt.size)
		if tt.overlap && !errors.Is(err, ErrOverlap) {
			t.Errorf("AddBlock(%d, %d) error = %v, want ErrOverlap", tt.base, tt.size, err)
		}
		if !tt.overlap && err != nil {
			t.Errorf("AddBlock(%d, %d) error = %v, want nil", tt.base, tt.size, err)
		}
	}
}

func TestStore_AddBlockAdjacent(t *testing.T) {
	s := NewStore()
	if err := s.AddBlock(0x1000, 0x100); err != nil {
		t.Fatal(err)
	}
	// Half-open ranges: touching at 0x1100 is not an overlap.
	if err := s.AddBlock(0x1100, 0x100); err != nil {
		t.Errorf("adjacent AddBlock failed: %v", err)
	}
	if err := s.AddBlock(0x0F00, 0x100); err != nil {
		t.Errorf("adjacent AddBlock below failed: %v", err)
	}
	if err := s.AddBlock(0x10FF, 2); !errors.Is(err, ErrOverlap) {
		t.Errorf("straddling AddBlock error = %v, want ErrOverlap", err)
	}
}

func TestStore_AddBlockInvalid(t *testing.T) {
	s := NewStore()
	if err := s.AddBlock(0x1000, 0); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("zero size error = %v, want ErrInvalidBlock", err)
	}
	if err := s.AddBlock(0xFFFFFFF0, 0x20); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("wrapping block error = %v, want ErrInvalidBlock", err)
	}
}

func TestStore_SpanningAdjacentBlocks(t *testing.T) {
	s := NewStore()
	if err := s.AddBlock(0x1000, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := s.AddBlock(0x1010, 0x10); err != nil {
		t.Fatal(err)
	}

	if err := s.Write(0x100E, []byte{1, 2, 3, 4}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("spanning Write error = %v, want ErrOutOfBounds", err)
	}
	if _, err := s.Read(0x100E, 4); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("spanning Read error = %v, want ErrOutOfBounds", err)
	}
	if err := s.Erase(0x100E, 4); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("spanning Erase error = %v, want ErrOutOfBounds", err)
	}

	var oob *OutOfBoundsError
	err := s.Write(0x100E, []byte{1, 2, 3, 4})
	if !errors.As(err, &oob) || oob.Addr != 0x100E || oob.Len != 4 {
		t.Errorf("error details = %+v, want addr=0x100E len=4", oob)
	}
}

func TestStore_UnmappedAccess(t *testing.T) {
	s := NewStore()
	if err := s.AddBlock(0x1000, 0x10); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(0x0FFF, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Read below block error = %v", err)
	}
	if _, err := s.Read(0x1010, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Read above block error = %v", err)
	}
	if s.Contains(0x1000, 0x11) {
		t.Error("Contains should be false past the block end")
	}
	if !s.Contains(0x1000, 0x10) {
		t.Error("Contains should be true for the whole block")
	}
}

func TestStore_EraseThenRead(t *testing.T) {
	s := NewStore()
	if err := s.AddBlock(0x2000, 0x100); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(0x2010, []byte{0xDE, 0xAD, 0xBE, 0xEF}); err != nil {
		t.Fatal(err)
	}
	if err := s.Erase(0x2010, 4); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	got, err := s.Read(0x2010, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("after erase = % X, want FF FF FF FF", got)
	}
}

func TestStore_BlocksOrdered(t *testing.T) {
	s := NewStore()
	for _, base := range []uint32{0x3000, 0x1000, 0x2000} {
		if err := s.AddBlock(base, 0x10); err != nil {
			t.Fatal(err)
		}
	}
	blocks := s.Blocks()
	want := []uint32{0x1000, 0x2000, 0x3000}
	for i, b := range blocks {
		if b.Base() != want[i] {
			t.Errorf("Blocks()[%d].Base() = 0x%X, want 0x%X", i, b.Base(), want[i])
		}
	}
}

// ============================================================
// Property Tests
// ============================================================

func TestStore_WriteReadProperty(t *testing.T) {
	rng := newFuzzRng(t)
	s, err := DefaultMemoryMap().Build()
	if err != nil {
		t.Fatal(err)
	}
	blocks := s.Blocks()

	for round := 0; round < getFuzzRounds(); round++ {
		b := blocks[rng.Intn(len(blocks))]
		n := uint32(rng.Intn(64) + 1)
		if n > b.Size() {
			n = b.Size()
		}
		addr := b.Base() + uint32(rng.Int63n(int64(b.Size()-n)+1))
		data := make([]byte, n)
		rng.Read(data)

		if err := s.Write(addr, data); err != nil {
			t.Fatalf("round %d: Write(0x%08X, %d) failed: %v", round, addr, n, err)
		}
		got, err := s.Read(addr, n)
		if err != nil {
			t.Fatalf("round %d: Read failed: %v", round, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("round %d: read back % X, want % X", round, got, data)
		}
	}
}

func TestStore_OutOfBoundsProperty(t *testing.T) {
	rng := newFuzzRng(t)
	s, err := DefaultMemoryMap().Build()
	if err != nil {
		t.Fatal(err)
	}

	for round := 0; round < getFuzzRounds(); round++ {
		addr := rng.Uint32()
		n := uint32(rng.Intn(0x400) + 1)

		contained := false
		for _, b := range s.Blocks() {
			if b.Contains(addr, n) {
				contained = true
			}
		}

		err := s.Write(addr, make([]byte, n))
		if contained != (err == nil) {
			t.Fatalf("round %d: Write(0x%08X, %d) error = %v, contained = %v", round, addr, n, err, contained)
		}
		if !contained && !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("round %d: error = %v, want ErrOutOfBounds", round, err)
		}
	}
}

func TestStore_OverlapProperty(t *testing.T) {
	rng := newFuzzRng(t)
	s := NewStore()

	for round := 0; round < getFuzzRounds(); round++ {
		base := uint32(rng.Intn(0x10000))
		size := uint32(rng.Intn(0x200) + 1)

		intersects := false
		for _, b := range s.Blocks() {
			if base < b.Base()+b.Size() && b.Base() < base+size {
				intersects = true
			}
		}

		err := s.AddBlock(base, size)
		if intersects && !errors.Is(err, ErrOverlap) {
			t.Fatalf("round %d: AddBlock(0x%X, 0x%X) error = %v, want ErrOverlap", round, base, size, err)
		}
		if !intersects && err != nil {
			t.Fatalf("round %d: AddBlock(0x%X, 0x%X) error = %v, want nil", round, base, size, err)
		}
	}

	blocks := s.Blocks()
	for i := 1; i < len(blocks); i++ {
		if uint64(blocks[i-1].Base())+uint64(blocks[i-1].Size()) > uint64(blocks[i].Base()) {
			t.Fatalf("blocks %d and %d overlap", i-1, i)
		}
	}
}

// ============================================================
// Memory Map Tests
// ============================================================

func TestDefaultMemoryMap_Sentinels(t *testing.T) {
	s, err := DefaultMemoryMap().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, addr := range []uint32{0x4, 0xE000ED00, 0x400E0740} {
		word, err := s.Read(addr, 4)
		if err != nil {
			t.Fatalf("Read(0x%08X) failed: %v", addr, err)
		}
		if got := binary.LittleEndian.Uint32(word); got != ChipID {
			t.Errorf("sentinel at 0x%08X = 0x%08X, want 0x%08X", addr, got, ChipID)
		}
	}
}

func TestMemoryMap_BuildRejectsOverlap(t *testing.T) {
	m := MemoryMap{Regions: []Region{
		{Name: "a", Base: 0x1000, Size: 0x100},
		{Name: "b", Base: 0x1080, Size: 0x100},
	}}
	if _, err := m.Build(); !errors.Is(err, ErrOverlap) {
		t.Errorf("Build error = %v, want ErrOverlap", err)
	}
}

func TestMemoryMap_BuildRejectsUnmappedSentinel(t *testing.T) {
	m := MemoryMap{
		Regions:   []Region{{Name: "a", Base: 0x1000, Size: 0x100}},
		Sentinels: []Sentinel{{Addr: 0x2000, Value: 1}},
	}
	if _, err := m.Build(); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Build error = %v, want ErrOutOfBounds", err)
	}
}

// ============================================================
// Image Tests
// ============================================================

func TestImage_SaveLoad(t *testing.T) {
	s, err := DefaultMemoryMap().Build()
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("firmware")
	if err := s.Write(0x2000, payload); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.SaveImage(&buf); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	loaded, err := LoadImage(&buf)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if len(loaded.Blocks()) != len(s.Blocks()) {
		t.Fatalf("loaded %d blocks, want %d", len(loaded.Blocks()), len(s.Blocks()))
	}
	got, err := loaded.Read(0x2000, uint32(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("loaded data = %q, want %q", got, payload)
	}
}

func TestImage_Restore(t *testing.T) {
	src, _ := DefaultMemoryMap().Build()
	if err := src.Write(0x20004000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	dst, _ := DefaultMemoryMap().Build()
	if err := dst.Restore(src); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	got, _ := dst.Read(0x20004000, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("restored = % X", got)
	}

	other := NewStore()
	if err := other.AddBlock(0x0, 0x10); err != nil {
		t.Fatal(err)
	}
	if err := dst.Restore(other); err == nil {
		t.Error("Restore with a different layout should fail")
	}
}

func TestImage_RejectsGarbage(t *testing.T) {
	if _, err := LoadImage(bytes.NewReader([]byte{0xFF, 0x00, 0x13})); err == nil {
		t.Error("LoadImage should reject invalid CBOR")
	}
}
