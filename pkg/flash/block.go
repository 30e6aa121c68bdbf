// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package flash models the memory of the emulated target as a set of
// non-overlapping address blocks.
//
// Blocks stand in for on-chip flash, peripheral ID registers and SRAM. They
// are byte addressable, start out erased (0xFF) and are never resized.
package flash

// ErasedByte is the value of every byte of a freshly created or erased block.
const ErasedByte = 0xFF

// Block is one contiguous addressable region backed by a byte buffer
type Block struct {
	base uint32
	size uint32
	data []byte
}

// NewBlock creates an erased block covering [base, base+size)
func NewBlock(base, size uint32) *Block {
	data := make([]byte, size)
	for i := range data {
		data[i] = ErasedByte
	}
	return &Block{base: base, size: size, data: data}
}

// Base returns the first address of the block
func (b *Block) Base() uint32 {
	return b.base
}

// Size returns the number of bytes in the block
func (b *Block) Size() uint32 {
	return b.size
}

// End returns the first address past the block. Computed in 64 bits so a
// block ending at 0xFFFFFFFF does not wrap.
func (b *Block) End() uint64 {
	return uint64(b.base) + uint64(b.size)
}

// Contains reports whether [addr, addr+n) lies entirely inside the block
func (b *Block) Contains(addr, n uint32) bool {
	return addr >= b.base && uint64(addr)+uint64(n) <= b.End()
}

// Overlaps reports whether the half-open range [base, base+size) intersects the block
func (b *Block) Overlaps(base, size uint32) bool {
	return uint64(base) < b.End() && uint64(b.base) < uint64(base)+uint64(size)
}

// Write copies data into the block at addr
func (b *Block) Write(addr uint32, data []byte) error {
	n := uint32(len(data))
	if uint64(len(data)) > uint64(b.size) || !b.Contains(addr, n) {
		return &OutOfBoundsError{Addr: addr, Len: n}
	}
	copy(b.data[addr-b.base:], data)
	return nil
}

// Read returns a copy of n bytes starting at addr
func (b *Block) Read(addr, n uint32) ([]byte, error) {
	if !b.Contains(addr, n) {
		return nil, &OutOfBoundsError{Addr: addr, Len: n}
	}
	off := addr - b.base
	out := make([]byte, n)
	copy(out, b.data[off:off+n])
	return out, nil
}

// Erase resets n bytes starting at addr to ErasedByte
func (b *Block) Erase(addr, n uint32) error {
	if !b.Contains(addr, n) {
		return &OutOfBoundsError{Addr: addr, Len: n}
	}
	off := addr - b.base
	for i := off; i < off+n; i++ {
		b.data[i] = ErasedByte
	}
	return nil
}
