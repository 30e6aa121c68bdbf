// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Store is the full emulated address space: a set of blocks keyed by base
// address. Blocks never overlap and are never removed.
type Store struct {
	blocks map[uint32]*Block
	order  []uint32 // bases, ascending
	log    zerolog.Logger
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger attaches a logger for write/erase tracing
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates an empty store
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		blocks: make(map[uint32]*Block),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddBlock registers a new erased block covering [base, base+size)
func (s *Store) AddBlock(base, size uint32) error {
	if size == 0 || uint64(base)+uint64(size) > 1<<32 {
		return fmt.Errorf("%w: base=0x%08X size=0x%X", ErrInvalidBlock, base, size)
	}
	for _, b := range s.Blocks() {
		if b.Overlaps(base, size) {
			return &OverlapError{Base: base, Size: size, ExistingBase: b.base, ExistingSize: b.size}
		}
	}

	s.blocks[base] = NewBlock(base, size)
	s.order = append(s.order, base)
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })

	s.log.Debug().Uint32("base", base).Uint32("size", size).Msg("block added")
	return nil
}

// Blocks returns the registered blocks in ascending base order
func (s *Store) Blocks() []*Block {
	out := make([]*Block, 0, len(s.order))
	for _, base := range s.order {
		out = append(out, s.blocks[base])
	}
	return out
}

// Block returns the block registered at base, if any
func (s *Store) Block(base uint32) (*Block, bool) {
	b, ok := s.blocks[base]
	return b, ok
}

// Contains reports whether [addr, addr+n) fits inside a single block
func (s *Store) Contains(addr, n uint32) bool {
	return s.find(addr, n) != nil
}

// find returns the unique block fully containing [addr, addr+n)
func (s *Store) find(addr, n uint32) *Block {
	// Blocks are disjoint, so the only candidate is the last block whose
	// base is <= addr.
	i := sort.Search(len(s.order), func(i int) bool { return s.order[i] > addr })
	if i == 0 {
		return nil
	}
	b := s.blocks[s.order[i-1]]
	if !b.Contains(addr, n) {
		return nil
	}
	return b
}

// Write stores data at addr. The whole range must lie in one block.
func (s *Store) Write(addr uint32, data []byte) error {
	if uint64(len(data)) >= 1<<32 {
		return &OutOfBoundsError{Addr: addr, Len: ^uint32(0)}
	}
	b := s.find(addr, uint32(len(data)))
	if b == nil {
		s.log.Debug().Uint32("addr", addr).Int("len", len(data)).Msg("write out of bounds")
		return &OutOfBoundsError{Addr: addr, Len: uint32(len(data))}
	}
	s.log.Trace().Uint32("addr", addr).Hex("data", data).Msg("flash write")
	return b.Write(addr, data)
}

// Read returns n bytes starting at addr. The whole range must lie in one block.
func (s *Store) Read(addr, n uint32) ([]byte, error) {
	b := s.find(addr, n)
	if b == nil {
		s.log.Debug().Uint32("addr", addr).Uint32("len", n).Msg("read out of bounds")
		return nil, &OutOfBoundsError{Addr: addr, Len: n}
	}
	return b.Read(addr, n)
}

// Erase resets n bytes starting at addr to ErasedByte
func (s *Store) Erase(addr, n uint32) error {
	b := s.find(addr, n)
	if b == nil {
		return &OutOfBoundsError{Addr: addr, Len: n}
	}
	s.log.Debug().Uint32("addr", addr).Uint32("len", n).Msg("flash erase")
	return b.Erase(addr, n)
}
