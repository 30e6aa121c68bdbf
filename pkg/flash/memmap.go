// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"encoding/binary"
	"fmt"
)

// Region is one named entry of a memory map
type Region struct {
	Name string
	Base uint32
	Size uint32
}

// Sentinel is a 32-bit little-endian value preloaded at a fixed address,
// used for chip identification registers.
type Sentinel struct {
	Addr  uint32
	Value uint32
}

// MemoryMap describes the blocks and preloaded values of an emulated target
type MemoryMap struct {
	Regions   []Region
	Sentinels []Sentinel
}

// ChipID is the SAMD21 device identifier reported by the default map
const ChipID = 0x10010005

// DefaultMemoryMap returns the SAMD21-like layout bossac probes during a session
func DefaultMemoryMap() MemoryMap {
	return MemoryMap{
		Regions: []Region{
			{Name: "vectors", Base: 0x00000000, Size: 0x300},
			{Name: "flash", Base: 0x00002000, Size: 0x20000},
			{Name: "scb", Base: 0xE000ED00, Size: 0x300},
			{Name: "chipid", Base: 0x400E0740, Size: 0x300},
			{Name: "nvmctrl", Base: 0x41004020, Size: 0x300},
			{Name: "pm", Base: 0x40000834, Size: 0x300},
			{Name: "sram", Base: 0x20004000, Size: 0x2000},
		},
		Sentinels: []Sentinel{
			{Addr: 0x00000004, Value: ChipID},
			{Addr: 0xE000ED00, Value: ChipID},
			{Addr: 0x400E0740, Value: ChipID},
		},
	}
}

// Build creates a store holding every region of the map with the sentinels written
func (m MemoryMap) Build(opts ...StoreOption) (*Store, error) {
	s := NewStore(opts...)
	for _, r := range m.Regions {
		if err := s.AddBlock(r.Base, r.Size); err != nil {
			return nil, fmt.Errorf("region %q: %w", r.Name, err)
		}
	}
	for _, sn := range m.Sentinels {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], sn.Value)
		if err := s.Write(sn.Addr, word[:]); err != nil {
			return nil, fmt.Errorf("sentinel at 0x%08X: %w", sn.Addr, err)
		}
	}
	return s, nil
}
