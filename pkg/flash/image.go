// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is the snapshot format written by SaveImage
const ImageVersion = 1

// image is the CBOR snapshot layout: {1: version, 2: [{1: base, 2: data}, ...]}
type image struct {
	Version uint         `cbor:"1,keyasint"`
	Blocks  []imageBlock `cbor:"2,keyasint"`
}

type imageBlock struct {
	Base uint32 `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// SaveImage writes every block of the store as a CBOR snapshot
func (s *Store) SaveImage(w io.Writer) error {
	img := image{Version: ImageVersion}
	for _, b := range s.Blocks() {
		img.Blocks = append(img.Blocks, imageBlock{Base: b.base, Data: b.data})
	}
	data, err := cbor.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// LoadImage decodes a CBOR snapshot into a new store
func LoadImage(r io.Reader, opts ...StoreOption) (*Store, error) {
	var img image
	if err := cbor.NewDecoder(r).Decode(&img); err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("unsupported image version %d (want %d)", img.Version, ImageVersion)
	}

	s := NewStore(opts...)
	for _, ib := range img.Blocks {
		if uint64(len(ib.Data)) >= 1<<32 {
			return nil, fmt.Errorf("%w: block at 0x%08X too large", ErrInvalidBlock, ib.Base)
		}
		if err := s.AddBlock(ib.Base, uint32(len(ib.Data))); err != nil {
			return nil, err
		}
		if err := s.Write(ib.Base, ib.Data); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Restore copies the contents of every block in src into the matching block
// of s. Both stores must have exactly the same block layout.
func (s *Store) Restore(src *Store) error {
	if len(src.order) != len(s.order) {
		return fmt.Errorf("image has %d blocks, memory map has %d", len(src.order), len(s.order))
	}
	for _, b := range src.Blocks() {
		dst, ok := s.blocks[b.base]
		if !ok || dst.size != b.size {
			return fmt.Errorf("image block [0x%08X, +0x%X) not in memory map", b.base, b.size)
		}
		copy(dst.data, b.data)
	}
	return nil
}
