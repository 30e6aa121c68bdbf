// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is matched by every *OutOfBoundsError
	ErrOutOfBounds = errors.New("flash: access out of bounds")

	// ErrOverlap is matched by every *OverlapError
	ErrOverlap = errors.New("flash: block overlap")

	// ErrInvalidBlock is returned for empty or wrapping block ranges
	ErrInvalidBlock = errors.New("flash: invalid block range")
)

// OutOfBoundsError reports an access that is not fully contained in exactly one block.
type OutOfBoundsError struct {
	Addr uint32
	Len  uint32
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("flash out of bounds: 0x%08X: 0x%X", e.Addr, e.Len)
}

// Is lets errors.Is(err, ErrOutOfBounds) match.
func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// OverlapError reports a block registration that intersects an existing block.
type OverlapError struct {
	Base         uint32
	Size         uint32
	ExistingBase uint32
	ExistingSize uint32
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("flash overlap: [0x%08X, +0x%X) intersects [0x%08X, +0x%X)",
		e.Base, e.Size, e.ExistingBase, e.ExistingSize)
}

// Is lets errors.Is(err, ErrOverlap) match.
func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}
