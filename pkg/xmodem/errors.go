// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xmodem

import (
	"errors"
	"fmt"
)

var (
	// ErrSequence is matched by every *SequenceError. The receiver has
	// already sent CAN when it is returned.
	ErrSequence = errors.New("xmodem: packet rejected")

	// ErrTimeout is returned when the channel times out in the middle of a packet
	ErrTimeout = errors.New("xmodem: timeout")

	// ErrCanceled is returned by Send when the receiver answers with CAN
	ErrCanceled = errors.New("xmodem: canceled by receiver")

	// ErrRetriesExhausted is returned by Send when a packet is NAKed too often
	ErrRetriesExhausted = errors.New("xmodem: too many retries")
)

// Packet checks reported by SequenceError
const (
	CheckComplement = "complement"
	CheckSequence   = "sequence"
	CheckCRC        = "crc"
)

// SequenceError describes which validation a received packet failed
type SequenceError struct {
	Check    string
	Expected uint16
	Got      uint16
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("xmodem: %s mismatch: expected 0x%X, got 0x%X", e.Check, e.Expected, e.Got)
}

func (e *SequenceError) Is(target error) bool {
	return target == ErrSequence
}
