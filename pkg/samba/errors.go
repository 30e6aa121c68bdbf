// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/sambamock/pkg/flash"
	"github.com/Thermoquad/sambamock/pkg/xmodem"
)

var (
	// ErrComm is matched by every *CommError
	ErrComm = errors.New("samba: communication error")

	// ErrUnsupportedCommand is matched by every *UnsupportedCommandError
	ErrUnsupportedCommand = errors.New("samba: unsupported command")

	// ErrEraseUnimplemented is returned by the default erase hook. 'X' is
	// still acknowledged to the host.
	ErrEraseUnimplemented = errors.New("samba: flash erase not implemented")

	// ErrNoResponse is returned by Client when the device does not answer in time
	ErrNoResponse = errors.New("samba: no response")

	// ErrBadResponse is returned by Client for an unexpected reply
	ErrBadResponse = errors.New("samba: unexpected response")

	// ErrTransferAborted is matched by every *TransferError
	ErrTransferAborted = errors.New("samba: transfer aborted")
)

// CommError wraps a channel read or write failure
type CommError struct {
	Op  string // "read", "write", "set timeout" or "transfer"
	Err error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("samba: %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

func (e *CommError) Is(target error) bool {
	return target == ErrComm
}

// TransferError reports an XMODEM transfer the host stopped feeding in the
// middle of a packet. The channel itself is still usable.
type TransferError struct {
	Addr     uint32
	Received int // payload bytes accepted before the stall
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("samba: transfer to 0x%08X aborted after %d bytes: %v", e.Addr, e.Received, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func (e *TransferError) Is(target error) bool {
	return target == ErrTransferAborted
}

// UnsupportedCommandError reports a terminated command outside the dispatch table
type UnsupportedCommandError struct {
	Command byte
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("samba: unsupported command %q (0x%02X)", e.Command, e.Command)
}

func (e *UnsupportedCommandError) Is(target error) bool {
	return target == ErrUnsupportedCommand
}

// Error classes returned by ClassifyError
const (
	ErrorClassComm        = "comm"
	ErrorClassFlash       = "flash"
	ErrorClassSequence    = "sequence"
	ErrorClassTransfer    = "transfer_aborted"
	ErrorClassUnsupported = "unsupported"
	ErrorClassErase       = "erase_unimplemented"
	ErrorClassOther       = "other"
)

// ClassifyError maps an engine error to a short class name for counters
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, ErrComm):
		return ErrorClassComm
	case errors.Is(err, flash.ErrOutOfBounds), errors.Is(err, flash.ErrOverlap):
		return ErrorClassFlash
	case errors.Is(err, xmodem.ErrSequence):
		return ErrorClassSequence
	case errors.Is(err, ErrTransferAborted):
		return ErrorClassTransfer
	case errors.Is(err, ErrUnsupportedCommand):
		return ErrorClassUnsupported
	case errors.Is(err, ErrEraseUnimplemented):
		return ErrorClassErase
	default:
		return ErrorClassOther
	}
}
