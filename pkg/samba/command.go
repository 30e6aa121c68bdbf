// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import "fmt"

// Command is a decoded monitor command. The set of implementations is closed.
type Command interface {
	// Kind is a stable upper-case name used in logs and metrics
	Kind() string
	isCommand()
}

// WriteBuffer writes Count bytes to Addr
type WriteBuffer struct {
	Addr  uint32
	Count uint32
}

// SetPointer loads the address register directly
type SetPointer struct {
	Value uint32
}

// ExitTerminal leaves terminal mode
type ExitTerminal struct{}

// ReadWord returns the 4 bytes at Addr
type ReadWord struct {
	Addr uint32
}

// GetVersion returns the version string
type GetVersion struct{}

// EraseFlash erases flash starting at Addr
type EraseFlash struct {
	Addr uint32
}

// SetCopySource records the source address for a later CopyToFlash
type SetCopySource struct {
	Addr uint32
}

// CopyToFlash copies Size bytes from Src to Dst
type CopyToFlash struct {
	Src  uint32
	Dst  uint32
	Size uint32
}

// EnterTerminal switches to terminal mode
type EnterTerminal struct{}

// Idle is the no-op issued for a null command byte
type Idle struct{}

func (WriteBuffer) Kind() string   { return "WRITE_BUFFER" }
func (SetPointer) Kind() string    { return "SET_POINTER" }
func (ExitTerminal) Kind() string  { return "EXIT_TERMINAL" }
func (ReadWord) Kind() string      { return "READ_WORD" }
func (GetVersion) Kind() string    { return "GET_VERSION" }
func (EraseFlash) Kind() string    { return "ERASE_FLASH" }
func (SetCopySource) Kind() string { return "SET_COPY_SOURCE" }
func (CopyToFlash) Kind() string   { return "COPY_TO_FLASH" }
func (EnterTerminal) Kind() string { return "ENTER_TERMINAL" }
func (Idle) Kind() string          { return "IDLE" }

func (WriteBuffer) isCommand()   {}
func (SetPointer) isCommand()    {}
func (ExitTerminal) isCommand()  {}
func (ReadWord) isCommand()      {}
func (GetVersion) isCommand()    {}
func (EraseFlash) isCommand()    {}
func (SetCopySource) isCommand() {}
func (CopyToFlash) isCommand()   {}
func (EnterTerminal) isCommand() {}
func (Idle) isCommand()          {}

// decode turns the registers at a terminator into a Command
func decode(r registers) (Command, error) {
	switch r.command {
	case CmdWriteBuffer:
		return WriteBuffer{Addr: r.pointer, Count: r.number}, nil
	case CmdSetPointer:
		return SetPointer{Value: r.number}, nil
	case CmdExitTerminal:
		return ExitTerminal{}, nil
	case CmdReadWord:
		return ReadWord{Addr: r.pointer}, nil
	case CmdGetVersion:
		return GetVersion{}, nil
	case CmdEraseFlash:
		return EraseFlash{Addr: r.number}, nil
	case CmdCopyFlash:
		if r.number == 0 {
			return SetCopySource{Addr: r.pointer}, nil
		}
		// The size field is in bytes*4
		return CopyToFlash{Src: r.copySource, Dst: r.pointer, Size: r.number / 4}, nil
	case CmdEnterTerminal:
		return EnterTerminal{}, nil
	case CmdNone, CmdNoneAlt:
		return Idle{}, nil
	default:
		return nil, &UnsupportedCommandError{Command: r.command}
	}
}

// FormatCommand returns a human-readable description of a command
func FormatCommand(c Command) string {
	switch c := c.(type) {
	case WriteBuffer:
		return fmt.Sprintf("%s addr=0x%08X count=%d", c.Kind(), c.Addr, c.Count)
	case SetPointer:
		return fmt.Sprintf("%s value=0x%08X", c.Kind(), c.Value)
	case ReadWord:
		return fmt.Sprintf("%s addr=0x%08X", c.Kind(), c.Addr)
	case EraseFlash:
		return fmt.Sprintf("%s addr=0x%08X", c.Kind(), c.Addr)
	case SetCopySource:
		return fmt.Sprintf("%s addr=0x%08X", c.Kind(), c.Addr)
	case CopyToFlash:
		return fmt.Sprintf("%s src=0x%08X dst=0x%08X size=%d", c.Kind(), c.Src, c.Dst, c.Size)
	case nil:
		return "<nil>"
	default:
		return c.Kind()
	}
}
