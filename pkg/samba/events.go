// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what an Event reports
type EventKind int

const (
	EventCommand  EventKind = iota // a command was dispatched
	EventTransfer                  // an XMODEM transfer finished
	EventError                     // Poll or Process returned an error
	EventWarning                   // a non-fatal problem, such as an unimplemented erase
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventTransfer:
		return "transfer"
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Event is emitted to the observer as the engine works
type Event struct {
	Time     time.Time
	Kind     EventKind
	Command  Command   // nil unless a command was decoded
	Transfer uuid.UUID // set for transfers
	Bytes    int       // payload size for writes, reads and transfers
	Err      error
}

// Observer receives engine events on the engine's goroutine
type Observer func(Event)
