// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package samba emulates the monitor of a SAM-BA style bootloader.
//
// The host sends ASCII commands of the form <letter><hex>[,<hex>]#, for
// example "V#", "w2000,4#" or "S20004000,80#". The Engine tokenizes the byte
// stream one chunk at a time, applies each command to a flash.Store and
// answers on the same channel. Bulk writes that do not fit in the current
// chunk are completed with an XMODEM-CRC transfer.
package samba

import "time"

// DefaultVersion is the string returned for 'V'
const DefaultVersion = "v2.0 [Arduino:XYZ] Apr 19 2019 14:38:48"

// DefaultChunkSize is the number of bytes read from the channel per Poll
const DefaultChunkSize = 64

// Channel timeouts
const (
	DefaultPollTimeout     = 100 * time.Millisecond
	DefaultTransferTimeout = 3 * time.Second
)

// Command bytes
const (
	CmdWriteBuffer   = 'S'
	CmdSetPointer    = 'W'
	CmdExitTerminal  = 'N'
	CmdReadWord      = 'w'
	CmdGetVersion    = 'V'
	CmdEraseFlash    = 'X'
	CmdCopyFlash     = 'Y'
	CmdEnterTerminal = 'T'
	CmdNone          = 0x00
	CmdNoneAlt       = 0x80
)

// Tokenizer bytes
const (
	terminatorByte = '#'
	separatorByte  = ','
	paddingByte    = 0xFF
)

// lineEnd follows every ASCII response
const lineEnd = "\n\r"
