// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package xmodem implements the CRC-16 variant of the XMODEM bulk transfer
// protocol used by SAM-BA style bootloaders to move binary payloads.
//
// The receiver starts the session by sending 'C'. The sender answers with
// 133-byte packets (SOH, seq, ^seq, 128 data bytes, big-endian CRC-16) and
// finishes with EOT.
package xmodem

// Control bytes
const (
	SOH = 0x01 // start of 128-byte packet
	EOT = 0x04 // end of transmission
	ACK = 0x06
	NAK = 0x15
	CAN = 0x18
	SUB = 0x1A // payload padding
)

// Poll is sent by the receiver to request CRC-16 mode
const Poll = 'C'

// Packet layout
const (
	PacketSize = 128
	headerSize = 3 // SOH, seq, comp
	crcSize    = 2
)

// Polynomial is the CRC-16/XMODEM generator (initial value 0, no reflection)
const Polynomial = 0x1021

// defaultRetries is how often the sender repeats a NAKed packet
const defaultRetries = 10
