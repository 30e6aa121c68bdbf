// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

// registers is the parser state carried across chunks
type registers struct {
	command    byte
	number     uint32 // hex accumulator
	pointer    uint32 // address register, set by ',' and 'W'
	copySource uint32 // source address for 'Y', set by "Y<addr>,0#"
}

// step advances the tokenizer by one byte and reports whether b terminated
// a command. It has no side effects.
func (r registers) step(b byte) (registers, bool) {
	switch {
	case b == paddingByte:
	case b >= '0' && b <= '9':
		r.number = r.number<<4 | uint32(b-'0')
	case b >= 'A' && b <= 'F':
		r.number = r.number<<4 | uint32(b-'A'+0xA)
	case b >= 'a' && b <= 'f':
		r.number = r.number<<4 | uint32(b-'a'+0xA)
	case b == separatorByte:
		r.pointer = r.number
		r.number = 0
	case b == terminatorByte:
		return r, true
	default:
		r.command = b
		r.number = 0
	}
	return r, false
}
