// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Statistics tracks engine activity and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Traffic
	Chunks       uint64
	BytesIn      uint64
	BytesOut     uint64
	Commands     uint64
	ByKind       map[string]uint64
	FlashWritten uint64 // bytes written to the store
	FlashRead    uint64 // bytes returned by 'w'

	// Bulk transfers
	Transfers       uint64
	PacketsAcked    uint64
	PacketsCanceled uint64

	// Errors
	CommErrors          uint64
	FlashErrors         uint64
	SequenceErrors      uint64
	AbortedTransfers    uint64
	UnsupportedCommands uint64
	EraseUnimplemented  uint64
	OtherErrors         uint64

	// Rates (calculated)
	CommandRate float64 // commands/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByKind:         make(map[string]uint64),
	}
}

// RecordCommand counts one dispatched command
func (s *Statistics) RecordCommand(c Command) {
	s.Commands++
	s.ByKind[c.Kind()]++
	s.LastUpdateTime = time.Now()
}

// RecordError classifies err into one of the error counters
func (s *Statistics) RecordError(err error) {
	if err == nil {
		return
	}
	switch ClassifyError(err) {
	case ErrorClassComm:
		s.CommErrors++
	case ErrorClassFlash:
		s.FlashErrors++
	case ErrorClassSequence:
		s.SequenceErrors++
		s.PacketsCanceled++
	case ErrorClassTransfer:
		s.AbortedTransfers++
	case ErrorClassUnsupported:
		s.UnsupportedCommands++
	case ErrorClassErase:
		s.EraseUnimplemented++
	default:
		s.OtherErrors++
	}
	s.LastUpdateTime = time.Now()
}

// Errors returns the total of all error counters. Unimplemented erases are
// acknowledged to the host and are not counted here.
func (s *Statistics) Errors() uint64 {
	return s.CommErrors + s.FlashErrors + s.SequenceErrors + s.AbortedTransfers + s.UnsupportedCommands + s.OtherErrors
}

// CalculateRates calculates command and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CommandRate = float64(s.Commands) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// Clone returns a deep copy safe to hand to another goroutine
func (s *Statistics) Clone() Statistics {
	c := *s
	c.ByKind = maps.Clone(s.ByKind)
	if c.ByKind == nil {
		c.ByKind = make(map[string]uint64)
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Chunks:          %8d (%d bytes in, %d out)\n", s.Chunks, s.BytesIn, s.BytesOut)
	result += fmt.Sprintf("Commands:        %8d\n", s.Commands)
	for _, kind := range slices.Sorted(maps.Keys(s.ByKind)) {
		result += fmt.Sprintf("  %-16s %6d\n", kind+":", s.ByKind[kind])
	}
	result += fmt.Sprintf("Flash Written:   %8d bytes\n", s.FlashWritten)
	result += fmt.Sprintf("Flash Read:      %8d bytes\n", s.FlashRead)

	if s.Transfers > 0 {
		result += fmt.Sprintf("Transfers:       %8d (%d packets acked, %d canceled)\n",
			s.Transfers, s.PacketsAcked, s.PacketsCanceled)
	}
	if s.CommErrors > 0 {
		result += fmt.Sprintf("Comm Errors:     %8d\n", s.CommErrors)
	}
	if s.FlashErrors > 0 {
		result += fmt.Sprintf("Flash Errors:    %8d\n", s.FlashErrors)
	}
	if s.SequenceErrors > 0 {
		result += fmt.Sprintf("XMODEM Errors:   %8d\n", s.SequenceErrors)
	}
	if s.AbortedTransfers > 0 {
		result += fmt.Sprintf("Aborted:         %8d\n", s.AbortedTransfers)
	}
	if s.UnsupportedCommands > 0 {
		result += fmt.Sprintf("Unsupported:     %8d\n", s.UnsupportedCommands)
	}
	if s.EraseUnimplemented > 0 {
		result += fmt.Sprintf("Erase (no-op):   %8d\n", s.EraseUnimplemented)
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d\n", s.OtherErrors)
	}

	result += fmt.Sprintf("Command Rate:    %8.1f cmds/sec\n", s.CommandRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
