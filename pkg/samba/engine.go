// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/sambamock/pkg/channel"
	"github.com/Thermoquad/sambamock/pkg/flash"
	"github.com/Thermoquad/sambamock/pkg/xmodem"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EraseFunc erases flash starting at addr
type EraseFunc func(addr uint32) error

// Engine is the bootloader monitor. It is driven entirely by its caller:
// every Poll reads at most one chunk and runs it to completion.
type Engine struct {
	ch    channel.Channel
	store *flash.Store

	regs         registers
	terminalMode bool
	attempt      uint32

	version         string
	chunk           []byte
	pollTimeout     time.Duration
	transferTimeout time.Duration
	timeout         time.Duration // last value applied to ch
	timeoutSet      bool

	erase    EraseFunc
	observer Observer
	log      zerolog.Logger

	statsMu sync.Mutex
	stats   *Statistics
}

// Option configures an Engine
type Option func(*Engine)

// WithStore replaces the default SAMD21 memory map
func WithStore(s *flash.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithVersion overrides the string returned for 'V'
func WithVersion(v string) Option {
	return func(e *Engine) {
		e.version = v
	}
}

// WithChunkSize sets how many bytes a single Poll reads
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunk = make([]byte, n)
		}
	}
}

// WithPollTimeout sets the channel timeout used while waiting for commands.
// Zero makes Poll non-blocking.
func WithPollTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.pollTimeout = d
	}
}

// WithTransferTimeout sets the channel timeout used during XMODEM transfers
func WithTransferTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.transferTimeout = d
	}
}

// WithEraseHook replaces the erase implementation used by 'X'
func WithEraseHook(fn EraseFunc) Option {
	return func(e *Engine) {
		e.erase = fn
	}
}

// WithObserver registers a callback for engine events
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithLogger attaches a logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an engine talking over ch. Without WithStore it builds
// flash.DefaultMemoryMap.
func NewEngine(ch channel.Channel, opts ...Option) (*Engine, error) {
	e := &Engine{
		ch:              ch,
		version:         DefaultVersion,
		chunk:           make([]byte, DefaultChunkSize),
		pollTimeout:     DefaultPollTimeout,
		transferTimeout: DefaultTransferTimeout,
		erase:           unimplementedErase,
		log:             zerolog.Nop(),
		stats:           NewStatistics(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		s, err := flash.DefaultMemoryMap().Build(flash.WithLogger(e.log))
		if err != nil {
			return nil, fmt.Errorf("failed to build memory map: %w", err)
		}
		e.store = s
	}
	return e, nil
}

func unimplementedErase(uint32) error {
	return ErrEraseUnimplemented
}

// Store returns the emulated flash
func (e *Engine) Store() *flash.Store { return e.store }

// Attempt returns how many times 'V' has been answered
func (e *Engine) Attempt() uint32 { return e.attempt }

// Pointer returns the address register
func (e *Engine) Pointer() uint32 { return e.regs.pointer }

// Number returns the hex accumulator
func (e *Engine) Number() uint32 { return e.regs.number }

// TerminalMode reports whether terminal mode is active
func (e *Engine) TerminalMode() bool { return e.terminalMode }

// Stats returns a snapshot of the engine statistics. Safe for concurrent use.
func (e *Engine) Stats() Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats.Clone()
}

// ResetStats clears the statistics. Safe for concurrent use.
func (e *Engine) ResetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.Reset()
}

func (e *Engine) updateStats(fn func(s *Statistics)) {
	e.statsMu.Lock()
	fn(e.stats)
	e.statsMu.Unlock()
}

// Run polls until ctx is done or the channel fails. Protocol errors are
// logged and counted; the loop continues with the next chunk.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := e.Poll(); err != nil {
			if errors.Is(err, ErrComm) {
				return err
			}
			e.log.Error().Err(err).Msg("command failed")
		}
	}
}

// Poll reads one chunk from the channel and processes it. A read that times
// out is not an error.
func (e *Engine) Poll() error {
	if err := e.setTimeout(e.pollTimeout); err != nil {
		return e.fail(nil, err)
	}

	n, err := e.ch.Read(e.chunk)
	if err != nil {
		return e.fail(nil, &CommError{Op: "read", Err: err})
	}
	if n == 0 {
		return nil
	}
	return e.Process(e.chunk[:n])
}

// Process runs the tokenizer over chunk. Bytes following an 'S' terminator
// are consumed as inline payload. On error the rest of the chunk is dropped;
// the registers keep their values.
func (e *Engine) Process(chunk []byte) error {
	e.log.Trace().Int("len", len(chunk)).Hex("chunk", chunk).Msg("chunk")
	e.updateStats(func(s *Statistics) {
		s.Chunks++
		s.BytesIn += uint64(len(chunk))
	})

	for i := 0; i < len(chunk); i++ {
		var terminated bool
		e.regs, terminated = e.regs.step(chunk[i])
		if !terminated {
			continue
		}

		cmd, err := decode(e.regs)
		if err != nil {
			return e.fail(nil, err)
		}

		consumed, err := e.dispatch(cmd, chunk[i+1:])
		if err != nil {
			return e.fail(cmd, err)
		}
		i += consumed
	}
	return nil
}

func (e *Engine) fail(cmd Command, err error) error {
	e.updateStats(func(s *Statistics) { s.RecordError(err) })
	e.emit(Event{Kind: EventError, Command: cmd, Err: err})
	return err
}

// dispatch executes cmd. rest is the remainder of the chunk after the
// terminator; it returns how many of those bytes were consumed.
func (e *Engine) dispatch(cmd Command, rest []byte) (int, error) {
	e.log.Debug().Str("cmd", FormatCommand(cmd)).Msg("dispatch")
	e.updateStats(func(s *Statistics) { s.RecordCommand(cmd) })

	switch c := cmd.(type) {
	case WriteBuffer:
		return e.writeBuffer(c, rest)

	case SetPointer:
		e.regs.pointer = c.Value

	case ExitTerminal:
		if e.terminalMode {
			if err := e.send([]byte(lineEnd)); err != nil {
				return 0, err
			}
		}
		e.terminalMode = false

	case ReadWord:
		e.regs.number = c.Addr
		data, err := e.store.Read(c.Addr, 4)
		if err != nil {
			return 0, err
		}
		if err := e.send(data); err != nil {
			return 0, err
		}
		e.updateStats(func(s *Statistics) { s.FlashRead += 4 })

	case GetVersion:
		if err := e.send([]byte(e.version + lineEnd)); err != nil {
			return 0, err
		}
		e.attempt++

	case EraseFlash:
		if err := e.erase(c.Addr); err != nil {
			e.log.Warn().Err(err).Uint32("addr", c.Addr).Msg("erase not performed")
			e.updateStats(func(s *Statistics) { s.RecordError(err) })
			e.emit(Event{Kind: EventWarning, Command: c, Err: err})
		}
		if err := e.send([]byte("X" + lineEnd)); err != nil {
			return 0, err
		}

	case SetCopySource:
		e.regs.copySource = c.Addr
		if err := e.send([]byte("Y" + lineEnd)); err != nil {
			return 0, err
		}

	case CopyToFlash:
		// 'Y' is acknowledged even when the copy fails
		copyErr := e.copyToFlash(c)
		if err := e.send([]byte("Y" + lineEnd)); err != nil {
			return 0, err
		}
		if copyErr != nil {
			return 0, copyErr
		}

	case EnterTerminal:
		e.terminalMode = true
		if err := e.send([]byte(lineEnd)); err != nil {
			return 0, err
		}

	case Idle:
	}

	e.emit(Event{Kind: EventCommand, Command: cmd})
	return 0, nil
}

func (e *Engine) copyToFlash(c CopyToFlash) error {
	data, err := e.store.Read(c.Src, c.Size)
	if err != nil {
		return err
	}
	if err := e.store.Write(c.Dst, data); err != nil {
		return err
	}
	e.updateStats(func(s *Statistics) { s.FlashWritten += uint64(len(data)) })
	return nil
}

// writeBuffer stores inline bytes first, then fetches the shortfall over
// XMODEM and stores it at the same destination, over the inline bytes.
func (e *Engine) writeBuffer(c WriteBuffer, rest []byte) (int, error) {
	inline := len(rest)
	if uint64(inline) > uint64(c.Count) {
		inline = int(c.Count)
	}

	if inline > 0 {
		if err := e.store.Write(c.Addr, rest[:inline]); err != nil {
			return inline, err
		}
		e.updateStats(func(s *Statistics) { s.FlashWritten += uint64(inline) })
	}

	shortfall := c.Count - uint32(inline)
	if shortfall == 0 {
		e.emit(Event{Kind: EventCommand, Command: c, Bytes: inline})
		return inline, nil
	}

	id := uuid.New()
	log := e.log.With().Str("transfer", id.String()).Logger()
	log.Debug().Uint32("addr", c.Addr).Int("inline", inline).Uint32("shortfall", shortfall).Msg("starting transfer")

	if err := e.setTimeout(e.transferTimeout); err != nil {
		return inline, err
	}
	data, err := xmodem.Receive(e.ch, shortfall, xmodem.WithLogger(log))
	e.updateStats(func(s *Statistics) {
		s.Transfers++
		s.PacketsAcked += uint64((len(data) + xmodem.PacketSize - 1) / xmodem.PacketSize)
	})
	if err != nil {
		switch {
		case errors.Is(err, xmodem.ErrSequence):
		case errors.Is(err, xmodem.ErrTimeout):
			log.Warn().Int("received", len(data)).Msg("host stalled inside a packet")
			err = &TransferError{Addr: c.Addr, Received: len(data), Err: err}
		default:
			err = &CommError{Op: "transfer", Err: err}
		}
		return inline, err
	}
	if uint32(len(data)) < shortfall {
		log.Warn().Int("received", len(data)).Uint32("expected", shortfall).Msg("short transfer")
	}

	if len(data) > 0 {
		if err := e.store.Write(c.Addr, data); err != nil {
			return inline, err
		}
		e.updateStats(func(s *Statistics) { s.FlashWritten += uint64(len(data)) })
	}

	log.Debug().Int("received", len(data)).Msg("transfer complete")
	e.emit(Event{Kind: EventTransfer, Command: c, Transfer: id, Bytes: inline + len(data)})
	return inline, nil
}

func (e *Engine) send(p []byte) error {
	if _, err := e.ch.Write(p); err != nil {
		return &CommError{Op: "write", Err: err}
	}
	e.updateStats(func(s *Statistics) { s.BytesOut += uint64(len(p)) })
	return nil
}

func (e *Engine) setTimeout(d time.Duration) error {
	if e.timeoutSet && e.timeout == d {
		return nil
	}
	if err := e.ch.SetTimeout(d); err != nil {
		return &CommError{Op: "set timeout", Err: err}
	}
	e.timeout, e.timeoutSet = d, true
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.observer(ev)
}
