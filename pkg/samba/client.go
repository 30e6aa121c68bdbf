// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/sambamock/pkg/channel"
	"github.com/Thermoquad/sambamock/pkg/xmodem"
	"github.com/rs/zerolog"
)

// DefaultClientTimeout bounds how long the client waits for each reply
const DefaultClientTimeout = 2 * time.Second

// Client speaks the monitor protocol from the host side
type Client struct {
	ch      channel.Channel
	timeout time.Duration
	log     zerolog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithClientTimeout sets the reply timeout
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithClientLogger attaches a logger
func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client on ch
func NewClient(ch channel.Channel, opts ...ClientOption) *Client {
	c := &Client{
		ch:      ch,
		timeout: DefaultClientTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version sends 'V' and returns the reported version without the line ending
func (c *Client) Version() (string, error) {
	if err := c.command("V#"); err != nil {
		return "", err
	}
	line, err := c.readUntil(lineEnd)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, lineEnd), nil
}

// ReadWord returns the little-endian word at addr
func (c *Client) ReadWord(addr uint32) (uint32, error) {
	if err := c.command(fmt.Sprintf("w%X,4#", addr)); err != nil {
		return 0, err
	}
	buf, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// SetPointer loads the device's address register
func (c *Client) SetPointer(addr uint32) error {
	return c.command(fmt.Sprintf("W%X#", addr))
}

// WriteBuffer writes data at addr, sending the payload over XMODEM
func (c *Client) WriteBuffer(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := c.command(fmt.Sprintf("S%X,%X#", addr, len(data))); err != nil {
		return err
	}
	if err := c.ch.SetTimeout(c.timeout); err != nil {
		return &CommError{Op: "set timeout", Err: err}
	}
	if err := xmodem.Send(c.ch, data, xmodem.WithLogger(c.log)); err != nil {
		return fmt.Errorf("write buffer at 0x%08X: %w", addr, err)
	}
	return nil
}

// CopyToFlash copies size bytes from src to dst on the device
func (c *Client) CopyToFlash(src, dst, size uint32) error {
	if err := c.command(fmt.Sprintf("Y%X,0#", src)); err != nil {
		return err
	}
	if err := c.expect("Y" + lineEnd); err != nil {
		return err
	}
	// The device copies number/4 bytes
	if err := c.command(fmt.Sprintf("Y%X,%X#", dst, size*4)); err != nil {
		return err
	}
	return c.expect("Y" + lineEnd)
}

// Erase asks the device to erase flash from addr
func (c *Client) Erase(addr uint32) error {
	if err := c.command(fmt.Sprintf("X%X#", addr)); err != nil {
		return err
	}
	return c.expect("X" + lineEnd)
}

// EnterTerminal switches the device into terminal mode
func (c *Client) EnterTerminal() error {
	if err := c.command("T#"); err != nil {
		return err
	}
	return c.expect(lineEnd)
}

// ExitTerminal leaves terminal mode. The device only answers when it was in
// terminal mode, so the reply is not awaited.
func (c *Client) ExitTerminal() error {
	return c.command("N#")
}

func (c *Client) command(s string) error {
	c.log.Debug().Str("cmd", s).Msg("send")
	if _, err := c.ch.Write([]byte(s)); err != nil {
		return &CommError{Op: "write", Err: err}
	}
	return nil
}

func (c *Client) expect(want string) error {
	got, err := c.readExact(len(want))
	if err != nil {
		return err
	}
	if string(got) != want {
		return fmt.Errorf("%w: got %q, want %q", ErrBadResponse, got, want)
	}
	return nil
}

// readExact reads n bytes before the client timeout expires
func (c *Client) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	deadline := time.Now().Add(c.timeout)
	for off := 0; off < n; {
		got, err := c.readSome(buf[off:], deadline)
		if err != nil {
			return buf[:off], err
		}
		off += got
	}
	return buf, nil
}

// readUntil reads one byte at a time until the reply ends with suffix
func (c *Client) readUntil(suffix string) (string, error) {
	var acc []byte
	b := make([]byte, 1)
	deadline := time.Now().Add(c.timeout)
	for !bytes.HasSuffix(acc, []byte(suffix)) {
		if _, err := c.readSome(b, deadline); err != nil {
			return string(acc), err
		}
		acc = append(acc, b[0])
	}
	return string(acc), nil
}

// readSome returns once at least one byte has been read into p
func (c *Client) readSome(p []byte, deadline time.Time) (int, error) {
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return 0, ErrNoResponse
		}
		if err := c.ch.SetTimeout(left); err != nil {
			return 0, &CommError{Op: "set timeout", Err: err}
		}
		n, err := c.ch.Read(p)
		if err != nil {
			return n, &CommError{Op: "read", Err: err}
		}
		if n > 0 {
			return n, nil
		}
	}
}
