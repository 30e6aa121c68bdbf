// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package channel defines the duplex byte stream the bootloader talks over
// and provides serial, WebSocket and in-memory implementations.
package channel

import (
	"errors"
	"io"
	"time"
)

// NoTimeout makes reads block until data arrives or the channel closes
const NoTimeout time.Duration = -1

// ErrClosed is returned by operations on a closed channel
var ErrClosed = errors.New("channel: closed")

// Channel is a duplex byte stream with a caller-assignable read timeout.
//
// A Read that times out returns (0, nil). A timeout of 0 polls: Read returns
// immediately with whatever is already buffered.
type Channel interface {
	io.Reader
	io.Writer
	SetTimeout(d time.Duration) error
}

// Conn is a Channel that owns an underlying device or socket
type Conn interface {
	Channel
	io.Closer
}
