// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"io"
	"sync/atomic"
	"time"
)

// End is one side of an in-memory Pipe. It is safe for concurrent use.
type End struct {
	in      *queue
	out     *queue
	timeout atomic.Int64
}

// NewPipe returns the two connected ends of an in-memory duplex channel.
// Bytes written to one end are read from the other. Both ends start with
// NoTimeout.
func NewPipe() (*End, *End) {
	ab, ba := newQueue(), newQueue()
	a := &End{in: ba, out: ab}
	b := &End{in: ab, out: ba}
	a.timeout.Store(int64(NoTimeout))
	b.timeout.Store(int64(NoTimeout))
	return a, b
}

func (e *End) Read(p []byte) (int, error) {
	return e.in.pop(p, time.Duration(e.timeout.Load()))
}

func (e *End) Write(p []byte) (int, error) {
	if err := e.out.push(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetTimeout sets the read timeout for this end
func (e *End) SetTimeout(d time.Duration) error {
	e.timeout.Store(int64(d))
	return nil
}

// Close shuts down both directions. The peer drains buffered bytes, then
// reads io.EOF.
func (e *End) Close() error {
	e.out.close(io.EOF)
	e.in.close(ErrClosed)
	return nil
}
