// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"sync"
	"time"
)

// queue is a one-directional byte buffer with timed reads
type queue struct {
	mu     sync.Mutex
	buf    []byte
	err    error // set once closed; returned after buf drains
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(p []byte) error {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return ErrClosed
	}
	q.buf = append(q.buf, p...)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *queue) close(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
	q.signal()
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop copies buffered bytes into p, waiting up to timeout for the first byte
func (q *queue) pop(p []byte, timeout time.Duration) (int, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			n := copy(p, q.buf)
			q.buf = q.buf[n:]
			q.mu.Unlock()
			return n, nil
		}
		err := q.err
		q.mu.Unlock()

		if err != nil {
			return 0, err
		}
		if timeout == 0 || len(p) == 0 {
			return 0, nil
		}

		select {
		case <-q.notify:
		case <-deadline:
			return 0, nil
		}
	}
}
