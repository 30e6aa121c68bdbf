// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket carries the byte stream in binary WebSocket messages. A reader
// goroutine buffers incoming messages so reads can honour the timeout.
type WebSocket struct {
	conn    *websocket.Conn
	in      *queue
	wmu     sync.Mutex
	timeout atomic.Int64
}

// WebSocketOptions configures DialWebSocket
type WebSocketOptions struct {
	Username      string
	Password      string
	SkipSSLVerify bool
}

// DialWebSocket connects to a ws:// or wss:// endpoint with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, wsURL string, opts WebSocketOptions) (*WebSocket, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocket(conn), nil
}

// NewWebSocket wraps an established connection and starts its reader
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	w := &WebSocket{conn: conn, in: newQueue()}
	w.timeout.Store(int64(NoTimeout))
	go w.pump()
	return w
}

func (w *WebSocket) pump() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.in.close(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		// Text frames are bridge chatter, not device bytes
		if messageType != websocket.BinaryMessage {
			continue
		}
		if w.in.push(data) != nil {
			return
		}
	}
}

func (w *WebSocket) Read(p []byte) (int, error) {
	return w.in.pop(p, time.Duration(w.timeout.Load()))
}

func (w *WebSocket) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetTimeout sets the read timeout
func (w *WebSocket) SetTimeout(d time.Duration) error {
	w.timeout.Store(int64(d))
	return nil
}

func (w *WebSocket) Close() error {
	w.in.close(ErrClosed)
	return w.conn.Close()
}
