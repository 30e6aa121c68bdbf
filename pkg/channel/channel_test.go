// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var _ Conn = (*End)(nil)
var _ Conn = (*Serial)(nil)
var _ Conn = (*WebSocket)(nil)

// ============================================================
// Pipe Tests
// ============================================================

func TestPipe_ReadWrite(t *testing.T) {
	a, b := NewPipe()
	if _, err := a.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 16)
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("Read = %q, want %q", buf[:n], "hello")
	}

	// And the other direction
	if _, err := b.Write([]byte{0x01, 0x02}); err != nil {
		t.Fatal(err)
	}
	n, _ = a.Read(buf)
	if !bytes.Equal(buf[:n], []byte{0x01, 0x02}) {
		t.Errorf("reverse Read = % X", buf[:n])
	}
}

func TestPipe_PollReturnsImmediately(t *testing.T) {
	a, _ := NewPipe()
	a.SetTimeout(0)

	start := time.Now()
	n, err := a.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Errorf("poll Read = (%d, %v), want (0, nil)", n, err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("poll Read took %v", elapsed)
	}
}

func TestPipe_ReadTimeout(t *testing.T) {
	a, _ := NewPipe()
	a.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	n, err := a.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Errorf("timed out Read = (%d, %v), want (0, nil)", n, err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Read returned after %v, before the timeout", elapsed)
	}
}

func TestPipe_ReadWakesOnWrite(t *testing.T) {
	a, b := NewPipe()
	a.SetTimeout(2 * time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Write([]byte{0x42})
	}()

	buf := make([]byte, 1)
	n, err := a.Read(buf)
	if n != 1 || err != nil || buf[0] != 0x42 {
		t.Errorf("Read = (%d, %v, 0x%02X), want (1, nil, 0x42)", n, err, buf[0])
	}
}

func TestPipe_CloseDrainsThenEOF(t *testing.T) {
	a, b := NewPipe()
	a.Write([]byte{1, 2, 3})
	a.Close()

	got, err := io.ReadAll(b)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("drained % X, want 01 02 03", got)
	}

	if _, err := b.Write([]byte{4}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write to closed peer error = %v, want ErrClosed", err)
	}
}

// ============================================================
// WebSocket Tests
// ============================================================

func newEchoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Bridge chatter must be ignored by the client
		conn.WriteMessage(websocket.TextMessage, []byte("hello from bridge"))
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.WriteMessage(mt, data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocket_Echo(t *testing.T) {
	srv := newEchoServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ws, err := DialWebSocket(t.Context(), wsURL, WebSocketOptions{})
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer ws.Close()
	ws.SetTimeout(2 * time.Second)

	if _, err := ws.Write([]byte("V#")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 8)
	n, err := ws.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "V#" {
		t.Errorf("Read = %q, want %q", buf[:n], "V#")
	}
}

func TestWebSocket_Timeout(t *testing.T) {
	srv := newEchoServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ws, err := DialWebSocket(t.Context(), wsURL, WebSocketOptions{})
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer ws.Close()

	ws.SetTimeout(20 * time.Millisecond)
	n, err := ws.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Errorf("Read = (%d, %v), want timeout (0, nil)", n, err)
	}
}

func TestDialWebSocket_RejectsScheme(t *testing.T) {
	if _, err := DialWebSocket(t.Context(), "http://localhost/", WebSocketOptions{}); err == nil {
		t.Error("expected error for http:// scheme")
	}
}
