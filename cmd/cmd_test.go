// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/sambamock/pkg/channel"
	"github.com/Thermoquad/sambamock/pkg/flash"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

// startEmulator runs an engine with the default map and returns a client for it
func startEmulator(t *testing.T) *samba.Client {
	t.Helper()
	device, host := channel.NewPipe()
	engine, err := samba.NewEngine(device, samba.WithPollTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		host.Close()
	})
	return samba.NewClient(host, samba.WithClientTimeout(time.Second))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0x20004000", 0x20004000, false},
		{"8192", 8192, false},
		{"0XFFFFFFFF", 0xFFFFFFFF, false},
		{"0x100000000", 0, true},
		{"-1", 0, true},
		{"flash", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseAddress(%q) = 0x%X, want 0x%X", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{1000, "1 second"},
		{61000, "1 minute and 1 second"},
		{3723000, "1 hour, 2 minutes, and 3 seconds"},
		{90000000, "1 day and 1 hour"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.ms); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestDumpStore(t *testing.T) {
	store := flash.NewStore()
	if err := store.AddBlock(0x1000, 0x40); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(0x1010, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := dumpStore(&out, store, false); err != nil {
		t.Fatalf("dumpStore() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Block 0x00001000 +0x40\n",
		"  * 1 erased rows\n",
		"00001010  68 65 6c 6c 6f ff",
		"|hello...........|",
		"  * 2 erased rows\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("dump missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	if err := dumpStore(&out, store, true); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "erased rows") {
		t.Errorf("dump with all rows skipped something:\n%s", out.String())
	}
	if n := strings.Count(out.String(), "\n"); n != 5 {
		t.Errorf("dump with all rows has %d lines, want 5", n)
	}
}

func TestUploadRejectsBufferSize(t *testing.T) {
	for _, size := range []uint32{0, 3, 130} {
		err := upload(nil, []byte{1, 2, 3, 4}, uploadPlan{bufferSize: size}, &bytes.Buffer{})
		if err == nil {
			t.Errorf("upload with buffer size %d: expected error", size)
		}
	}
}

func TestSelfTest(t *testing.T) {
	for _, size := range []int{4, 1000, 3000} {
		var out bytes.Buffer
		if err := selfTest(t.Context(), size, &out); err != nil {
			t.Fatalf("selfTest(%d) error = %v\n%s", size, err, out.String())
		}
		if !strings.Contains(out.String(), "Chip ID: 0x10010005") {
			t.Errorf("selfTest(%d) did not report chip id:\n%s", size, out.String())
		}
		if !strings.HasSuffix(out.String(), "PASS\n") {
			t.Errorf("selfTest(%d) did not pass:\n%s", size, out.String())
		}
	}
}

func TestMonitorModel(t *testing.T) {
	stats := func() samba.Statistics { return *samba.NewStatistics() }
	m := initialMonitorModel("Serial: /dev/null @ 115200 baud", "v2.0", false, stats)

	if !strings.Contains(m.View(), "Waiting for host") {
		t.Errorf("view before first command:\n%s", m.View())
	}

	next, _ := m.Update(eventMsg(samba.Event{Kind: samba.EventCommand, Command: samba.GetVersion{}}))
	m = next.(monitorModel)
	if !m.connected {
		t.Fatal("model not connected after a command")
	}
	if m.lastCommand != samba.FormatCommand(samba.GetVersion{}) {
		t.Errorf("lastCommand = %q", m.lastCommand)
	}
	if len(m.eventLog) != 1 || m.eventLog[0].message != "Host connected" {
		t.Errorf("event log = %+v, want only the connect entry", m.eventLog)
	}

	next, _ = m.Update(eventMsg(samba.Event{Kind: samba.EventError, Err: &samba.UnsupportedCommandError{Command: 'Q'}}))
	m = next.(monitorModel)
	if len(m.eventLog) != 2 || !m.eventLog[1].isError {
		t.Errorf("error event not logged as error: %+v", m.eventLog)
	}
	if !strings.Contains(m.View(), "Host connected") {
		t.Errorf("view after connect:\n%s", m.View())
	}

	next, cmd := m.Update(engineStoppedMsg{err: samba.ErrComm})
	m = next.(monitorModel)
	if cmd == nil || !m.quitting {
		t.Error("engine stop did not quit the program")
	}
}

func TestMonitorModelLogLimit(t *testing.T) {
	m := initialMonitorModel("", "", true, func() samba.Statistics { return *samba.NewStatistics() })
	for range 250 {
		m.handleEvent(samba.Event{Kind: samba.EventCommand, Command: samba.Idle{}})
	}
	if len(m.eventLog) != m.maxLogEntries {
		t.Errorf("event log has %d entries, want %d", len(m.eventLog), m.maxLogEntries)
	}
}

func TestPing(t *testing.T) {
	client := startEmulator(t)

	var out bytes.Buffer
	if failed := ping(client, 3, 0, &out); failed != 0 {
		t.Fatalf("ping() failed = %d\n%s", failed, out.String())
	}
	if n := strings.Count(out.String(), samba.DefaultVersion); n != 3 {
		t.Errorf("version appears %d times, want 3:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "3 pings sent, 3 responses received, 0% loss") {
		t.Errorf("missing summary:\n%s", out.String())
	}
}

func TestPingNoResponse(t *testing.T) {
	_, host := channel.NewPipe()
	client := samba.NewClient(host, samba.WithClientTimeout(20*time.Millisecond))

	var out bytes.Buffer
	if failed := ping(client, 2, 0, &out); failed != 2 {
		t.Errorf("ping() failed = %d, want 2", failed)
	}
	if !strings.Contains(out.String(), "100% loss") {
		t.Errorf("missing loss summary:\n%s", out.String())
	}
}

func TestControlModel(t *testing.T) {
	client := startEmulator(t)
	m := initialControlModel(client, "pipe")

	// The first operation is the version query
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(controlModel)
	if cmd == nil || !m.busy {
		t.Fatal("enter did not start a request")
	}

	// A second request is refused while the first is outstanding
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(controlModel)
	if len(m.eventLog) != 1 || !m.eventLog[0].isError {
		t.Errorf("event log = %+v, want a busy entry", m.eventLog)
	}

	msg := cmd()
	res, ok := msg.(resultMsg)
	if !ok {
		t.Fatalf("command returned %T", msg)
	}
	if res.err != nil || res.result != samba.DefaultVersion {
		t.Errorf("result = %q, %v", res.result, res.err)
	}

	next, _ = m.Update(res)
	m = next.(controlModel)
	if m.busy || m.requests != 1 || m.failures != 0 {
		t.Errorf("after reply busy=%v requests=%d failures=%d", m.busy, m.requests, m.failures)
	}
	if !strings.Contains(m.View(), samba.DefaultVersion) {
		t.Errorf("view does not show the reply:\n%s", m.View())
	}
}

func TestControlModelReadWord(t *testing.T) {
	client := startEmulator(t)
	m := initialControlModel(client, "pipe")

	// Move to "Read word" and run it without an address
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(controlModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(controlModel)
	if cmd != nil || len(m.eventLog) != 1 {
		t.Fatalf("read without address: cmd=%v log=%+v", cmd != nil, m.eventLog)
	}

	// Focus the address field and type the chip id location
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(controlModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("0x4")})
	m = next.(controlModel)
	if m.addrInput.Value() != "0x4" {
		t.Fatalf("address input = %q", m.addrInput.Value())
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(controlModel)
	if cmd == nil {
		t.Fatal("enter did not start a request")
	}
	res := cmd().(resultMsg)
	if res.err != nil || res.result != "0x00000004 = 0x10010005" {
		t.Errorf("result = %q, %v", res.result, res.err)
	}
}
