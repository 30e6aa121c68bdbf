// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

import (
	"errors"
	"reflect"
	"testing"
)

func TestScanner_Session(t *testing.T) {
	var s Scanner
	cmds, err := s.Scan([]byte("V#w4,4#W20004000#Y20004000,0#Y2000,400#X2000#N#"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Command{
		GetVersion{},
		ReadWord{Addr: 0x4},
		SetPointer{Value: 0x20004000},
		SetCopySource{Addr: 0x20004000},
		CopyToFlash{Src: 0x20004000, Dst: 0x2000, Size: 0x100},
		EraseFlash{Addr: 0x2000},
		ExitTerminal{},
	}
	if !reflect.DeepEqual(cmds, want) {
		t.Errorf("Scan() =\n  %v\nwant\n  %v", cmds, want)
	}
}

func TestScanner_SplitFeed(t *testing.T) {
	var s Scanner
	input := []byte("S20004000,80#")
	for i, b := range input {
		cmd, err := s.Feed(b)
		if err != nil {
			t.Fatalf("Feed(%q) error = %v", b, err)
		}
		if i < len(input)-1 && cmd != nil {
			t.Fatalf("Feed(%q) returned %v before the terminator", b, cmd)
		}
		if i == len(input)-1 && cmd != (WriteBuffer{Addr: 0x20004000, Count: 0x80}) {
			t.Errorf("final Feed() = %v", cmd)
		}
	}
}

func TestScanner_SkipsInlinePayload(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  []Command
	}{
		{
			name:  "payload that looks like commands",
			chunk: "S20004000,6#1,W5#AV#",
			want:  []Command{WriteBuffer{Addr: 0x20004000, Count: 6}, GetVersion{}},
		},
		{
			name:  "payload shorter than the chunk rest",
			chunk: "S2000,2#w#w4,4#",
			want:  []Command{WriteBuffer{Addr: 0x2000, Count: 2}, ReadWord{Addr: 4}},
		},
		{
			name:  "count beyond the chunk",
			chunk: "S2000,100#V#",
			want:  []Command{WriteBuffer{Addr: 0x2000, Count: 0x100}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Scanner
			cmds, err := s.Scan([]byte(tt.chunk))
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if !reflect.DeepEqual(cmds, tt.want) {
				t.Errorf("Scan() = %v, want %v", cmds, tt.want)
			}
		})
	}
}

func TestScanner_PayloadDoesNotMovePointer(t *testing.T) {
	var s Scanner
	if _, err := s.Scan([]byte("W1234#S2000,3#9,8")); err != nil {
		t.Fatal(err)
	}
	if s.regs.pointer != 0x2000 {
		t.Errorf("pointer = 0x%X, want 0x2000", s.regs.pointer)
	}
}

func TestScanner_ErrorDropsChunk(t *testing.T) {
	var s Scanner
	cmds, err := s.Scan([]byte("V#Q#V#"))
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("err = %v, want unsupported command", err)
	}
	if len(cmds) != 1 || cmds[0] != (GetVersion{}) {
		t.Errorf("cmds = %v, want only the version request before the bad command", cmds)
	}

	cmds, err = s.Scan([]byte("V#"))
	if err != nil || len(cmds) != 1 {
		t.Errorf("next chunk = %v, %v", cmds, err)
	}
}
