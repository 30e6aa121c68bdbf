// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial wraps a serial port
type Serial struct {
	port serial.Port
}

// OpenSerial opens a serial port at 8N1 with the given baud rate
func OpenSerial(portName string, baudRate int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &Serial{port: port}, nil
}

func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// SetTimeout maps directly onto the port's read timeout
func (s *Serial) SetTimeout(d time.Duration) error {
	if d < 0 {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	return s.port.SetReadTimeout(d)
}

func (s *Serial) Close() error {
	return s.port.Close()
}
