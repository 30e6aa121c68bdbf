// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xmodem

import (
	"encoding/binary"
	"io"

	"github.com/rs/zerolog"
)

// Option configures a Receive or Send session
type Option func(*session)

type session struct {
	log     zerolog.Logger
	retries int
}

// WithLogger attaches a logger for per-packet tracing
func WithLogger(l zerolog.Logger) Option {
	return func(s *session) {
		s.log = l
	}
}

// WithRetries sets how many times Send repeats a NAKed packet
func WithRetries(n int) Option {
	return func(s *session) {
		s.retries = n
	}
}

func newSession(opts []Option) *session {
	s := &session{
		log:     zerolog.Nop(),
		retries: defaultRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive runs the receiving side of a transfer of up to n bytes.
//
// Reads follow the channel contract: a read returning no bytes and no error
// is a timeout. A timeout or any unexpected byte where a control byte is due
// ends the session and returns what was received so far. A timeout inside a
// packet returns ErrTimeout. The result is truncated to n bytes.
func Receive(rw io.ReadWriter, n uint32, opts ...Option) ([]byte, error) {
	s := newSession(opts)

	if err := writeByte(rw, Poll); err != nil {
		return nil, err
	}

	var (
		data     []byte
		expected = byte(1)
		ctrl     [1]byte
		packet   [PacketSize + headerSize - 1 + crcSize]byte
	)

	for {
		got, err := rw.Read(ctrl[:])
		if err != nil {
			return truncate(data, n), err
		}
		if got == 0 {
			s.log.Debug().Int("received", len(data)).Msg("timeout waiting for packet, ending transfer")
			return truncate(data, n), nil
		}

		switch ctrl[0] {
		case SOH:
			if err := readFull(rw, packet[:]); err != nil {
				return truncate(data, n), err
			}
			payload, err := checkPacket(packet[:], expected)
			if err != nil {
				s.log.Warn().Err(err).Uint8("seq", expected).Msg("packet rejected")
				if werr := writeByte(rw, CAN); werr != nil {
					return truncate(data, n), werr
				}
				return truncate(data, n), err
			}
			data = append(data, payload...)
			if err := writeByte(rw, ACK); err != nil {
				return truncate(data, n), err
			}
			s.log.Trace().Uint8("seq", expected).Msg("packet acked")
			expected++

		case EOT:
			if err := writeByte(rw, ACK); err != nil {
				return truncate(data, n), err
			}
			s.log.Debug().Int("received", len(data)).Msg("transfer complete")
			return truncate(data, n), nil

		default:
			s.log.Debug().Uint8("byte", ctrl[0]).Msg("unexpected control byte, ending transfer")
			return truncate(data, n), nil
		}
	}
}

// checkPacket validates seq, comp, payload, crc (SOH already consumed)
func checkPacket(p []byte, expected byte) ([]byte, error) {
	seq, comp := p[0], p[1]
	if seq+comp != 0xFF {
		return nil, &SequenceError{Check: CheckComplement, Expected: uint16(0xFF - seq), Got: uint16(comp)}
	}
	payload := p[2 : 2+PacketSize]
	want := binary.BigEndian.Uint16(p[2+PacketSize:])
	if seq != expected {
		return nil, &SequenceError{Check: CheckSequence, Expected: uint16(expected), Got: uint16(seq)}
	}
	if crc := CRC16(payload); crc != want {
		return nil, &SequenceError{Check: CheckCRC, Expected: crc, Got: want}
	}
	return payload, nil
}

func truncate(data []byte, n uint32) []byte {
	if uint64(len(data)) > uint64(n) {
		return data[:n]
	}
	return data
}

// readFull reads exactly len(buf) bytes, treating an empty read as a timeout
func readFull(r io.Reader, buf []byte) error {
	for off := 0; off < len(buf); {
		got, err := r.Read(buf[off:])
		off += got
		if err != nil {
			if err == io.EOF && off == len(buf) {
				return nil
			}
			return err
		}
		if got == 0 {
			return ErrTimeout
		}
	}
	return nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}
