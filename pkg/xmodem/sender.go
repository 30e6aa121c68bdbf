// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xmodem

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Send runs the sending side of a transfer. It waits for the receiver's 'C',
// sends data in 128-byte packets padded with SUB, then sends EOT.
func Send(rw io.ReadWriter, data []byte, opts ...Option) error {
	s := newSession(opts)

	if err := waitPoll(rw); err != nil {
		return err
	}

	seq := byte(1)
	for off := 0; off < len(data); off += PacketSize {
		end := off + PacketSize
		if end > len(data) {
			end = len(data)
		}
		pkt := EncodePacket(seq, data[off:end])

		if err := s.sendPacket(rw, pkt, seq); err != nil {
			return err
		}
		seq++
	}

	if err := writeByte(rw, EOT); err != nil {
		return err
	}
	resp, err := readResponse(rw)
	if err != nil {
		return fmt.Errorf("waiting for EOT ack: %w", err)
	}
	if resp != ACK {
		return fmt.Errorf("EOT answered with 0x%02X", resp)
	}
	s.log.Debug().Int("bytes", len(data)).Msg("transfer sent")
	return nil
}

// EncodePacket builds a full SOH packet for up to PacketSize bytes of data
func EncodePacket(seq byte, data []byte) []byte {
	pkt := make([]byte, headerSize+PacketSize+crcSize)
	pkt[0] = SOH
	pkt[1] = seq
	pkt[2] = 0xFF - seq
	payload := pkt[headerSize : headerSize+PacketSize]
	n := copy(payload, data)
	for i := n; i < PacketSize; i++ {
		payload[i] = SUB
	}
	binary.BigEndian.PutUint16(pkt[headerSize+PacketSize:], CRC16(payload))
	return pkt
}

func (s *session) sendPacket(rw io.ReadWriter, pkt []byte, seq byte) error {
	for try := 0; try <= s.retries; try++ {
		if _, err := rw.Write(pkt); err != nil {
			return err
		}
		resp, err := readResponse(rw)
		if err != nil {
			return fmt.Errorf("packet %d: %w", seq, err)
		}
		switch resp {
		case ACK:
			s.log.Trace().Uint8("seq", seq).Msg("packet acked")
			return nil
		case CAN:
			return fmt.Errorf("packet %d: %w", seq, ErrCanceled)
		default:
			s.log.Debug().Uint8("seq", seq).Uint8("resp", resp).Int("try", try).Msg("packet not acked, resending")
		}
	}
	return fmt.Errorf("packet %d: %w", seq, ErrRetriesExhausted)
}

// waitPoll discards bytes until the receiver sends 'C'
func waitPoll(r io.Reader) error {
	for {
		b, err := readResponse(r)
		if err != nil {
			return fmt.Errorf("waiting for receiver: %w", err)
		}
		if b == Poll {
			return nil
		}
		if b == CAN {
			return ErrCanceled
		}
	}
}

func readResponse(r io.Reader) (byte, error) {
	var b [1]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
