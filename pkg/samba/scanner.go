// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package samba

// Scanner decodes the commands in a host byte stream without executing them.
// Register side effects that change later decoding are mirrored.
type Scanner struct {
	regs registers
}

// Feed advances the scanner by one byte. It returns a command when b
// terminated one, and nil otherwise. Inline write payloads are only
// recognised by Scan, which sees chunk boundaries.
func (s *Scanner) Feed(b byte) (Command, error) {
	var terminated bool
	s.regs, terminated = s.regs.step(b)
	if !terminated {
		return nil, nil
	}

	cmd, err := decode(s.regs)
	if err != nil {
		return nil, err
	}
	switch c := cmd.(type) {
	case SetPointer:
		s.regs.pointer = c.Value
	case SetCopySource:
		s.regs.copySource = c.Addr
	case ReadWord:
		s.regs.number = c.Addr
	}
	return cmd, nil
}

// Scan decodes one chunk the way Engine.Process tokenizes it: the bytes
// following a WriteBuffer terminator, up to its count, are payload and are
// skipped. An error drops the rest of the chunk and is returned with the
// commands decoded before it.
func (s *Scanner) Scan(chunk []byte) ([]Command, error) {
	var cmds []Command
	for i := 0; i < len(chunk); i++ {
		cmd, err := s.Feed(chunk[i])
		if err != nil {
			return cmds, err
		}
		if cmd == nil {
			continue
		}
		cmds = append(cmds, cmd)
		if wb, ok := cmd.(WriteBuffer); ok {
			rest := uint64(len(chunk) - i - 1)
			i += int(min(uint64(wb.Count), rest))
		}
	}
	return cmds, nil
}
