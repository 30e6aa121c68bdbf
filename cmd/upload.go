// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/internal/logging"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

var (
	uploadBufferAddr string
	uploadBufferSize uint32
	uploadFlashAddr  string
	uploadVerify     bool
	uploadTimeout    int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Write a binary to flash through a SAM-BA monitor",
	Long: `Upload a binary the way a flashing tool does.

The file is sent in pieces of --buffer-size bytes. Each piece is written to the
RAM buffer at --buffer over XMODEM ('S'), then copied into flash at
--flash-addr plus its offset ('Y'). With --verify every word is read back.

Exit status is non-zero if any step fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadBufferAddr, "buffer", "0x20004000", "RAM buffer address")
	uploadCmd.Flags().Uint32Var(&uploadBufferSize, "buffer-size", 0x1000, "RAM buffer size in bytes")
	uploadCmd.Flags().StringVar(&uploadFlashAddr, "flash-addr", "0x2000", "Flash address of the first byte")
	uploadCmd.Flags().BoolVar(&uploadVerify, "verify", false, "Read back and compare after writing")
	uploadCmd.Flags().IntVar(&uploadTimeout, "timeout", 5, "Response timeout in seconds")
}

// uploadPlan describes where a binary goes
type uploadPlan struct {
	bufferAddr uint32
	bufferSize uint32
	flashAddr  uint32
	verify     bool
}

func runUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	plan := uploadPlan{bufferSize: uploadBufferSize, verify: uploadVerify}
	if plan.bufferAddr, err = parseAddress(uploadBufferAddr); err != nil {
		return err
	}
	if plan.flashAddr, err = parseAddress(uploadFlashAddr); err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Sambamock - Upload\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("File: %s (%d bytes)\n\n", args[0], len(data))

	client := samba.NewClient(conn,
		samba.WithClientTimeout(time.Duration(uploadTimeout)*time.Second),
		samba.WithClientLogger(logging.Component("upload")),
	)
	return upload(client, data, plan, os.Stdout)
}

// upload writes data to flash through client and reports progress to out
func upload(client *samba.Client, data []byte, plan uploadPlan, out io.Writer) error {
	if plan.bufferSize == 0 || plan.bufferSize%4 != 0 {
		return fmt.Errorf("buffer size %d must be a non-zero multiple of 4", plan.bufferSize)
	}

	version, err := client.Version()
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	fmt.Fprintf(out, "Monitor: %s\n", version)

	for off := 0; off < len(data); off += int(plan.bufferSize) {
		piece := data[off:min(off+int(plan.bufferSize), len(data))]
		// Flash copies whole words
		if pad := len(piece) % 4; pad != 0 {
			padded := make([]byte, len(piece), len(piece)+4-pad)
			copy(padded, piece)
			for range 4 - pad {
				padded = append(padded, 0xFF)
			}
			piece = padded
		}

		dst := plan.flashAddr + uint32(off)
		if err := client.WriteBuffer(plan.bufferAddr, piece); err != nil {
			return err
		}
		if err := client.CopyToFlash(plan.bufferAddr, dst, uint32(len(piece))); err != nil {
			return fmt.Errorf("copy to 0x%08X: %w", dst, err)
		}
		fmt.Fprintf(out, "  wrote 0x%08X +0x%X\n", dst, len(piece))

		if plan.verify {
			if err := verifyWords(client, dst, piece); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(out, "SUCCESS: %d bytes written\n", len(data))
	return nil
}

func verifyWords(client *samba.Client, addr uint32, want []byte) error {
	for i := 0; i+4 <= len(want); i += 4 {
		got, err := client.ReadWord(addr + uint32(i))
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if exp := binary.LittleEndian.Uint32(want[i:]); got != exp {
			return fmt.Errorf("verify failed at 0x%08X: got 0x%08X, want 0x%08X", addr+uint32(i), got, exp)
		}
	}
	return nil
}
