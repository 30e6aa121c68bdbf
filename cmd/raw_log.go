// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/pkg/channel"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display the SAM-BA commands arriving on a connection",
	Long: `Continuously decode and display SAM-BA commands as they arrive, without
answering them.

Each command is shown with a timestamp and its decoded arguments. Inline
write payloads are skipped, but XMODEM packets are not framed, so a transfer
may show up as unsupported commands. An error drops the rest of its chunk.
Use --hex to print every received chunk as well.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Print raw chunks in hex")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetTimeout(samba.DefaultPollTimeout); err != nil {
		return err
	}

	fmt.Printf("Sambamock - Raw Command Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var scanner samba.Scanner
	buf := make([]byte, samba.DefaultChunkSize)

	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				fmt.Printf("Connection closed\n")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}

		timestamp := time.Now().Format("15:04:05.000")
		if rawLogHex {
			fmt.Printf("[%s] RX %d bytes: %s\n", timestamp, n, hex.EncodeToString(buf[:n]))
		}
		cmds, err := scanner.Scan(buf[:n])
		for _, c := range cmds {
			fmt.Printf("[%s] %s\n", timestamp, samba.FormatCommand(c))
		}
		if err != nil {
			fmt.Printf("[%s] [ERROR] %v\n", timestamp, err)
		}
	}
	return nil
}
