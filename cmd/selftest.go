// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/internal/logging"
	"github.com/Thermoquad/sambamock/pkg/channel"
	"github.com/Thermoquad/sambamock/pkg/flash"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

var selfTestSize int

var selfTestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run a flashing session against an in-process emulator",
	Long: `Connect the host client to an emulator over an in-memory pipe and run a
complete session: version, chip identification, upload with verify and erase.

Exit codes:
  0 - Every step passed
  1 - A step failed`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := selfTest(cmd.Context(), selfTestSize, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(selfTestCmd)
	selfTestCmd.Flags().IntVar(&selfTestSize, "size", 1000, "Number of bytes to upload")
}

// selfTest runs an emulator built from cfg and drives it with a client
func selfTest(ctx context.Context, size int, out io.Writer) error {
	device, host := channel.NewPipe()
	defer host.Close()

	opts, err := cfg.EngineOptions(flash.WithLogger(logging.Component("flash")))
	if err != nil {
		return err
	}
	opts = append(opts, samba.WithLogger(logging.Component("engine")))
	engine, err := samba.NewEngine(device, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	client := samba.NewClient(host, samba.WithClientLogger(logging.Component("client")))

	id, err := client.ReadWord(0x00000004)
	if err != nil {
		return fmt.Errorf("chip id: %w", err)
	}
	fmt.Fprintf(out, "Chip ID: 0x%08X\n", id)

	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	plan := uploadPlan{
		bufferAddr: 0x20004000,
		bufferSize: 0x400,
		flashAddr:  0x2000,
		verify:     true,
	}
	if err := upload(client, payload, plan, out); err != nil {
		return err
	}

	if err := client.Erase(plan.flashAddr); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	stats := engine.Stats()
	fmt.Fprintf(out, "\n%s", stats.String())
	if n := stats.Errors(); n != 0 {
		return fmt.Errorf("emulator recorded %d errors", n)
	}
	fmt.Fprintf(out, "PASS\n")
	return nil
}
