// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/internal/logging"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips to a SAM-BA monitor",
	Long: `Send version requests ('V#') and wait for the version line each time.

This is useful for verifying:
  - The serial port or WebSocket bridge is passing data both ways
  - HTTP Basic authentication works
  - The monitor answers within a reasonable time

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Sambamock - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	client := samba.NewClient(conn,
		samba.WithClientTimeout(time.Duration(pingTimeout)*time.Second),
		samba.WithClientLogger(logging.Component("ping")),
	)

	if failed := ping(client, pingCount, 100*time.Millisecond, os.Stdout); failed > 0 {
		conn.Close()
		os.Exit(1)
	}
	return nil
}

// ping sends count version requests and returns how many went unanswered
func ping(client *samba.Client, count int, gap time.Duration, out io.Writer) int {
	successCount := 0
	failCount := 0

	for i := 1; i <= count; i++ {
		fmt.Fprintf(out, "Ping %d/%d: ", i, count)

		startTime := time.Now()
		version, err := client.Version()
		if err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			failCount++
		} else {
			rtt := time.Since(startTime)
			fmt.Fprintf(out, "%q, rtt=%v\n", version, rtt.Round(time.Millisecond))
			successCount++
		}

		// Small delay between pings
		if i < count {
			time.Sleep(gap)
		}
	}

	// Summary
	fmt.Fprintf(out, "\n--- Ping statistics ---\n")
	loss := 0.0
	if count > 0 {
		loss = float64(failCount) / float64(count) * 100
	}
	fmt.Fprintf(out, "%d pings sent, %d responses received, %.0f%% loss\n", count, successCount, loss)
	return failCount
}
