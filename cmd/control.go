// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/internal/logging"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

var controlTimeout int

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving a SAM-BA monitor",
	Long: `Send individual SAM-BA commands through an interactive terminal UI.

This command is useful for poking at a bootloader (real or emulated) one
request at a time:
  - Version query
  - Word reads at any address
  - Pointer, erase and terminal mode commands
  - Event logging of every request and reply

Tab switches between the operation list and the address field. Enter sends
the selected operation with the address typed in the field.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().IntVar(&controlTimeout, "timeout", 2, "Response timeout in seconds")
}

func runControl(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	client := samba.NewClient(conn,
		samba.WithClientTimeout(time.Duration(controlTimeout)*time.Second),
		samba.WithClientLogger(logging.Component("control")),
	)

	// Create TUI program with alt screen and mouse support
	m := initialControlModel(client, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// operation is one entry of the control list
type operation struct {
	name     string
	desc     string
	needAddr bool
	run      func(c *samba.Client, addr uint32) (string, error)
}

// Implement list.Item interface
func (o operation) Title() string       { return o.name }
func (o operation) Description() string { return o.desc }
func (o operation) FilterValue() string { return o.name }

func controlOperations() []operation {
	return []operation{
		{
			name: "Version",
			desc: "V# - report the monitor version",
			run: func(c *samba.Client, _ uint32) (string, error) {
				return c.Version()
			},
		},
		{
			name:     "Read word",
			desc:     "w - read 32 bits at address",
			needAddr: true,
			run: func(c *samba.Client, addr uint32) (string, error) {
				v, err := c.ReadWord(addr)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("0x%08X = 0x%08X", addr, v), nil
			},
		},
		{
			name:     "Set pointer",
			desc:     "W - load the address register",
			needAddr: true,
			run: func(c *samba.Client, addr uint32) (string, error) {
				return fmt.Sprintf("pointer = 0x%08X", addr), c.SetPointer(addr)
			},
		},
		{
			name:     "Erase",
			desc:     "X - erase flash from address",
			needAddr: true,
			run: func(c *samba.Client, addr uint32) (string, error) {
				return "erase acknowledged", c.Erase(addr)
			},
		},
		{
			name: "Enter terminal",
			desc: "T# - switch to terminal mode",
			run: func(c *samba.Client, _ uint32) (string, error) {
				return "terminal mode", c.EnterTerminal()
			},
		},
		{
			name: "Exit terminal",
			desc: "N# - switch to binary mode",
			run: func(c *samba.Client, _ uint32) (string, error) {
				return "binary mode", c.ExitTerminal()
			},
		},
	}
}
