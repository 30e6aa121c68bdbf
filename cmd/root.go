// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/internal/config"
	"github.com/Thermoquad/sambamock/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Common flags
	configPath string
	logLevel   string

	// cfg is resolved before any subcommand runs
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "sambamock",
	Short: "SAM-BA Bootloader Emulator",
	Long: `Sambamock - Emulates the monitor of a SAM-BA style bootloader (SAMD21).

Flashing tools such as bossac can be pointed at the emulator to exercise their
upload path without real hardware. The emulated flash can be snapshotted to
disk, and host-side commands probe or upload to any SAM-BA monitor.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For a virtual serial pair use:
  socat -d -d pty,rawer,echo=0 pty,rawer,echo=0

For WebSocket authentication, the password is read from the SAMBAMOCK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

A .env file in the working directory is loaded before anything else.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
}

// setup loads .env, configures logging and resolves the configuration.
// Flags given on the command line win over the configuration file.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	logging.ConfigureRuntime()
	if logLevel != "" && !logging.SetLevel(logLevel) {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if !flags.Changed("port") && cfg.Serial.Port != "" {
		portName = cfg.Serial.Port
	}
	if !flags.Changed("baud") {
		baudRate = cfg.Serial.Baud
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
