// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/internal/logging"
	"github.com/Thermoquad/sambamock/internal/metrics"
	"github.com/Thermoquad/sambamock/pkg/flash"
	"github.com/Thermoquad/sambamock/pkg/samba"
)

var (
	imagePath     string
	showAll       bool
	statsInterval int
	useTUI        bool
	metricsAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Emulate a SAM-BA bootloader on the connection",
	Long: `Run the bootloader monitor on a serial port or WebSocket until interrupted.

The emulator answers the SAM-BA commands a flashing tool sends:
  V  version string            w  read a 32-bit word
  S  write buffer (XMODEM)     Y  copy buffer to flash
  W  set pointer               X  erase (acknowledged, not performed)
  N  leave terminal mode       T  enter terminal mode

With --image the flash contents are restored from a snapshot at start and
written back on exit, so consecutive runs see the previous upload.

By default only errors and warnings are displayed. Use --show-all to display
every command too. Statistics are printed at --stats-interval in text mode.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&imagePath, "image", "", "Flash snapshot to restore at start and save on exit")
	serveCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all commands (not just errors)")
	serveCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	serveCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI (false for text mode)")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Component("serve")

	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts, err := cfg.EngineOptions(flash.WithLogger(logging.Component("flash")))
	if err != nil {
		return err
	}

	m := metrics.New()
	var sink func(samba.Event)
	opts = append(opts,
		samba.WithLogger(logging.Component("engine")),
		samba.WithObserver(func(ev samba.Event) {
			m.Observe(ev)
			if sink != nil {
				sink(ev)
			}
		}),
	)

	engine, err := samba.NewEngine(conn, opts...)
	if err != nil {
		return err
	}

	if imagePath != "" {
		if err := restoreImage(engine.Store(), imagePath); err != nil {
			return err
		}
		defer func() {
			if err := saveImage(engine.Store(), imagePath); err != nil {
				log.Error().Err(err).Str("path", imagePath).Msg("failed to save image")
				return
			}
			log.Info().Str("path", imagePath).Msg("image saved")
		}()
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logging.Component("metrics")); err != nil {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	if useTUI {
		return runServeTUI(ctx, engine, connInfo, &sink)
	}
	return runServeText(ctx, engine, connInfo, &sink)
}

// restoreImage loads a snapshot into the store. A missing file is not an
// error, it is created on exit.
func restoreImage(store *flash.Store, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := flash.LoadImage(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return store.Restore(img)
}

func saveImage(store *flash.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.SaveImage(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printEvent prints an engine event in text mode
func printEvent(ev samba.Event) {
	timestamp := ev.Time.Format("15:04:05.000")
	switch ev.Kind {
	case samba.EventError:
		fmt.Printf("[%s] \033[1;31mERROR:\033[0m %v\n", timestamp, ev.Err)
		if ev.Command != nil {
			fmt.Printf("  Command: %s\n", samba.FormatCommand(ev.Command))
		}
		fmt.Printf("  Class: %s\n\n", samba.ClassifyError(ev.Err))

	case samba.EventWarning:
		fmt.Printf("[%s] \033[1;33mWARNING:\033[0m %v\n", timestamp, ev.Err)
		if ev.Command != nil {
			fmt.Printf("  Command: %s\n", samba.FormatCommand(ev.Command))
		}
		fmt.Println()

	case samba.EventTransfer:
		fmt.Printf("[%s] \033[1;32mTRANSFER:\033[0m %d bytes (%s)\n\n", timestamp, ev.Bytes, ev.Transfer)

	case samba.EventCommand:
		if showAll {
			fmt.Printf("[%s] %s\n", timestamp, samba.FormatCommand(ev.Command))
		}
	}
}

// runServeText runs the engine and prints events and periodic statistics
func runServeText(ctx context.Context, engine *samba.Engine, connInfo string, sink *func(samba.Event)) error {
	fmt.Printf("Sambamock - Bootloader Emulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Version: %s\n", cfg.Version)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All commands\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	events := make(chan samba.Event, 64)
	*sink = func(ev samba.Event) {
		select {
		case events <- ev:
		default:
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case ev := <-events:
			printEvent(ev)

		case <-statsTicker.C:
			fmt.Println()
			stats := engine.Stats()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-done:
			fmt.Println()
			stats := engine.Stats()
			fmt.Print(stats.String())
			return err
		}
	}
}

// runServeTUI runs the engine behind the monitor TUI
func runServeTUI(ctx context.Context, engine *samba.Engine, connInfo string, sink *func(samba.Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialMonitorModel(connInfo, cfg.Version, showAll, engine.Stats)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	*sink = func(ev samba.Event) {
		p.Send(eventMsg(ev))
	}

	done := make(chan error, 1)
	go func() {
		err := engine.Run(ctx)
		if err != nil {
			p.Send(engineStoppedMsg{err: err})
		}
		done <- err
	}()

	_, err := p.Run()
	cancel()
	runErr := <-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %v", err)
	}
	return runErr
}
