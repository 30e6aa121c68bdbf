// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/sambamock/pkg/samba"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings and commands
}

// Monitor TUI model
type monitorModel struct {
	connInfo      string
	version       string
	showAll       bool
	stats         func() samba.Statistics
	snapshot      samba.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	connected     bool
	lastCommand   string
	spinner       spinner.Model
	stopErr       error
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type eventMsg samba.Event
type engineStoppedMsg struct {
	err error
}

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	add := func(n uint64, unit string) {
		if n == 1 {
			parts = append(parts, "1 "+unit)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	if days > 0 {
		add(days, "day")
	}
	if hours > 0 {
		add(hours, "hour")
	}
	if minutes > 0 {
		add(minutes, "minute")
	}
	if seconds > 0 || len(parts) == 0 {
		add(seconds, "second")
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo, version string, showAll bool, stats func() samba.Statistics) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return monitorModel{
		connInfo:      connInfo,
		version:       version,
		showAll:       showAll,
		stats:         stats,
		snapshot:      stats(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       s,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.eventLog = m.eventLog[:0]
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.snapshot = m.stats()
		m.snapshot.CalculateRates()
		return m, tickCmd()

	case spinner.TickMsg:
		if m.connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case engineStoppedMsg:
		m.stopErr = msg.err
		m.addLogEntry(fmt.Sprintf("ENGINE STOPPED: %v", msg.err), true)
		m.quitting = true
		return m, tea.Quit

	case eventMsg:
		m.handleEvent(samba.Event(msg))
	}

	return m, nil
}

func (m *monitorModel) handleEvent(ev samba.Event) {
	if ev.Command != nil {
		if !m.connected {
			m.connected = true
			m.addLogEntry("Host connected", false)
		}
		m.lastCommand = samba.FormatCommand(ev.Command)
	}

	switch ev.Kind {
	case samba.EventError:
		m.addLogEntry(fmt.Sprintf("%s: %v", strings.ToUpper(samba.ClassifyError(ev.Err)), ev.Err), true)
	case samba.EventWarning:
		m.addLogEntry(fmt.Sprintf("%s: %v", m.lastCommand, ev.Err), false)
	case samba.EventTransfer:
		m.addLogEntry(fmt.Sprintf("XMODEM transfer %s: %d bytes", ev.Transfer.String()[:8], ev.Bytes), false)
	case samba.EventCommand:
		if m.showAll {
			m.addLogEntry(m.lastCommand, false)
		}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SAMBAMOCK - BOOTLOADER EMULATOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'r' to clear log, 'q' to quit", m.connInfo)))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("Version: " + m.version))
	s.WriteString("\n\n")

	// Host status
	if !m.connected {
		s.WriteString(warningStyle.Render(m.spinner.View() + " Waiting for host..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Host connected"))
		if m.lastCommand != "" {
			s.WriteString(headerStyle.Render(" | last: " + m.lastCommand))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	st := m.snapshot
	uptime := uint64(time.Since(st.StartTime).Milliseconds())
	row := func(label string, value string) string {
		return statsLabelStyle.Render(fmt.Sprintf("%-16s", label)) + statsValueStyle.Render(value) + "\n"
	}
	var stats strings.Builder
	stats.WriteString(row("Uptime:", formatUptime(uptime)))
	stats.WriteString(row("Commands:", fmt.Sprintf("%d (%.1f/s)", st.Commands, st.CommandRate)))
	stats.WriteString(row("Bytes in/out:", fmt.Sprintf("%d / %d", st.BytesIn, st.BytesOut)))
	stats.WriteString(row("Flash written:", fmt.Sprintf("%d bytes", st.FlashWritten)))
	stats.WriteString(row("Transfers:", fmt.Sprintf("%d (%d packets)", st.Transfers, st.PacketsAcked)))
	for _, kind := range slices.Sorted(maps.Keys(st.ByKind)) {
		stats.WriteString(row("  "+kind+":", fmt.Sprintf("%d", st.ByKind[kind])))
	}
	errors := st.Errors()
	errLine := fmt.Sprintf("%d (%.2f/s)", errors, st.ErrorRate)
	if errors > 0 {
		stats.WriteString(statsLabelStyle.Render(fmt.Sprintf("%-16s", "Errors:")) + errorStyle.Render(errLine) + "\n")
	} else {
		stats.WriteString(row("Errors:", errLine))
	}
	stats.WriteString(row("Erase warnings:", fmt.Sprintf("%d", st.EraseUnimplemented)))
	s.WriteString(boxStyle.Render(strings.TrimRight(stats.String(), "\n")))
	s.WriteString("\n\n")

	// Event log, sized to what is left of the screen
	s.WriteString(statsLabelStyle.Render("Event Log"))
	s.WriteString("\n")
	visible := m.height - strings.Count(s.String(), "\n") - 2
	if visible < 3 {
		visible = 3
	}
	entries := m.eventLog
	if len(entries) > visible {
		entries = entries[len(entries)-visible:]
	}
	if len(entries) == 0 {
		s.WriteString(headerStyle.Render("  (no events)"))
		s.WriteString("\n")
	}
	for _, e := range entries {
		line := fmt.Sprintf("[%s] %s", e.timestamp.Format("15:04:05.000"), e.message)
		if e.isError {
			s.WriteString(errorStyle.Render(line))
		} else {
			s.WriteString(line)
		}
		s.WriteString("\n")
	}

	return s.String()
}
