// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/sambamock/pkg/samba"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type focusField int

const (
	focusOperationList focusField = iota
	focusAddrInput
	focusCount
)

type controlModel struct {
	client   *samba.Client
	connInfo string

	operations list.Model
	addrInput  textinput.Model
	focused    focusField

	busy          bool
	requests      int
	failures      int
	eventLog      []eventLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

// resultMsg carries the outcome of one operation
type resultMsg struct {
	op      string
	result  string
	err     error
	elapsed time.Duration
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(client *samba.Client, connInfo string) controlModel {
	// Initialize text input for the address
	ti := textinput.New()
	ti.Placeholder = "0x00002000"
	ti.CharLimit = 10
	ti.Width = 12

	ops := controlOperations()
	items := make([]list.Item, len(ops))
	for i, op := range ops {
		items[i] = op
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	opList := list.New(items, delegate, 36, 14)
	opList.Title = "Operations"
	opList.SetShowStatusBar(false)
	opList.SetShowHelp(false)
	opList.SetFilteringEnabled(false)

	return controlModel{
		client:        client,
		connInfo:      connInfo,
		operations:    opList,
		addrInput:     ti,
		focused:       focusOperationList,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return nil
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		m.operations, _ = m.operations.Update(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.failures++
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.op, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s: %s (%s)", msg.op, msg.result, msg.elapsed.Round(time.Millisecond)), false)
		}
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused != focusAddrInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focused {
	case focusAddrInput:
		m.addrInput, cmd = m.addrInput.Update(msg)
	case focusOperationList:
		m.operations, cmd = m.operations.Update(msg)
	}
	return m, cmd
}

func (m controlModel) cycleFocus(delta int) controlModel {
	m.focused = (m.focused + focusField(delta) + focusCount) % focusCount
	if m.focused == focusAddrInput {
		m.addrInput.Focus()
	} else {
		m.addrInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// The client is not safe for concurrent use
	if m.busy {
		m.addLogEntry("Request in progress", true)
		return m, nil
	}

	op, ok := m.operations.SelectedItem().(operation)
	if !ok {
		return m, nil
	}

	var addr uint32
	if op.needAddr {
		raw := strings.TrimSpace(m.addrInput.Value())
		if raw == "" {
			m.addLogEntry(fmt.Sprintf("%s: address required", op.name), true)
			return m, nil
		}
		var err error
		if addr, err = parseAddress(raw); err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
	}

	m.busy = true
	m.requests++
	client := m.client
	return m, func() tea.Msg {
		start := time.Now()
		result, err := op.run(client, addr)
		return resultMsg{op: op.name, result: result, err: err, elapsed: time.Since(start)}
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m controlModel) View() string {
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

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("SAMBAMOCK - CONTROL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Tab: switch focus | Enter: send | q: quit", m.connInfo)))
	s.WriteString("\n\n")

	// Operation list and address field side by side
	listBox, inputBox := boxStyle, boxStyle
	if m.focused == focusOperationList {
		listBox = focusedBoxStyle
	} else {
		inputBox = focusedBoxStyle
	}

	status := fmt.Sprintf("Requests: %d  Failures: %d", m.requests, m.failures)
	if m.busy {
		status += "  (waiting for reply)"
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		statsLabelStyle.Render("Address"),
		inputBox.Render(m.addrInput.View()),
		"",
		headerStyle.Render(status),
	)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listBox.Render(m.operations.View()), "  ", right))
	s.WriteString("\n\n")

	// Event log
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
	for _, e := range entries {
		line := fmt.Sprintf("[%s] %s", e.timestamp.Format("15:04:05.000"), e.message)
		if e.isError {
			line = errorStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	return s.String()
}
