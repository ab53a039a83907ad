// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlKeyMap is the control TUI keymap
type controlKeyMap struct {
	Start key.Binding
	Stop  key.Binding
	Quit  key.Binding
}

func (k controlKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Quit}
}

func (k controlKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var controlKeys = controlKeyMap{
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	connMgr  *connectionManager
	connInfo string

	keys controlKeyMap
	help help.Model

	// Monitoring (shared with the error_detection TUI)
	stats         *ddc.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	anomalies     map[string]bool // messages seen in the previous sample

	// Latest samples
	generator *ddc.GeneratorState
	runtime   *ddc.RuntimeState

	// Control
	control     ddc.ControlState
	lastControl ddc.ControlCode
	lastSent    time.Time

	// UI state
	started        time.Time
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlDataMsg struct {
	result    ddc.Result
	anomalies []ddc.ValidationError
	writeErr  error
}

type controlSyncMsg struct {
	skipped int
}

type controlBatchMsg struct {
	messages []controlDataMsg
	syncMsg  *controlSyncMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		keys:          controlKeys,
		help:          help.New(),
		stats:         ddc.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		anomalies:     make(map[string]bool),
		control:       connMgr.driver.State(),
		started:       time.Now(),
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case controlTickMsg:
		m.stats.CalculateRates()
		m.control = m.connMgr.driver.State()
		return m, controlTickCmd()

	case controlBatchMsg:
		if msg.syncMsg != nil {
			m.synchronized = true
			if msg.syncMsg.skipped > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.syncMsg.skipped), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}
		for _, data := range msg.messages {
			m.processControlData(data)
		}
		m.control = m.connMgr.driver.State()

	case connectionLostMsg:
		m.connectionLost = true
		m.synchronized = false
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		m.latch(true)

	case key.Matches(msg, m.keys.Stop):
		m.latch(false)
	}

	return m, nil
}

func (m *controlModel) latch(start bool) {
	m.connMgr.driver.SetCommand(start)
	m.control = m.connMgr.driver.State()
	m.addLogEntry(fmt.Sprintf("%s latched", m.control.Desired), false)
	if m.connectionLost {
		m.addLogEntry("Link down: the command is sent once the connection is back", true)
	}
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("DDCSTAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Session: %s", connStatus, ddc.FormatDuration(time.Since(m.started)))))
	s.WriteString("\n\n")

	if !m.synchronized {
		s.WriteString(warningStyle.Render("Waiting for genset frames..."))
		s.WriteString("\n\n")
	}

	// Layout: left panel (genset) | right panel (control)
	leftWidth := 40
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	gensetPanel := boxStyle.Width(leftWidth).Render(m.renderGenset())
	controlPanel := boxStyle.Width(rightWidth).Render(m.renderControlPanel())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, gensetPanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog())
	s.WriteString("\n")

	s.WriteString(m.help.View(m.keys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderGenset() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("GENSET"))
	s.WriteString("\n")

	gs := m.generator
	if gs == nil {
		s.WriteString(headerStyle.Render("No generator state yet"))
		return s.String()
	}

	running := warningStyle.Render("STOPPED")
	if gs.Running {
		running = statsValueStyle.Render("RUNNING")
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Engine:"), running))
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("RPM:"), statsValueStyle.Render(fmt.Sprintf("%d", gs.RPM))))
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Battery:"), statsValueStyle.Render(fmt.Sprintf("%.2fV", gs.StartBatteryVolts()))))
	s.WriteString(fmt.Sprintf("%s %s  %s %d\n",
		statsLabelStyle.Render("Status:"), statsValueStyle.Render(gs.GeneratorStatus.String()),
		statsLabelStyle.Render("Type:"), gs.GeneratorType))

	alarms := statsValueStyle.Render("none")
	if gs.Flags.AnyAlarm() {
		alarms = errorStyle.Render(fmt.Sprintf("0x%04X", gs.Alarms))
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Alarms:"), alarms))

	if rs := m.runtime; rs != nil {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Total:"),
			statsValueStyle.Render(fmt.Sprintf("%dh %02dm", rs.TotalHours, rs.TotalMinutes))))
		s.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Historical:"),
			statsValueStyle.Render(fmt.Sprintf("%dh %02dm", rs.HistoricalHours, rs.HistoricalMinutes))))
	}

	return s.String()
}

func (m controlModel) renderControlPanel() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("CONTROL"))
	s.WriteString("\n")

	desired := headerStyle.Render(m.control.Desired.String())
	switch m.control.Desired {
	case ddc.CommandStart:
		desired = statsValueStyle.Render("START")
	case ddc.CommandStop:
		desired = warningStyle.Render("STOP")
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Command:"), desired))
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Observed:"), statsValueStyle.Render(m.control.Running.String())))

	if m.lastSent.IsZero() {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Last TX:"), headerStyle.Render("-")))
	} else {
		s.WriteString(fmt.Sprintf("%s %s %s\n", statsLabelStyle.Render("Last TX:"),
			statsValueStyle.Render(m.lastControl.String()),
			headerStyle.Render(fmt.Sprintf("(%s ago)", ddc.FormatDuration(time.Since(m.lastSent))))))
	}
	s.WriteString(fmt.Sprintf("%s start %d, stop %d, keep-alive %d",
		statsLabelStyle.Render("Sent:"), m.stats.StartsSent, m.stats.StopsSent, m.stats.KeepAlivesSent))
	if m.stats.SendErrors > 0 {
		s.WriteString(fmt.Sprintf("\n%s %s", statsLabelStyle.Render("Failed:"),
			errorStyle.Render(fmt.Sprintf("%d", m.stats.SendErrors))))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar() string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalFrames)
	}

	errText := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errText,
		statsLabelStyle.Render("Skipped:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.SkippedBytes)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")
	s.WriteString(renderLogEntries(m.errorLog, 8, "15:04:05.000"))
	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Message Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processControlData(msg controlDataMsg) {
	res := msg.result
	m.stats.Update(res, msg.anomalies)

	if !res.Valid() {
		m.addLogEntry(fmt.Sprintf("%s: %v", res.Status, res.Reject), true)
		return
	}

	switch t := res.Telemetry.(type) {
	case *ddc.GeneratorState:
		if m.generator == nil || m.generator.Running != t.Running {
			if t.Running {
				m.addLogEntry("Genset running", false)
			} else {
				m.addLogEntry("Genset stopped", false)
			}
		}
		m.generator = t
		m.logAnomalies(msg.anomalies)

	case *ddc.RuntimeState:
		m.runtime = t
	}

	if res.Outbound == nil {
		return
	}
	m.stats.RecordSent(res.Control, msg.writeErr)
	if msg.writeErr != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send %s: %v", res.Control, msg.writeErr), true)
		return
	}
	// A frame goes out for nearly every received frame; log only changes
	if res.Control != m.lastControl {
		m.addLogEntry(fmt.Sprintf("Sent %s", ddc.FormatControlCode(res.Control)), false)
	}
	m.lastControl = res.Control
	m.lastSent = res.Telemetry.Time()
}

// logAnomalies logs generator anomalies when they first appear
func (m *controlModel) logAnomalies(anomalies []ddc.ValidationError) {
	current := make(map[string]bool, len(anomalies))
	for _, a := range anomalies {
		current[a.Message] = true
		if !m.anomalies[a.Message] {
			m.addLogEntry(fmt.Sprintf("%s: %s", a.Type, a.Message), true)
		}
	}
	m.anomalies = current
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = appendLogEntry(m.errorLog, m.maxLogEntries, message, isError)
}
