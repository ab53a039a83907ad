// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("12")).
	Background(lipgloss.Color("235")).
	Padding(0, 1)
var headerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241"))
var statsLabelStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("12")).
	Bold(true)
var statsValueStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("10"))
var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("9")).
	Bold(true)
var warningStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("11"))
var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// appendLogEntry appends an entry, keeping only the last limit entries
func appendLogEntry(entries []errorLogEntry, limit int, message string, isError bool) []errorLogEntry {
	entries = append(entries, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// renderLogEntries renders the last height entries of an event log
func renderLogEntries(entries []errorLogEntry, height int, layout string) string {
	if len(entries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	startIdx := len(entries) - height
	if startIdx < 0 {
		startIdx = 0
	}

	var s strings.Builder
	for _, entry := range entries[startIdx:] {
		timestamp := entry.timestamp.Format(layout)
		if entry.isError {
			s.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				errorStyle.Render("✗ "+entry.message),
			))
		} else {
			s.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				warningStyle.Render("ℹ "+entry.message),
			))
		}
	}
	return s.String()
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *ddc.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	lastGenerator *ddc.GeneratorState
	lastRuntime   *ddc.RuntimeState
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	result           ddc.Result
	validationErrors []ddc.ValidationError
}
type syncMsg struct {
	invalidBytes int
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         ddc.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case frameMsg:
		res := msg.result
		m.stats.Update(res, msg.validationErrors)

		if !res.Valid() {
			m.addLogEntry(fmt.Sprintf("%s: %v", res.Status, res.Reject), true)
			break
		}

		switch t := res.Telemetry.(type) {
		case *ddc.GeneratorState:
			m.lastGenerator = t
		case *ddc.RuntimeState:
			m.lastRuntime = t
		}

		name := ddc.FormatCommand(res.Telemetry.Command())
		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s (valid)", name), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	m.errorLog = appendLogEntry(m.errorLog, m.maxLogEntries, message, isError)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("DDCSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All frames"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Errors(), errorPercent)),
	))

	if m.stats.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("Unrecognized:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Unrecognized)),
			statsLabelStyle.Render("Truncated:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Truncated)),
			statsLabelStyle.Render("Oversize:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Oversize)),
		))
	}

	if m.stats.SkippedBytes > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Skipped Bytes:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.SkippedBytes)),
		))
	}

	if m.stats.AnomalousValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.AnomalousValues)),
		))
		if m.stats.Alarms > 0 || m.stats.HighRPM > 0 {
			statsContent.WriteString(fmt.Sprintf(" (%s: %d, %s: %d)",
				headerStyle.Render("alarms"), m.stats.Alarms,
				headerStyle.Render("high RPM"), m.stats.HighRPM,
			))
		}
		statsContent.WriteString("\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Telemetry section (only shown if telemetry received)
	if m.lastGenerator != nil || m.lastRuntime != nil {
		s.WriteString(statsLabelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")

		telemetryContent := strings.Builder{}
		if gs := m.lastGenerator; gs != nil {
			telemetryContent.WriteString(fmt.Sprintf("%s %s   %s %t   %s %s\n",
				statsLabelStyle.Render("RPM:"), statsValueStyle.Render(fmt.Sprintf("%d", gs.RPM)),
				statsLabelStyle.Render("Running:"), gs.Running,
				statsLabelStyle.Render("Battery:"), statsValueStyle.Render(fmt.Sprintf("%.2fV", gs.StartBatteryVolts())),
			))
			telemetryContent.WriteString(fmt.Sprintf("%s %s   %s 0x%04X\n",
				statsLabelStyle.Render("Status:"), statsValueStyle.Render(gs.GeneratorStatus.String()),
				statsLabelStyle.Render("Alarms:"), gs.Alarms,
			))
		}
		if rs := m.lastRuntime; rs != nil {
			telemetryContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%dh %02dm", rs.TotalHours, rs.TotalMinutes)),
				statsLabelStyle.Render("Historical:"), statsValueStyle.Render(fmt.Sprintf("%dh %02dm", rs.HistoricalHours, rs.HistoricalMinutes)),
			))
		}

		s.WriteString(boxStyle.Render(telemetryContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 18 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLogEntries(m.errorLog, logHeight, "01/02/06 15:04:05.000")))

	return s.String()
}
