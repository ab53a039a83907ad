// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"fmt"
	"strings"
	"time"
)

// FormatCommand returns the human-readable name for a command byte
func FormatCommand(cmd byte) string {
	switch cmd {
	case CmdGeneratorState:
		return "GENERATOR_STATE"
	case CmdRuntimeState:
		return "RUNTIME_STATE"
	case CmdControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// FormatControlCode returns the name of a control code, with its value
func FormatControlCode(c ControlCode) string {
	return fmt.Sprintf("%s (0x%02X)", c, uint8(c))
}

// FormatTelemetry formats a decoded sample into a human-readable string
func FormatTelemetry(t Telemetry) string {
	timestamp := t.Time().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X)\n", timestamp, FormatCommand(t.Command()), t.Command())

	switch v := t.(type) {
	case *GeneratorState:
		running := "No"
		if v.Running {
			running = "Yes"
		}
		result += fmt.Sprintf("  RPM: %d, Battery: %.2fV, Running: %s\n", v.RPM, v.StartBatteryVolts(), running)
		result += fmt.Sprintf("  Status: %s, Type: %d, Model: %s\n", v.GeneratorStatus, v.GeneratorType, formatModel(v.Flags))
		result += fmt.Sprintf("  Alarms: 0x%04X", v.Alarms)
		if names := alarmNames(v.Flags); len(names) > 0 {
			result += " [" + strings.Join(names, ", ") + "]"
		}
		result += "\n"
		if sig := formatStartSignals(v.Flags); sig != "" {
			result += "  Signals: " + sig + "\n"
		}

	case *RuntimeState:
		result += fmt.Sprintf("  Total: %s, Historical: %s\n",
			formatRuntime(v.TotalHours, v.TotalMinutes), formatRuntime(v.HistoricalHours, v.HistoricalMinutes))
	}

	return result
}

// FormatFrame formats raw frame bytes, with their header fields once the
// frame is long enough to hold one
func FormatFrame(frame []byte) string {
	f, err := ParseFrame(frame)
	if err != nil {
		return fmt.Sprintf("%s(%v)\n", FormatHex(frame), err)
	}

	check := "ok"
	if !f.Valid() {
		check = fmt.Sprintf("bad, want 0x%02X", Checksum(frame[:len(frame)-1]))
	}
	result := fmt.Sprintf("%s -> %s %s (0x%02X) len=%d checksum=0x%02X (%s)\n",
		f.Source, f.Target, FormatCommand(f.Command), f.Command, len(frame), f.Checksum, check)
	if f.Command == CmdControl && len(f.Payload) > 0 {
		result += fmt.Sprintf("  Code: %s\n", FormatControlCode(ControlCode(f.Payload[0])))
	}
	return result + "  Bytes: " + FormatHex(frame) + "\n"
}

// FormatHex renders bytes as space separated hex, 16 to a line
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			if i%16 == 0 {
				sb.WriteString("\n         ")
			} else {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func formatModel(f StatusFlags) string {
	var parts []string
	if f.ModelDetection50Hz {
		parts = append(parts, "50Hz")
	}
	if f.ModelDetection60Hz {
		parts = append(parts, "60Hz")
	}
	if f.ModelDetection3Phase {
		parts = append(parts, "3-phase")
	}
	if f.ModelDetectionMobile {
		parts = append(parts, "mobile")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func formatStartSignals(f StatusFlags) string {
	var parts []string
	if f.RunSignal {
		parts = append(parts, "run")
	}
	if f.StartFailure {
		parts = append(parts, "start failure")
	}
	if f.StartByOperationUnit {
		parts = append(parts, "started by operation unit")
	}
	return strings.Join(parts, ", ")
}

// formatRuntime renders an hours/minutes counter, e.g. "1234h 05m"
func formatRuntime(hours, minutes int) string {
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

// FormatDuration renders elapsed time compactly, e.g. "1h02m03s"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
