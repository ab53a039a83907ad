// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCommand(t *testing.T) {
	tests := map[byte]string{
		CmdGeneratorState: "GENERATOR_STATE",
		CmdRuntimeState:   "RUNTIME_STATE",
		CmdControl:        "CONTROL",
		0x55:              "UNKNOWN",
	}
	for cmd, want := range tests {
		assert.Equal(t, want, FormatCommand(cmd), "0x%02X", cmd)
	}
}

func TestFormatTelemetry_GeneratorState(t *testing.T) {
	tel, err := Decode(generatorStateA, nil)
	require.NoError(t, err)
	tel.stamp(time.Date(2025, 6, 1, 8, 30, 15, 250000000, time.UTC))

	out := FormatTelemetry(tel)
	assert.Contains(t, out, "[08:30:15.250] GENERATOR_STATE (0x02)")
	assert.Contains(t, out, "RPM: 256, Battery: 7.70V, Running: Yes")
	assert.Contains(t, out, "Status: PRESENT, Type: 8, Model: 50Hz")
	assert.Contains(t, out, "Alarms: 0x0504 [PM voltage, low start battery]")
}

func TestFormatTelemetry_RuntimeState(t *testing.T) {
	tel, err := Decode(runtimeStateB, nil)
	require.NoError(t, err)
	assert.Contains(t, FormatTelemetry(tel), "Total: 197121h 00m, Historical: 460293h 04m")
}

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(MustEncodeControl(PeerAddress, SelfAddress, ControlKeepAlive))
	assert.Contains(t, out, "0x0081 -> 0x0088 CONTROL (0xF7) len=10 checksum=0x03 (ok)")
	assert.Contains(t, out, "Code: KEEP_ALIVE (0x03)")
	assert.Contains(t, out, "Bytes: 88 00 81 00 F7 03 00 00 00 03")

	bad := clone(generatorStateA)
	bad[15] = 0
	assert.Contains(t, FormatFrame(bad), "(bad, want 0x38)")

	assert.Contains(t, FormatFrame([]byte{0x01}), "frame too short")
}

func TestFormatHex_Wraps(t *testing.T) {
	out := FormatHex(make([]byte, 17))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2, "%q", out)
	assert.Equal(t, 16, strings.Count(lines[0], "00"), "first line should hold 16 bytes")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 4*time.Second, "3m04s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d), "%v", tt.d)
	}
}
