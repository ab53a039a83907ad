// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ddc implements the WhisperPower DDC genset serial protocol.
//
// DDC is a fixed-length binary protocol between a controller and a variable
// speed genset. Every frame carries a little-endian target and source address,
// a command byte, a payload whose length is fixed by the command, and an 8-bit
// additive checksum:
//
//	| target (2) | source (2) | command (1) | payload (N) | checksum (1) |
//
// The genset periodically sends GENERATOR_STATE (0x02) and RUNTIME_STATE (0x0E)
// frames. The controller answers with CONTROL (0xF7) frames carrying START,
// STOP or KEEP_ALIVE.
//
// This package provides frame extraction with byte-granular resynchronization,
// telemetry decoding, the start/stop state machine and frame encoding. It does
// not open ports or spawn goroutines.
package ddc

import "fmt"

// Address is a 16-bit DDC bus address.
type Address uint16

// Well known bus addresses
const (
	SelfAddress Address = 0x0081 // Controller (this driver)
	PeerAddress Address = 0x0088 // Variable speed genset
)

// Frame layout
const (
	HeaderSize   = 5 // target(2) + source(2) + command(1)
	ChecksumSize = 1

	TelemetryPayloadSize = 10
	ControlPayloadSize   = 4

	TelemetryFrameSize = HeaderSize + TelemetryPayloadSize + ChecksumSize // 16
	ControlFrameSize   = HeaderSize + ControlPayloadSize + ChecksumSize   // 10
)

// Command bytes
const (
	CmdGeneratorState = 0x02 // Genset → Controller
	CmdRuntimeState   = 0x0E // Genset → Controller
	CmdControl        = 0xF7 // Controller → Genset
)

// CommandTable maps a command byte to its fixed payload length.
type CommandTable map[byte]int

// InboundCommands lists the frames a controller accepts from the genset.
var InboundCommands = CommandTable{
	CmdGeneratorState: TelemetryPayloadSize,
	CmdRuntimeState:   TelemetryPayloadSize,
}

// ControlCommands lists the frames a genset accepts from the controller.
var ControlCommands = CommandTable{
	CmdControl: ControlPayloadSize,
}

// FrameSize returns the total wire length for cmd, or 0 if cmd is unknown.
func (t CommandTable) FrameSize(cmd byte) int {
	n, ok := t[cmd]
	if !ok {
		return 0
	}
	return HeaderSize + n + ChecksumSize
}

// MinFrameSize returns the shortest frame in the table.
func (t CommandTable) MinFrameSize() int {
	min := 0
	for cmd := range t {
		if n := t.FrameSize(cmd); min == 0 || n < min {
			min = n
		}
	}
	return min
}

// ControlCode is the first payload byte of a CONTROL frame.
type ControlCode uint8

// Control code values
const (
	ControlStart     ControlCode = 0x01
	ControlStop      ControlCode = 0x02
	ControlKeepAlive ControlCode = 0x03
)

// Valid reports whether c is a known control code.
func (c ControlCode) Valid() bool {
	switch c {
	case ControlStart, ControlStop, ControlKeepAlive:
		return true
	}
	return false
}

// GeneratorStatus is the status enumeration carried in GENERATOR_STATE byte 7.
type GeneratorStatus uint8

// Generator status values. Only StatusPresent is confirmed on the wire; codes
// below statusLimit are kept as raw enum values, anything else maps to
// StatusUnknown.
const (
	StatusPresent GeneratorStatus = 0x07
	StatusUnknown GeneratorStatus = 0xFF

	statusLimit = 0x0E
)

// Engine limits used by CheckTelemetry
const (
	MaxRPM = 4000
)

// String returns the control code name
func (c ControlCode) String() string {
	switch c {
	case ControlStart:
		return "START"
	case ControlStop:
		return "STOP"
	case ControlKeepAlive:
		return "KEEP_ALIVE"
	default:
		return fmt.Sprintf("CONTROL_0x%02X", uint8(c))
	}
}
