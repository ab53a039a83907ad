// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import "fmt"

// Decode turns a validated telemetry frame into a *GeneratorState or a
// *RuntimeState. mapping may be nil to use DefaultStatusMapping.
//
// The frame must have passed an Extractor; Decode checks only the length it
// slices from. Returned telemetry has a zero Timestamp.
func Decode(frame []byte, mapping StatusMapping) (Telemetry, error) {
	if len(frame) != TelemetryFrameSize {
		return nil, fmt.Errorf("decode: frame length %d, want %d: %w", len(frame), TelemetryFrameSize, ErrTruncated)
	}
	if mapping == nil {
		mapping = DefaultStatusMapping
	}

	payload := frame[HeaderSize : HeaderSize+TelemetryPayloadSize]
	switch frame[4] {
	case CmdGeneratorState:
		return decodeGeneratorState(payload, mapping), nil
	case CmdRuntimeState:
		return decodeRuntimeState(payload), nil
	default:
		return nil, fmt.Errorf("decode: command 0x%02X: %w", frame[4], ErrUnrecognized)
	}
}

func decodeGeneratorState(p []byte, mapping StatusMapping) *GeneratorState {
	return &GeneratorState{
		RPM:             int(le16(p[0:2])),
		StartBatteryRaw: le16(p[2:4]),
		StatusBits:      mapping(p),
		GeneratorType:   p[8],
		Running:         p[5] != 0,
	}
}

func decodeRuntimeState(p []byte) *RuntimeState {
	return &RuntimeState{
		TotalMinutes:      int(p[0]),
		TotalHours:        int(le24(p[1:4])),
		HistoricalMinutes: int(p[4]),
		HistoricalHours:   int(le24(p[5:8])),
	}
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func le24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
