// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"encoding/binary"
	"fmt"
)

// EncodeControl creates a CONTROL frame from the controller (self) to the
// genset (peer):
//
//	peer(LE16) self(LE16) 0xF7 code 0x00 0x00 0x00 checksum
//
// Only START, STOP and KEEP_ALIVE can be encoded; anything else returns an
// *EncodeError.
func EncodeControl(peer, self Address, code ControlCode) ([]byte, error) {
	if !code.Valid() {
		return nil, &EncodeError{Code: code}
	}

	frame := make([]byte, ControlFrameSize)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(peer))
	binary.LittleEndian.PutUint16(frame[2:4], uint16(self))
	frame[4] = CmdControl
	frame[5] = byte(code)
	frame[ControlFrameSize-1] = Checksum(frame[:ControlFrameSize-1])
	return frame, nil
}

// MustEncodeControl is EncodeControl for codes known to be valid.
// Panics on encoding error.
func MustEncodeControl(peer, self Address, code ControlCode) []byte {
	frame, err := EncodeControl(peer, self, code)
	if err != nil {
		panic(fmt.Sprintf("ddc: encode error: %v", err))
	}
	return frame
}

// DecodeControl validates a delimited CONTROL frame sent by self to peer and
// returns its control code.
func DecodeControl(frame []byte, peer, self Address) (ControlCode, error) {
	x := NewExtractor(peer, self, ControlCommands).Validate(frame)
	if err := x.Err(); err != nil {
		return 0, err
	}
	code := ControlCode(frame[HeaderSize])
	if !code.Valid() {
		return 0, &EncodeError{Code: code}
	}
	return code, nil
}

// EncodeGeneratorState creates a GENERATOR_STATE frame from the genset (peer)
// to the controller (self). It is the inverse of DefaultStatusMapping.
//
// Payload byte 5 doubles as the running flag: it carries StartSignals (with
// the run signal bit forced on) while running and is zero while stopped.
func EncodeGeneratorState(self, peer Address, s *GeneratorState) []byte {
	payload := make([]byte, TelemetryPayloadSize)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(s.RPM))
	binary.LittleEndian.PutUint16(payload[2:4], s.StartBatteryRaw)
	payload[4] = byte(s.Alarms)
	if s.Running {
		payload[5] = s.StartSignals | 1<<5
	}
	payload[6] = s.Model
	payload[7] = byte(s.GeneratorStatus)
	payload[8] = s.GeneratorType
	return NewFrame(self, peer, CmdGeneratorState, payload).Bytes()
}

// EncodeRuntimeState creates a RUNTIME_STATE frame from the genset (peer) to
// the controller (self). Hours are truncated to 24 bits.
func EncodeRuntimeState(self, peer Address, r *RuntimeState) []byte {
	payload := make([]byte, TelemetryPayloadSize)
	payload[0] = byte(r.TotalMinutes)
	putLE24(payload[1:4], uint32(r.TotalHours))
	payload[4] = byte(r.HistoricalMinutes)
	putLE24(payload[5:8], uint32(r.HistoricalHours))
	return NewFrame(self, peer, CmdRuntimeState, payload).Bytes()
}

func putLE24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
