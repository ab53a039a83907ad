// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"fmt"
	"time"
)

// Telemetry is a decoded genset frame: *GeneratorState or *RuntimeState
type Telemetry interface {
	// Command returns the command byte the telemetry was decoded from
	Command() byte
	// Time returns the decode timestamp
	Time() time.Time

	stamp(t time.Time)
}

// StatusFlags holds the named alarm and status bits of a GENERATOR_STATE frame
type StatusFlags struct {
	OverallAlarm            bool
	EngineTemperatureAlarm  bool
	PMVoltageAlarm          bool
	OilPressureAlarm        bool
	ExhaustTemperatureAlarm bool
	UAC1Alarm               bool
	IAC1Alarm               bool
	OilPressureHighAlarm    bool
	LowStartBatteryAlarm    bool
	StartFailure            bool
	RunSignal               bool
	StartByOperationUnit    bool
	ModelDetection50Hz      bool
	ModelDetection60Hz      bool
	ModelDetection3Phase    bool
	ModelDetectionMobile    bool
}

// AnyAlarm reports whether one of the alarm bits is set
func (f StatusFlags) AnyAlarm() bool {
	return f.OverallAlarm || f.EngineTemperatureAlarm || f.PMVoltageAlarm ||
		f.OilPressureAlarm || f.ExhaustTemperatureAlarm || f.UAC1Alarm ||
		f.IAC1Alarm || f.OilPressureHighAlarm || f.LowStartBatteryAlarm
}

// StatusBits is the result of a StatusMapping
type StatusBits struct {
	Alarms          uint16 // payload[4] | payload[5]<<8
	StartSignals    uint8  // payload[5]
	Model           uint8  // payload[6]
	GeneratorStatus GeneratorStatus
	Flags           StatusFlags
}

// StatusMapping turns the alarm/status bytes of a GENERATOR_STATE payload
// into StatusBits. The bit layout changed between controller firmware
// revisions, so the mapping is replaceable per driver (see WithStatusMapping).
// It is only called with a full TelemetryPayloadSize payload.
type StatusMapping func(payload []byte) StatusBits

// DefaultStatusMapping decodes the bit layout of current DDC firmware
func DefaultStatusMapping(payload []byte) StatusBits {
	a, b, c := payload[4], payload[5], payload[6]
	return StatusBits{
		Alarms:          uint16(a) | uint16(b)<<8,
		StartSignals:    b,
		Model:           c,
		GeneratorStatus: decodeGeneratorStatus(payload[7]),
		Flags: StatusFlags{
			OverallAlarm:            bit(a, 0),
			EngineTemperatureAlarm:  bit(a, 1),
			PMVoltageAlarm:          bit(a, 2),
			OilPressureAlarm:        bit(a, 3),
			ExhaustTemperatureAlarm: bit(a, 4),
			UAC1Alarm:               bit(a, 5),
			IAC1Alarm:               bit(a, 6),
			OilPressureHighAlarm:    bit(a, 7),
			LowStartBatteryAlarm:    bit(b, 2),
			StartFailure:            bit(b, 4),
			RunSignal:               bit(b, 5),
			StartByOperationUnit:    bit(b, 7),
			ModelDetection50Hz:      bit(c, 2),
			ModelDetection60Hz:      bit(c, 3),
			ModelDetection3Phase:    bit(c, 4),
			ModelDetectionMobile:    bit(c, 5),
		},
	}
}

func bit(b byte, n uint) bool {
	return b&(1<<n) != 0
}

func decodeGeneratorStatus(b byte) GeneratorStatus {
	if b < statusLimit {
		return GeneratorStatus(b)
	}
	return StatusUnknown
}

// String returns the status name; unnamed codes print as STATUS_0xNN
func (s GeneratorStatus) String() string {
	switch s {
	case StatusPresent:
		return "PRESENT"
	case StatusUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("STATUS_0x%02X", uint8(s))
	}
}

// GeneratorState is decoded from a GENERATOR_STATE (0x02) frame
type GeneratorState struct {
	Timestamp time.Time

	RPM             int
	StartBatteryRaw uint16
	StatusBits
	GeneratorType uint8

	// Running is true when payload byte 5 is non-zero
	Running bool
}

// Command implements Telemetry
func (s *GeneratorState) Command() byte { return CmdGeneratorState }

// Time implements Telemetry
func (s *GeneratorState) Time() time.Time { return s.Timestamp }

func (s *GeneratorState) stamp(t time.Time) { s.Timestamp = t }

// StartBatteryVolts returns the start battery voltage, raw value in 10 mV steps
func (s *GeneratorState) StartBatteryVolts() float64 {
	return float64(s.StartBatteryRaw) / 100.0
}

// RuntimeState is decoded from a RUNTIME_STATE (0x0E) frame
type RuntimeState struct {
	Timestamp time.Time

	// Total run time, reset after maintenance
	TotalMinutes int
	TotalHours   int

	HistoricalMinutes int
	HistoricalHours   int
}

// Command implements Telemetry
func (r *RuntimeState) Command() byte { return CmdRuntimeState }

// Time implements Telemetry
func (r *RuntimeState) Time() time.Time { return r.Timestamp }

func (r *RuntimeState) stamp(t time.Time) { r.Timestamp = t }

// Total returns the total run time as a duration
func (r *RuntimeState) Total() time.Duration {
	return time.Duration(r.TotalHours)*time.Hour + time.Duration(r.TotalMinutes)*time.Minute
}

// Historical returns the historical run time as a duration
func (r *RuntimeState) Historical() time.Duration {
	return time.Duration(r.HistoricalHours)*time.Hour + time.Duration(r.HistoricalMinutes)*time.Minute
}
