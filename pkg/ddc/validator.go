// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"fmt"
	"strings"
)

// AnomalyType represents different kinds of suspicious telemetry
type AnomalyType int

const (
	AnomalyAlarm AnomalyType = iota
	AnomalyStartFailure
	AnomalyHighRPM
	AnomalyRPMWhileStopped
	AnomalyUnknownStatus
	AnomalyBatteryRange
	AnomalyRuntimeCounter
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyAlarm:
		return "ALARM"
	case AnomalyStartFailure:
		return "START_FAILURE"
	case AnomalyHighRPM:
		return "HIGH_RPM"
	case AnomalyRPMWhileStopped:
		return "RPM_WHILE_STOPPED"
	case AnomalyUnknownStatus:
		return "UNKNOWN_STATUS"
	case AnomalyBatteryRange:
		return "BATTERY_RANGE"
	case AnomalyRuntimeCounter:
		return "RUNTIME_COUNTER"
	default:
		return fmt.Sprintf("ANOMALY(%d)", int(a))
	}
}

// Start battery plausibility limits in volts
const (
	MinBatteryVolts = 8.0
	MaxBatteryVolts = 32.0
)

// ValidationError describes one anomaly found in a decoded sample
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// CheckTelemetry looks for anomalies in a decoded sample.
// Returns an empty slice when nothing is suspicious.
func CheckTelemetry(t Telemetry) []ValidationError {
	switch v := t.(type) {
	case *GeneratorState:
		return checkGeneratorState(v)
	case *RuntimeState:
		return checkRuntimeState(v)
	}
	return []ValidationError{}
}

func checkGeneratorState(s *GeneratorState) []ValidationError {
	errors := []ValidationError{}

	if names := alarmNames(s.Flags); len(names) > 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyAlarm,
			Message: fmt.Sprintf("Active alarms: %s", strings.Join(names, ", ")),
			Details: map[string]interface{}{"alarms": s.Alarms, "names": names},
		})
	}

	if s.Flags.StartFailure {
		errors = append(errors, ValidationError{
			Type:    AnomalyStartFailure,
			Message: "Start failure reported",
			Details: map[string]interface{}{"start_signals": s.StartSignals},
		})
	}

	if s.RPM > MaxRPM {
		errors = append(errors, ValidationError{
			Type:    AnomalyHighRPM,
			Message: fmt.Sprintf("High RPM (rpm=%d, max %d)", s.RPM, MaxRPM),
			Details: map[string]interface{}{"rpm": s.RPM, "max": MaxRPM},
		})
	}

	if !s.Running && s.RPM > 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyRPMWhileStopped,
			Message: fmt.Sprintf("RPM=%d while not running", s.RPM),
			Details: map[string]interface{}{"rpm": s.RPM},
		})
	}

	if s.GeneratorStatus == StatusUnknown {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownStatus,
			Message: "Generator status outside known range",
			Details: map[string]interface{}{"status": uint8(s.GeneratorStatus)},
		})
	}

	if v := s.StartBatteryVolts(); s.StartBatteryRaw != 0 && (v < MinBatteryVolts || v > MaxBatteryVolts) {
		errors = append(errors, ValidationError{
			Type:    AnomalyBatteryRange,
			Message: fmt.Sprintf("Start battery out of range (%.2fV, valid: %.0f to %.0fV)", v, MinBatteryVolts, MaxBatteryVolts),
			Details: map[string]interface{}{"value": v, "min": MinBatteryVolts, "max": MaxBatteryVolts},
		})
	}

	return errors
}

// Historical run time includes the resettable total
func checkRuntimeState(r *RuntimeState) []ValidationError {
	errors := []ValidationError{}
	if r.TotalMinutes > 59 || r.HistoricalMinutes > 59 {
		errors = append(errors, ValidationError{
			Type:    AnomalyRuntimeCounter,
			Message: fmt.Sprintf("Minute counter out of range (total=%d, historical=%d)", r.TotalMinutes, r.HistoricalMinutes),
			Details: map[string]interface{}{"total_minutes": r.TotalMinutes, "historical_minutes": r.HistoricalMinutes},
		})
	}
	if r.Historical() < r.Total() {
		errors = append(errors, ValidationError{
			Type:    AnomalyRuntimeCounter,
			Message: fmt.Sprintf("Historical run time %v below total %v", r.Historical(), r.Total()),
			Details: map[string]interface{}{"total": r.Total(), "historical": r.Historical()},
		})
	}
	return errors
}

func alarmNames(f StatusFlags) []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(f.OverallAlarm, "overall")
	add(f.EngineTemperatureAlarm, "engine temperature")
	add(f.PMVoltageAlarm, "PM voltage")
	add(f.OilPressureAlarm, "oil pressure")
	add(f.ExhaustTemperatureAlarm, "exhaust temperature")
	add(f.UAC1Alarm, "UAC1")
	add(f.IAC1Alarm, "IAC1")
	add(f.OilPressureHighAlarm, "oil pressure high")
	add(f.LowStartBatteryAlarm, "low start battery")
	return names
}
