// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates for one link
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Frame verdicts
	TotalFrames      uint64 // valid + rejected
	ValidFrames      uint64
	ChecksumErrors   uint64
	Unrecognized     uint64
	Truncated        uint64
	Oversize         uint64
	SkippedBytes     uint64
	GeneratorSamples uint64
	RuntimeSamples   uint64

	// Anomalies found by CheckTelemetry
	AnomalousValues uint64
	Alarms          uint64
	HighRPM         uint64

	// Control frames written to the link, see RecordSent
	StartsSent     uint64
	StopsSent      uint64
	KeepAlivesSent uint64
	SendErrors     uint64

	// Rates (calculated)
	FrameRate float64 // valid frames/sec
	ErrorRate float64 // rejections/sec

	now func() time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return newStatistics(time.Now)
}

func newStatistics(now func() time.Time) *Statistics {
	t := now()
	return &Statistics{
		StartTime:      t,
		LastUpdateTime: t,
		now:            now,
	}
}

func (s *Statistics) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Update records one driver Result and the anomalies found in its telemetry
func (s *Statistics) Update(res Result, anomalies []ValidationError) {
	switch res.Status {
	case StatusIncomplete:
		return
	case StatusValid:
		s.ValidFrames++
	case StatusChecksumMismatch:
		s.ChecksumErrors++
	case StatusUnrecognized:
		s.Unrecognized++
	case StatusTruncated:
		s.Truncated++
	case StatusOversize:
		s.Oversize++
	}
	s.TotalFrames++
	if !res.Valid() {
		s.SkippedBytes += uint64(res.Consumed)
	}

	switch res.Telemetry.(type) {
	case *GeneratorState:
		s.GeneratorSamples++
	case *RuntimeState:
		s.RuntimeSamples++
	}

	for _, a := range anomalies {
		s.AnomalousValues++
		switch a.Type {
		case AnomalyAlarm, AnomalyStartFailure:
			s.Alarms++
		case AnomalyHighRPM:
			s.HighRPM++
		}
	}

	s.LastUpdateTime = s.clock()
}

// RecordSent records the outcome of writing a control frame. Only
// successful writes count as sent.
func (s *Statistics) RecordSent(code ControlCode, err error) {
	if err != nil {
		s.SendErrors++
		return
	}
	switch code {
	case ControlStart:
		s.StartsSent++
	case ControlStop:
		s.StopsSent++
	case ControlKeepAlive:
		s.KeepAlivesSent++
	}
}

// Errors returns the number of rejected frames
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.Unrecognized + s.Truncated + s.Oversize
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.clock().Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := s.clock().Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))
	result += fmt.Sprintf("  Generator:        %5d\n", s.GeneratorSamples)
	result += fmt.Sprintf("  Runtime:          %5d\n", s.RuntimeSamples)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.Unrecognized > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d (%.1f%%)\n", s.Unrecognized, percent(s.Unrecognized))
	}
	if s.Truncated > 0 {
		result += fmt.Sprintf("Truncated:       %8d (%.1f%%)\n", s.Truncated, percent(s.Truncated))
	}
	if s.Oversize > 0 {
		result += fmt.Sprintf("Oversize:        %8d (%.1f%%)\n", s.Oversize, percent(s.Oversize))
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d\n", s.AnomalousValues)
		if s.Alarms > 0 {
			result += fmt.Sprintf("  Alarms:           %5d\n", s.Alarms)
		}
		if s.HighRPM > 0 {
			result += fmt.Sprintf("  High RPM (>%d): %5d\n", MaxRPM, s.HighRPM)
		}
	}
	if sent := s.StartsSent + s.StopsSent + s.KeepAlivesSent; sent > 0 {
		result += fmt.Sprintf("Control Sent:    %8d (start %d, stop %d, keep-alive %d)\n",
			sent, s.StartsSent, s.StopsSent, s.KeepAlivesSent)
	}
	if s.SendErrors > 0 {
		result += fmt.Sprintf("Send Errors:     %8d\n", s.SendErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := s.now
	if now == nil {
		now = time.Now
	}
	*s = *newStatistics(now)
}
