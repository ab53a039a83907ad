// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStatistics(func() time.Time { return now })

	d := NewDriver()
	d.SetCommand(true)
	stream := NewStream(d)

	bad := clone(generatorStateA)
	bad[15] ^= 0xFF
	data := append(append(append([]byte{0x01, 0x02}, bad...), generatorStateA...), runtimeStateB...)

	results, err := stream.Feed(data)
	require.NoError(t, err)
	for _, r := range results {
		var anomalies []ValidationError
		if r.Valid() {
			anomalies = CheckTelemetry(r.Telemetry)
		}
		s.Update(r, anomalies)
		if r.Outbound != nil {
			s.RecordSent(r.Control, nil)
		}
	}

	assert.Equal(t, uint64(2), s.ValidFrames)
	assert.Equal(t, uint64(1), s.GeneratorSamples)
	assert.Equal(t, uint64(1), s.RuntimeSamples)
	assert.Equal(t, uint64(1), s.ChecksumErrors)
	// Two leading bytes, the corrupt frame start, then its 15 remaining bytes
	assert.Equal(t, uint64(18), s.SkippedBytes)
	assert.Equal(t, uint64(17), s.Unrecognized)
	assert.Equal(t, uint64(2), s.KeepAlivesSent)
	assert.Equal(t, uint64(1), s.Alarms)
	assert.Equal(t, uint64(2), s.AnomalousValues)
	assert.Equal(t, s.ValidFrames+s.Errors(), s.TotalFrames)

	now = now.Add(2 * time.Second)
	s.CalculateRates()
	assert.Equal(t, 1.0, s.FrameRate)
}

func TestStatistics_UpdateDoesNotCountSends(t *testing.T) {
	s := NewStatistics()
	s.Update(Result{Status: StatusValid, Telemetry: &GeneratorState{}, Outbound: []byte{0}, Control: ControlStart}, nil)
	assert.Equal(t, uint64(0), s.StartsSent, "a decided frame is not sent until written")
}

func TestStatistics_RecordSent(t *testing.T) {
	s := NewStatistics()
	s.RecordSent(ControlStart, nil)
	s.RecordSent(ControlKeepAlive, nil)
	s.RecordSent(ControlKeepAlive, errors.New("write failed"))
	s.RecordSent(ControlStop, errors.New("write failed"))

	assert.Equal(t, uint64(1), s.StartsSent)
	assert.Equal(t, uint64(0), s.StopsSent)
	assert.Equal(t, uint64(1), s.KeepAlivesSent)
	assert.Equal(t, uint64(2), s.SendErrors)
	assert.Contains(t, s.String(), "Send Errors:")
}

func TestStatistics_IncompleteIgnored(t *testing.T) {
	s := NewStatistics()
	s.Update(Result{Status: StatusIncomplete}, nil)
	assert.Equal(t, uint64(0), s.TotalFrames)
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.Update(Result{Status: StatusOversize, Consumed: 1}, nil)
	s.Update(Result{Status: StatusValid, Telemetry: &RuntimeState{}}, nil)
	s.RecordSent(ControlStop, nil)

	out := s.String()
	for _, want := range []string{"Total Frames:", "Oversize:", "Control Sent:", "stop 1"} {
		assert.Contains(t, out, want)
	}

	s.Reset()
	assert.Equal(t, uint64(0), s.TotalFrames)
	assert.Equal(t, uint64(0), s.Oversize)
	assert.Equal(t, uint64(0), s.StopsSent)

	s.Update(Result{Status: StatusValid}, nil)
	assert.Equal(t, uint64(1), s.ValidFrames, "statistics keep working after Reset")
}
