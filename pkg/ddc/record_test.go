// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := ddc.NewRecorder(&buf)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	control := ddc.MustEncodeControl(ddc.PeerAddress, ddc.SelfAddress, ddc.ControlStart)
	require.NoError(t, rec.Record(ddc.DirectionInbound, t0, generatorState(0)))
	require.NoError(t, rec.Record(ddc.DirectionOutbound, t0.Add(time.Millisecond), control))
	assert.Equal(t, 2, rec.Count())

	p := ddc.NewPlayer(&buf)

	r, err := p.Next()
	require.NoError(t, err)
	assert.True(t, t0.Equal(r.Timestamp), "timestamp %v", r.Timestamp)
	assert.Equal(t, ddc.DirectionInbound, r.Direction)
	assert.Equal(t, generatorState(0), r.Frame)

	r, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, ddc.DirectionOutbound, r.Direction)
	assert.Equal(t, control, r.Frame)

	_, err = p.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecorder_RecordResult(t *testing.T) {
	var buf bytes.Buffer
	rec := ddc.NewRecorder(&buf)

	d := newTestDriver()
	d.SetCommand(true)

	for _, frame := range [][]byte{{0x00, 0x01}, generatorState(0), runtimeState()} {
		res, err := d.ProcessInbound(frame)
		require.NoError(t, err)
		require.NoError(t, rec.RecordResult(res))
	}

	// rejected: nothing; generator: RX + TX; runtime: RX + TX
	assert.Equal(t, 4, rec.Count())

	p := ddc.NewPlayer(&buf)
	var dirs []ddc.Direction
	for {
		r, err := p.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		dirs = append(dirs, r.Direction)
	}
	assert.Equal(t, []ddc.Direction{ddc.DirectionInbound, ddc.DirectionOutbound, ddc.DirectionInbound, ddc.DirectionOutbound}, dirs)
}

func TestPlayer_Corrupt(t *testing.T) {
	var buf bytes.Buffer
	rec := ddc.NewRecorder(&buf)
	require.NoError(t, rec.Record(ddc.DirectionInbound, fixedTime, generatorState(0)))

	truncated := buf.Bytes()[:buf.Len()-3]
	_, err := ddc.NewPlayer(bytes.NewReader(truncated)).Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "RX", ddc.DirectionInbound.String())
	assert.Equal(t, "TX", ddc.DirectionOutbound.String())
}
