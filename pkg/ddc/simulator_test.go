// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc_test

import (
	"testing"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSimulator(clock *fakeClock) *ddc.Simulator {
	cfg := ddc.DefaultSimulatorConfig()
	cfg.Clock = clock.Now
	return ddc.NewSimulator(cfg)
}

func control(code ddc.ControlCode) []byte {
	return ddc.MustEncodeControl(ddc.PeerAddress, ddc.SelfAddress, code)
}

// decodeTick runs the frames of one simulator tick through a fresh driver
func decodeTick(t *testing.T, frames [][]byte) (*ddc.GeneratorState, *ddc.RuntimeState) {
	t.Helper()
	require.Len(t, frames, 2)
	d := ddc.NewDriver()

	res, err := d.ProcessFrame(frames[0])
	require.NoError(t, err)
	require.True(t, res.Valid(), "generator frame rejected: %v", res.Reject)
	gs := res.Telemetry.(*ddc.GeneratorState)

	res, err = d.ProcessFrame(frames[1])
	require.NoError(t, err)
	require.True(t, res.Valid(), "runtime frame rejected: %v", res.Reject)
	return gs, res.Telemetry.(*ddc.RuntimeState)
}

func TestSimulator_StartsStopped(t *testing.T) {
	sim := newTestSimulator(&fakeClock{now: fixedTime})

	gs, rs := decodeTick(t, sim.Tick())
	assert.False(t, gs.Running)
	assert.Equal(t, 0, gs.RPM)
	assert.Equal(t, ddc.StatusPresent, gs.GeneratorStatus)
	assert.True(t, gs.Flags.ModelDetection50Hz)
	assert.Equal(t, 0, rs.TotalHours)
}

func TestSimulator_StartAndStop(t *testing.T) {
	clock := &fakeClock{now: fixedTime}
	sim := newTestSimulator(clock)

	codes := sim.Feed(control(ddc.ControlStart))
	assert.Equal(t, []ddc.ControlCode{ddc.ControlStart}, codes)

	gs, _ := decodeTick(t, sim.Tick())
	assert.True(t, gs.Running)
	assert.Equal(t, 3000, gs.RPM)
	assert.True(t, gs.Flags.RunSignal)
	assert.True(t, gs.Flags.StartByOperationUnit)

	sim.Feed(control(ddc.ControlStop))
	gs, _ = decodeTick(t, sim.Tick())
	assert.False(t, gs.Running)
	assert.Equal(t, 2, sim.State().ControlFrames)
}

func TestSimulator_KeepAliveTimeout(t *testing.T) {
	clock := &fakeClock{now: fixedTime}
	sim := newTestSimulator(clock)
	sim.Feed(control(ddc.ControlStart))

	for i := 0; i < 5; i++ {
		clock.Advance(5 * time.Second)
		sim.Feed(control(ddc.ControlKeepAlive))
		sim.Tick()
		require.True(t, sim.State().Running, "keep-alive %d should hold the engine running", i)
	}

	clock.Advance(11 * time.Second)
	sim.Tick()
	assert.False(t, sim.State().Running, "missing keep-alives should stop the engine")
}

func TestSimulator_RuntimeAccumulates(t *testing.T) {
	clock := &fakeClock{now: fixedTime}
	cfg := ddc.DefaultSimulatorConfig()
	cfg.Clock = clock.Now
	cfg.KeepAliveTimeout = 0
	cfg.Historical = 100 * time.Hour
	sim := ddc.NewSimulator(cfg)

	sim.Feed(control(ddc.ControlStart))
	clock.Advance(90 * time.Minute)

	_, rs := decodeTick(t, sim.Tick())
	assert.Equal(t, 1, rs.TotalHours)
	assert.Equal(t, 30, rs.TotalMinutes)
	assert.Equal(t, 101, rs.HistoricalHours)
	assert.Equal(t, 30, rs.HistoricalMinutes)

	// Stopped time does not count
	sim.Feed(control(ddc.ControlStop))
	clock.Advance(time.Hour)
	_, rs = decodeTick(t, sim.Tick())
	assert.Equal(t, 1, rs.TotalHours)
}

func TestSimulator_RejectsGarbage(t *testing.T) {
	sim := newTestSimulator(&fakeClock{now: fixedTime})

	data := append([]byte{0xAA, 0x55, 0x88}, control(ddc.ControlStart)...)
	data = append(data, ddc.NewFrame(ddc.PeerAddress, ddc.SelfAddress, ddc.CmdControl, []byte{0x09, 0, 0, 0}).Bytes()...)

	codes := sim.Feed(data)
	assert.Equal(t, []ddc.ControlCode{ddc.ControlStart}, codes)
	assert.Equal(t, 4, sim.State().Rejected, "three noise bytes and one unknown code")
	assert.True(t, sim.State().Running)
}

func TestSimulator_ClosedLoopWithDriver(t *testing.T) {
	clock := &fakeClock{now: fixedTime}
	sim := newTestSimulator(clock)
	d := ddc.NewDriver(ddc.WithClock(clock.Now))
	stream := ddc.NewStream(d)

	exchange := func() []ddc.ControlCode {
		var sent []ddc.ControlCode
		for _, frame := range sim.Tick() {
			results, err := stream.Feed(frame)
			require.NoError(t, err)
			for _, r := range results {
				if r.Outbound != nil {
					sent = append(sent, r.Control)
					sim.Feed(r.Outbound)
				}
			}
		}
		clock.Advance(time.Second)
		return sent
	}

	assert.Empty(t, exchange(), "no command latched")

	// The runtime frame of the same tick still sees the engine stopped
	d.SetCommand(true)
	assert.Equal(t, []ddc.ControlCode{ddc.ControlStart, ddc.ControlStart}, exchange())
	for i := 0; i < 30; i++ {
		assert.Equal(t, []ddc.ControlCode{ddc.ControlKeepAlive, ddc.ControlKeepAlive}, exchange())
	}
	assert.True(t, sim.State().Running)

	d.SetCommand(false)
	assert.Equal(t, []ddc.ControlCode{ddc.ControlStop, ddc.ControlStop}, exchange())
	assert.False(t, sim.State().Running)
	assert.Empty(t, exchange())
}
