// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/ddcstat/pkg/ddc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Flag Parsing Tests
// ============================================================

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want ddc.Address
		ok   bool
	}{
		{"0x0081", 0x0081, true},
		{"0X88", 0x0088, true},
		{"136", 0x0088, true},
		{"0xFFFF", 0xFFFF, true},
		{"0x10000", 0, false},
		{"-1", 0, false},
		{"genset", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func setAddressFlags(t *testing.T, self, peer string) {
	t.Helper()
	oldSelf, oldPeer := selfAddrFlag, peerAddrFlag
	t.Cleanup(func() { selfAddrFlag, peerAddrFlag = oldSelf, oldPeer })
	selfAddrFlag, peerAddrFlag = self, peer
}

func TestBusAddresses(t *testing.T) {
	setAddressFlags(t, "0x0081", "0x0088")
	self, peer, err := busAddresses()
	require.NoError(t, err)
	assert.Equal(t, ddc.SelfAddress, self)
	assert.Equal(t, ddc.PeerAddress, peer)

	setAddressFlags(t, "0x0081", "129")
	_, _, err = busAddresses()
	assert.Error(t, err, "equal addresses must be rejected")

	setAddressFlags(t, "bogus", "0x0088")
	_, _, err = busAddresses()
	assert.Error(t, err)
}

func TestNewDriver_UsesFlags(t *testing.T) {
	setAddressFlags(t, "0x0010", "0x0020")
	d, err := newDriver()
	require.NoError(t, err)
	assert.Equal(t, ddc.Address(0x0010), d.Config().Self)
	assert.Equal(t, ddc.Address(0x0020), d.Config().Peer)
}

// ============================================================
// Event Log Tests
// ============================================================

func TestAppendLogEntry_KeepsLast(t *testing.T) {
	var entries []errorLogEntry
	for _, msg := range []string{"a", "b", "c", "d"} {
		entries = appendLogEntry(entries, 3, msg, false)
	}
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].message)
	assert.Equal(t, "d", entries[2].message)
}

// ============================================================
// Control TUI Tests
// ============================================================

func asControlModel(t *testing.T, m tea.Model) *controlModel {
	t.Helper()
	switch v := m.(type) {
	case controlModel:
		return &v
	case *controlModel:
		return v
	}
	t.Fatalf("unexpected model type %T", m)
	return nil
}

func generatorFrame(running bool) []byte {
	gs := &ddc.GeneratorState{StartBatteryRaw: 1280, Running: running}
	gs.GeneratorStatus = ddc.StatusPresent
	if running {
		gs.RPM = 3000
	}
	return ddc.EncodeGeneratorState(ddc.SelfAddress, ddc.PeerAddress, gs)
}

func TestControlModel_StartKeyAndFrames(t *testing.T) {
	cm := &connectionManager{driver: ddc.NewDriver()}
	var m tea.Model = initialControlModel(cm, "test")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	assert.Equal(t, ddc.CommandStart, cm.driver.State().Desired)

	res, err := cm.driver.ProcessFrame(generatorFrame(false))
	require.NoError(t, err)
	require.Equal(t, ddc.ControlStart, res.Control)

	m, _ = m.Update(controlBatchMsg{
		syncMsg:  &controlSyncMsg{skipped: 3},
		messages: []controlDataMsg{{result: res}},
	})
	cmod := asControlModel(t, m)
	assert.True(t, cmod.synchronized)
	assert.Equal(t, ddc.ControlStart, cmod.lastControl)
	assert.Equal(t, uint64(1), cmod.stats.StartsSent)
	require.NotNil(t, cmod.generator)
	assert.False(t, cmod.generator.Running)

	var messages []string
	for _, e := range cmod.errorLog {
		messages = append(messages, e.message)
	}
	assert.Contains(t, messages, "START latched")
	assert.Contains(t, messages, "Synchronized after skipping 3 invalid bytes")
	assert.Contains(t, messages, "Genset stopped")
	assert.Contains(t, messages, "Sent START (0x01)")
}

func TestControlModel_RepeatedAnomalyLoggedOnce(t *testing.T) {
	cm := &connectionManager{driver: ddc.NewDriver()}
	m := initialControlModel(cm, "test")

	anomaly := []ddc.ValidationError{{Type: ddc.AnomalyAlarm, Message: "Active alarms: oil pressure"}}
	res, err := cm.driver.ProcessFrame(generatorFrame(true))
	require.NoError(t, err)

	before := len(m.errorLog)
	m.processControlData(controlDataMsg{result: res, anomalies: anomaly})
	m.processControlData(controlDataMsg{result: res, anomalies: anomaly})

	// "Genset running" plus the alarm once
	assert.Len(t, m.errorLog, before+2)
}

func TestControlModel_QuitKey(t *testing.T) {
	cm := &connectionManager{driver: ddc.NewDriver()}
	m := initialControlModel(cm, "test")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
	assert.True(t, asControlModel(t, next).quitting)
}

func TestControlModel_FailedWriteNotCounted(t *testing.T) {
	cm := &connectionManager{driver: ddc.NewDriver()}
	cm.driver.SetCommand(true)
	m := initialControlModel(cm, "test")

	res, err := cm.driver.ProcessFrame(generatorFrame(false))
	require.NoError(t, err)
	require.Equal(t, ddc.ControlStart, res.Control)

	m.processControlData(controlDataMsg{result: res, writeErr: errors.New("port gone")})
	assert.Equal(t, uint64(0), m.stats.StartsSent)
	assert.Equal(t, uint64(1), m.stats.SendErrors)
	assert.True(t, m.lastSent.IsZero())

	m.processControlData(controlDataMsg{result: res})
	assert.Equal(t, uint64(1), m.stats.StartsSent)
}

// ============================================================
// Connection Manager Tests
// ============================================================

// scriptedConn returns each chunk once, then a wrapped ErrConnectionClosed
type scriptedConn struct {
	mu      sync.Mutex
	chunks  [][]byte
	written [][]byte
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) == 0 {
		return 0, fmt.Errorf("read: %w", ErrConnectionClosed)
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), p...))
	return len(p), nil
}

func (c *scriptedConn) Close() error { return nil }

func TestReadFromConnection_ClosedConnectionEndsRead(t *testing.T) {
	conn := &scriptedConn{chunks: [][]byte{generatorFrame(false)}}
	cm := &connectionManager{
		conn:   conn,
		driver: ddc.NewDriver(),
		send:   func(tea.Msg) {},
		done:   make(chan struct{}),
	}
	cm.driver.SetCommand(true)

	lost := make(chan bool, 1)
	go func() { lost <- cm.readFromConnection() }()

	select {
	case got := <-lost:
		assert.True(t, got, "a closed connection is reported as lost")
	case <-time.After(2 * time.Second):
		close(cm.done)
		t.Fatal("reader did not stop on a wrapped ErrConnectionClosed")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.written, 1)
	assert.Equal(t, ddc.MustEncodeControl(ddc.PeerAddress, ddc.SelfAddress, ddc.ControlStart), conn.written[0])
}
