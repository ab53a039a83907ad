// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestEvaluate_Table(t *testing.T) {
	tests := []struct {
		running RunState
		desired Command
		code    ControlCode
		emit    bool
	}{
		{RunUnknown, CommandUnset, 0, false},
		{RunUnknown, CommandStart, 0, false},
		{RunUnknown, CommandStop, 0, false},
		{RunStopped, CommandUnset, 0, false},
		{RunRunning, CommandUnset, 0, false},
		{RunStopped, CommandStart, ControlStart, true},
		{RunRunning, CommandStart, ControlKeepAlive, true},
		{RunRunning, CommandStop, ControlStop, true},
		{RunStopped, CommandStop, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.running.String()+"/"+tt.desired.String(), func(t *testing.T) {
			code, emit := evaluate(tt.running, tt.desired)
			assert.Equal(t, tt.emit, emit)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestController_InitialState(t *testing.T) {
	c := NewController()
	assert.Equal(t, ControlState{Running: RunUnknown, Desired: CommandUnset}, c.State())
}

func TestController_SetCommandDoesNotEmit(t *testing.T) {
	c := NewController()
	c.SetCommand(true)
	assert.Equal(t, CommandStart, c.State().Desired)
	c.SetCommand(false)
	assert.Equal(t, CommandStop, c.State().Desired)
}

func TestController_NoEmissionBeforeFirstGeneratorState(t *testing.T) {
	c := NewController()
	c.SetCommand(true)

	// Runtime frames carry no running flag
	for i := 0; i < 3; i++ {
		_, emit := c.Step(nil)
		assert.False(t, emit, "must not emit while running state is unknown")
	}

	code, emit := c.Step(boolPtr(false))
	assert.True(t, emit)
	assert.Equal(t, ControlStart, code)
}

func TestController_StartSequence(t *testing.T) {
	c := NewController()
	c.SetCommand(true)

	code, emit := c.Step(boolPtr(false))
	assert.True(t, emit)
	assert.Equal(t, ControlStart, code)

	// Still stopped: keep asking
	code, _ = c.Step(boolPtr(false))
	assert.Equal(t, ControlStart, code)

	// Engine running: keep-alive on every frame, including runtime frames
	code, _ = c.Step(boolPtr(true))
	assert.Equal(t, ControlKeepAlive, code)
	code, emit = c.Step(nil)
	assert.True(t, emit)
	assert.Equal(t, ControlKeepAlive, code)
}

func TestController_StopSequence(t *testing.T) {
	c := NewController()
	c.Step(boolPtr(true))
	c.SetCommand(false)

	code, emit := c.Step(nil)
	assert.True(t, emit)
	assert.Equal(t, ControlStop, code)

	_, emit = c.Step(boolPtr(false))
	assert.False(t, emit, "redundant stop is a no-op")
	assert.Equal(t, RunStopped, c.State().Running)
}

func TestController_RunningUpdatedWithoutCommand(t *testing.T) {
	c := NewController()
	_, emit := c.Step(boolPtr(true))
	assert.False(t, emit)
	assert.Equal(t, RunRunning, c.State().Running)
}

func TestController_ConcurrentUse(t *testing.T) {
	c := NewController()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.SetCommand((i+j)%2 == 0)
				code, emit := c.Step(boolPtr(j%3 == 0))
				if emit {
					assert.True(t, code.Valid())
				}
			}
		}(i)
	}
	wg.Wait()
	assert.NotEqual(t, RunUnknown, c.State().Running)
}

func TestCommandAndRunState_String(t *testing.T) {
	assert.Equal(t, "UNSET", CommandUnset.String())
	assert.Equal(t, "START", CommandStart.String())
	assert.Equal(t, "STOP", CommandStop.String())
	assert.Equal(t, "INVALID", Command(7).String())
	assert.Equal(t, "UNKNOWN", RunUnknown.String())
	assert.Equal(t, "STOPPED", RunStopped.String())
	assert.Equal(t, "RUNNING", RunRunning.String())
	assert.Equal(t, "INVALID", RunState(7).String())
}
