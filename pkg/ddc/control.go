// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import "sync"

// Command is the latched desired generator state
type Command int

const (
	CommandUnset Command = iota
	CommandStart
	CommandStop
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CommandUnset:
		return "UNSET"
	case CommandStart:
		return "START"
	case CommandStop:
		return "STOP"
	default:
		return "INVALID"
	}
}

// RunState is the last running flag reported by the genset
type RunState int

const (
	RunUnknown RunState = iota
	RunStopped
	RunRunning
)

// String returns the run state name
func (r RunState) String() string {
	switch r {
	case RunUnknown:
		return "UNKNOWN"
	case RunStopped:
		return "STOPPED"
	case RunRunning:
		return "RUNNING"
	default:
		return "INVALID"
	}
}

// ControlState is a snapshot of a Controller
type ControlState struct {
	Running RunState
	Desired Command
}

// Controller decides which control frame, if any, answers each valid
// inbound frame. The desired command is latched and re-evaluated on every
// frame, so one start request keeps producing keep-alives while the genset
// runs.
//
// All methods are safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	running RunState
	desired Command
}

// NewController creates a controller with unknown run state and no command
func NewController() *Controller {
	return &Controller{}
}

// SetCommand latches start (true) or stop (false). Nothing is emitted until
// the next valid inbound frame.
func (c *Controller) SetCommand(start bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if start {
		c.desired = CommandStart
	} else {
		c.desired = CommandStop
	}
}

// Step handles one valid inbound frame. observed is the frame's running flag,
// or nil for frames that carry none. The returned bool reports whether a
// control frame with the returned code must be sent.
func (c *Controller) Step(observed *bool) (ControlCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if observed != nil {
		if *observed {
			c.running = RunRunning
		} else {
			c.running = RunStopped
		}
	}
	return evaluate(c.running, c.desired)
}

// State returns a snapshot of the controller
func (c *Controller) State() ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ControlState{Running: c.running, Desired: c.desired}
}

// evaluate is the pure decision table:
//
//	desired  running   emit
//	unset    *         -
//	start    running   KEEP_ALIVE
//	start    stopped   START
//	stop     running   STOP
//	stop     stopped   -
//	*        unknown   -
func evaluate(running RunState, desired Command) (ControlCode, bool) {
	if running == RunUnknown {
		return 0, false
	}
	switch desired {
	case CommandStart:
		if running == RunRunning {
			return ControlKeepAlive, true
		}
		return ControlStart, true
	case CommandStop:
		if running == RunRunning {
			return ControlStop, true
		}
	}
	return 0, false
}
