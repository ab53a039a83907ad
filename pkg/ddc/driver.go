// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import "fmt"

// Result is the outcome of one ProcessInbound call
type Result struct {
	Status   Status
	Consumed int // bytes to drop from the front of the buffer

	// Set when Status is StatusValid
	Frame     []byte // copy of the validated frame
	Telemetry Telemetry

	// Set when the frame triggered a control frame
	Outbound []byte
	Control  ControlCode

	// Reject is the *FrameError for a non-valid Status
	Reject error
}

// Valid reports whether a frame was accepted
func (r Result) Valid() bool {
	return r.Status == StatusValid
}

// Driver is the controller side of a DDC link. It is a synchronous state
// transformer: the host feeds it received bytes and writes out whatever
// control frames it returns. It does no I/O of its own.
//
// ProcessInbound, ProcessFrame and SetCommand are safe for concurrent use.
type Driver struct {
	cfg       Config
	extractor *Extractor
	control   *Controller
}

// NewDriver creates a driver with the given options
func NewDriver(opts ...Option) *Driver {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Driver{
		cfg:       cfg,
		extractor: NewInboundExtractor(cfg.Self, cfg.Peer),
		control:   NewController(),
	}
}

// Config returns the effective driver configuration
func (d *Driver) Config() Config {
	return d.cfg
}

// SetCommand latches the desired generator state. It takes effect on the
// next valid inbound frame.
func (d *Driver) SetCommand(start bool) {
	d.control.SetCommand(start)
	d.cfg.Logger.Debug("command latched", "start", start)
}

// State returns a snapshot of the control state machine
func (d *Driver) State() ControlState {
	return d.control.State()
}

// ProcessInbound examines the frame at the start of a continuous byte stream.
// The caller removes Result.Consumed bytes and calls again; a zero Consumed
// means more bytes are needed.
//
// Rejected bytes are reported through Result.Status and never as an error.
// The error return is reserved for a control frame that cannot be encoded.
func (d *Driver) ProcessInbound(buf []byte) (Result, error) {
	return d.process(buf, d.extractor.Extract(buf))
}

// ProcessFrame is ProcessInbound for transports that deliver whole frames.
// A frame longer than its command's fixed size is rejected as StatusOversize.
func (d *Driver) ProcessFrame(frame []byte) (Result, error) {
	return d.process(frame, d.extractor.Validate(frame))
}

func (d *Driver) process(buf []byte, x Extraction) (Result, error) {
	res := Result{Status: x.Status, Consumed: x.Consumed()}
	if x.Status != StatusValid {
		res.Reject = x.Err()
		if x.Status != StatusIncomplete {
			d.cfg.Logger.Debug("frame rejected", "status", x.Status, "command", x.Command, "error", res.Reject)
		}
		return res, nil
	}

	res.Frame = append([]byte(nil), buf[:x.Length]...)
	t, err := Decode(res.Frame, d.cfg.Mapping)
	if err != nil {
		return res, fmt.Errorf("decode validated frame: %w", err)
	}
	t.stamp(d.cfg.Clock())
	res.Telemetry = t

	var observed *bool
	if gs, ok := t.(*GeneratorState); ok {
		observed = &gs.Running
	}

	code, emit := d.control.Step(observed)
	if !emit {
		return res, nil
	}

	out, err := EncodeControl(d.cfg.Peer, d.cfg.Self, code)
	if err != nil {
		d.cfg.Logger.Error("control encode failed", "code", code, "error", err)
		return res, fmt.Errorf("encode control frame: %w", err)
	}
	res.Outbound = out
	res.Control = code
	d.cfg.Logger.Info("control frame", "code", code)
	return res, nil
}
