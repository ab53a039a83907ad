// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"sync"
	"time"
)

// SimulatorConfig configures a Simulator
type SimulatorConfig struct {
	Self Address // controller address, target of telemetry
	Peer Address // genset address, as simulated

	// KeepAliveTimeout stops the engine when no START or KEEP_ALIVE arrives
	// within this long. Zero disables the timeout.
	KeepAliveTimeout time.Duration

	RunningRPM      int
	StartBatteryRaw uint16
	GeneratorType   uint8
	Model           uint8

	// Initial run time counters
	Total      time.Duration
	Historical time.Duration

	Clock func() time.Time
}

// DefaultSimulatorConfig returns a 50Hz genset idling at 3000 RPM
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Self:             SelfAddress,
		Peer:             PeerAddress,
		KeepAliveTimeout: 10 * time.Second,
		RunningRPM:       3000,
		StartBatteryRaw:  1280,
		GeneratorType:    1,
		Model:            1 << 2,
		Clock:            time.Now,
	}
}

// SimulatorState is a snapshot of a Simulator
type SimulatorState struct {
	Running       bool
	RPM           int
	Total         time.Duration
	Historical    time.Duration
	LastControl   time.Time
	ControlFrames int
	Rejected      int
}

// Simulator plays the genset side of a DDC link. Control frames are fed in
// with Feed; Tick advances time and returns the telemetry frames to send.
//
// All methods are safe for concurrent use.
type Simulator struct {
	mu        sync.Mutex
	cfg       SimulatorConfig
	extractor *Extractor
	buf       []byte

	running       bool
	byController  bool
	lastControl   time.Time
	lastTick      time.Time
	total         time.Duration
	historical    time.Duration
	controlFrames int
	rejected      int
}

// NewSimulator creates a stopped genset
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Simulator{
		cfg:        cfg,
		extractor:  NewExtractor(cfg.Peer, cfg.Self, ControlCommands),
		lastTick:   cfg.Clock(),
		total:      cfg.Total,
		historical: cfg.Historical,
	}
}

// Feed handles bytes received from the controller and returns the control
// codes it acted on, in order.
func (s *Simulator) Feed(p []byte) []ControlCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, p...)
	var codes []ControlCode
	for {
		x := s.extractor.Extract(s.buf)
		if x.Status == StatusIncomplete {
			return codes
		}
		if x.Status != StatusValid {
			s.rejected++
			s.buf = s.buf[:copy(s.buf, s.buf[x.Consumed():])]
			continue
		}

		code := ControlCode(s.buf[HeaderSize])
		s.buf = s.buf[:copy(s.buf, s.buf[x.Length:])]
		if !code.Valid() {
			s.rejected++
			continue
		}
		s.apply(code)
		codes = append(codes, code)
	}
}

func (s *Simulator) apply(code ControlCode) {
	now := s.cfg.Clock()
	s.controlFrames++
	switch code {
	case ControlStart:
		s.advance(now)
		s.running = true
		s.byController = true
		s.lastControl = now
	case ControlKeepAlive:
		s.lastControl = now
	case ControlStop:
		s.advance(now)
		s.running = false
	}
}

// advance accumulates run time up to now. Called with mu held.
func (s *Simulator) advance(now time.Time) {
	if s.running {
		d := now.Sub(s.lastTick)
		s.total += d
		s.historical += d
	}
	s.lastTick = now
}

// Tick advances the simulation and returns a GENERATOR_STATE frame followed
// by a RUNTIME_STATE frame.
func (s *Simulator) Tick() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock()
	s.advance(now)
	if s.running && s.cfg.KeepAliveTimeout > 0 && now.Sub(s.lastControl) > s.cfg.KeepAliveTimeout {
		s.running = false
	}

	gs := s.generatorState()
	rs := &RuntimeState{
		TotalMinutes:      int(s.total/time.Minute) % 60,
		TotalHours:        int(s.total / time.Hour),
		HistoricalMinutes: int(s.historical/time.Minute) % 60,
		HistoricalHours:   int(s.historical / time.Hour),
	}
	return [][]byte{
		EncodeGeneratorState(s.cfg.Self, s.cfg.Peer, gs),
		EncodeRuntimeState(s.cfg.Self, s.cfg.Peer, rs),
	}
}

func (s *Simulator) generatorState() *GeneratorState {
	gs := &GeneratorState{
		StartBatteryRaw: s.cfg.StartBatteryRaw,
		GeneratorType:   s.cfg.GeneratorType,
		Running:         s.running,
	}
	gs.Model = s.cfg.Model
	gs.GeneratorStatus = StatusPresent
	if s.running {
		gs.RPM = s.cfg.RunningRPM
		if s.byController {
			gs.StartSignals = 1 << 7
		}
	}
	return gs
}

// State returns a snapshot of the simulator
func (s *Simulator) State() SimulatorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rpm := 0
	if s.running {
		rpm = s.cfg.RunningRPM
	}
	return SimulatorState{
		Running:       s.running,
		RPM:           rpm,
		Total:         s.total,
		Historical:    s.historical,
		LastControl:   s.lastControl,
		ControlFrames: s.controlFrames,
		Rejected:      s.rejected,
	}
}
