// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ddc

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction tells which side of the link sent a recorded frame
type Direction uint8

const (
	DirectionInbound  Direction = 0 // genset -> controller
	DirectionOutbound Direction = 1 // controller -> genset
)

// String returns "RX" or "TX"
func (d Direction) String() string {
	if d == DirectionOutbound {
		return "TX"
	}
	return "RX"
}

// Record is one captured frame. A recording is a CBOR sequence of records.
type Record struct {
	Timestamp time.Time `cbor:"0,keyasint"`
	Direction Direction `cbor:"1,keyasint"`
	Frame     []byte    `cbor:"2,keyasint"`
}

var recordEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("ddc: cbor encoding mode: %v", err))
	}
	return em
}()

// Recorder appends frames to a recording
type Recorder struct {
	enc   *cbor.Encoder
	count int
}

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: recordEncMode.NewEncoder(w)}
}

// Record writes one frame
func (r *Recorder) Record(dir Direction, t time.Time, frame []byte) error {
	rec := Record{Timestamp: t, Direction: dir, Frame: frame}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	r.count++
	return nil
}

// RecordResult writes the inbound frame of res and, if present, the control
// frame sent in reply. Rejected results are not recorded.
func (r *Recorder) RecordResult(res Result) error {
	if !res.Valid() {
		return nil
	}
	t := res.Telemetry.Time()
	if err := r.Record(DirectionInbound, t, res.Frame); err != nil {
		return err
	}
	if res.Outbound != nil {
		return r.Record(DirectionOutbound, t, res.Outbound)
	}
	return nil
}

// Count returns the number of records written
func (r *Recorder) Count() int {
	return r.count
}

// Player reads a recording back
type Player struct {
	dec *cbor.Decoder
}

// NewPlayer creates a player reading from r
func NewPlayer(r io.Reader) *Player {
	return &Player{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the recording
func (p *Player) Next() (Record, error) {
	var rec Record
	if err := p.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}
